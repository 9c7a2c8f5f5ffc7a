package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/create_close.yaml")
	require.NoError(t, err)

	r1, err := Run(scenario)
	require.NoError(t, err)
	r2, err := Run(scenario)
	require.NoError(t, err)

	s1, err := Snapshot(scenario.Name, r1)
	require.NoError(t, err)
	s2, err := Snapshot(scenario.Name, r2)
	require.NoError(t, err)
	assert.Equal(t, string(s1), string(s2))
}

func TestRun_FailedExpectationIsReported(t *testing.T) {
	s := mustParse(t, `
name: wrong
description: "expects the wrong error"
identities: [alice]
steps:
  - action: store
    as: alice
    nonce: 1
    text: hi
    expect:
      error: TextEmpty
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected TextEmpty, got ok")
}

func TestRun_UnexpectedErrorIsReported(t *testing.T) {
	s := mustParse(t, `
name: surprise
description: "no expect on a failing step"
identities: [alice]
steps:
  - action: store
    as: alice
    nonce: 1
    text: ""
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected ok, got TextEmpty")
}

func TestRun_FieldMismatch(t *testing.T) {
	s := mustParse(t, `
name: fields
description: "field mismatch"
identities: [alice]
steps:
  - action: store
    as: alice
    nonce: 1
    text: hi
    save: m
  - action: load
    address: m
    expect:
      text: bye
      missing: 1
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, `field "text"`)
	assert.Contains(t, joined, `no field "missing"`)
}

func TestRun_AssertionFailure(t *testing.T) {
	s := mustParse(t, `
name: assert
description: "assertions fail"
identities: [alice]
steps:
  - action: store
    as: alice
    nonce: 1
    text: hi
    save: m
assertions:
  - type: event_count
    count: 3
  - type: absent
    address: m
  - type: balance
    identity: alice
    amount: 5
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Assertion failed: event_count")
}

func TestRun_UnresolvedAddress(t *testing.T) {
	s := mustParse(t, `
name: unresolved
description: "address is not saved"
steps:
  - action: load
    address: nowhere
`)
	_, err := Run(s)
	assert.Error(t, err)
}

func TestRun_HexAddress(t *testing.T) {
	s := mustParse(t, `
name: hex
description: "load by hex"
identities: [alice]
steps:
  - action: load
    address: "0000000000000000000000000000000000000000000000000000000000000001"
    expect:
      error: NotFound
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CustomProgramChangesAddresses(t *testing.T) {
	base := `
name: program
description: "program id is mixed into addresses"
identities: [alice]
steps:
  - action: derive
    as: alice
    nonce: 1
`
	r1, err := Run(mustParse(t, base))
	require.NoError(t, err)
	r2, err := Run(mustParse(t, base+`program: "0101010101010101010101010101010101010101010101010101010101010101"`+"\n"))
	require.NoError(t, err)
	assert.NotEqual(t, r1.Trace[0].Result["address"], r2.Trace[0].Result["address"])
}
