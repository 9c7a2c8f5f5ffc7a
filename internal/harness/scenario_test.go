package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/deposits.yaml")
	require.NoError(t, err)

	assert.Equal(t, "deposits", s.Name)
	assert.Equal(t, []string{"alice", "bob"}, s.Identities)
	require.NotNil(t, s.Rent)
	assert.Equal(t, uint64(10), s.Rent.PerByte)
	assert.Equal(t, uint64(2000), s.Fund["alice"])
	require.Len(t, s.Steps, 4)
	assert.Equal(t, "AllocationFailed", s.Steps[1].Expect.Error)
	assert.EqualValues(t, 1940, s.Steps[3].Expect.Fields["refund"])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: x\ndescription: y\nstep: []\n", "failed to parse YAML"},
		{"no name", "description: y\nsteps: [{action: load, address: a}]\n", "name is required"},
		{"no description", "name: x\nsteps: [{action: load, address: a}]\n", "description is required"},
		{"no steps", "name: x\ndescription: y\n", "steps list is required"},
		{"unknown action", "name: x\ndescription: y\nsteps: [{action: edit}]\n", `unknown action "edit"`},
		{"missing as", "name: x\ndescription: y\nsteps: [{action: store, text: hi}]\n", "as is required"},
		{"unknown identity", "name: x\ndescription: y\nidentities: [alice]\nsteps: [{action: store, as: eve}]\n", `unknown identity "eve"`},
		{"missing address", "name: x\ndescription: y\nidentities: [a]\nsteps: [{action: close, as: a}]\n", "address is required"},
		{"text and text_len", "name: x\ndescription: y\nidentities: [a]\nsteps: [{action: store, as: a, text: hi, text_len: 3}]\n", "mutually exclusive"},
		{"duplicate identity", "name: x\ndescription: y\nidentities: [a, a]\nsteps: [{action: load, address: z}]\n", "duplicate identity"},
		{"fund unknown", "name: x\ndescription: y\nfund: {eve: 1}\nsteps: [{action: load, address: z}]\n", "fund: unknown identity"},
		{"duplicate save", "name: x\ndescription: y\nidentities: [a]\nsteps: [{action: derive, as: a, save: m}, {action: derive, as: a, save: m}]\n", "already saved"},
		{"bad assertion", "name: x\ndescription: y\nsteps: [{action: load, address: z}]\nassertions: [{type: trace_order}]\n", "unknown assertion type"},
		{"balance unknown identity", "name: x\ndescription: y\nsteps: [{action: load, address: z}]\nassertions: [{type: balance, identity: eve}]\n", "unknown identity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
