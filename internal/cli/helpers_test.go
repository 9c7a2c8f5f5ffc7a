package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/memostore/internal/testutil"
)

const testTraceID = "test-trace-cli"

// cliEnv is an isolated workspace for end-to-end command tests.
type cliEnv struct {
	t      *testing.T
	dir    string
	wallet string
	db     string
	env    map[string]string
	clock  *testutil.DeterministicClock
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	return &cliEnv{
		t:      t,
		dir:    dir,
		wallet: filepath.Join(dir, "id.json"),
		db:     filepath.Join(dir, "memostore.db"),
		env:    map[string]string{},
		clock:  testutil.NewDeterministicClock(),
	}
}

func (e *cliEnv) lookup(key string) (string, bool) {
	v, ok := e.env[key]
	return v, ok
}

// run executes the CLI against the workspace's wallet and database.
func (e *cliEnv) run(args ...string) (stdout, stderr string, code int) {
	e.t.Helper()
	full := append([]string{"--wallet", e.wallet, "--db", e.db}, args...)
	return e.runRaw(full...)
}

// runRaw executes the CLI without workspace defaults.
func (e *cliEnv) runRaw(args ...string) (stdout, stderr string, code int) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	opts := &RootOptions{
		IDs:    testutil.NewFixedIDGenerator(testTraceID),
		Clock:  e.clock,
		Lookup: e.lookup,
	}
	code = ExecuteWith(context.Background(), opts, args, &out, &errOut)
	return out.String(), errOut.String(), code
}

// runJSON executes with --format json and decodes the envelope.
func (e *cliEnv) runJSON(args ...string) (CLIResponse, int) {
	e.t.Helper()
	out, stderr, code := e.run(append(args, "--format", "json")...)
	var resp CLIResponse
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), "stdout=%q stderr=%q", out, stderr)
	return resp, code
}

// data returns the envelope payload as a map.
func data(t *testing.T, resp CLIResponse) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

// keygen creates the workspace wallet and returns its public key.
func (e *cliEnv) keygen() string {
	e.t.Helper()
	resp, code := e.runJSON("keygen")
	require.Equal(e.t, ExitSuccess, code)
	return data(e.t, resp)["pubkey"].(string)
}
