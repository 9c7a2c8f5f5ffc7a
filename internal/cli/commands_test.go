package cli

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/memostore/internal/address"
	"github.com/roach88/memostore/internal/storage"
	"github.com/roach88/memostore/internal/testutil"
)

// helloDeposit is the default deposit for a 5-byte memo.
var helloDeposit = storage.DefaultRent().Deposit(66)

func TestKeygen(t *testing.T) {
	e := newCLIEnv(t)

	pub := e.keygen()
	_, err := address.ParsePubkey(pub)
	require.NoError(t, err)
	assert.FileExists(t, e.wallet)

	t.Run("refuses to overwrite", func(t *testing.T) {
		resp, code := e.runJSON("keygen")
		assert.Equal(t, ExitCommandError, code)
		assert.Contains(t, resp.Error.Message, "--force")
	})

	t.Run("force replaces the key", func(t *testing.T) {
		resp, code := e.runJSON("keygen", "--force")
		require.Equal(t, ExitSuccess, code)
		assert.NotEqual(t, pub, data(t, resp)["pubkey"])
	})
}

func TestWhoami(t *testing.T) {
	e := newCLIEnv(t)
	pub := e.keygen()

	resp, code := e.runJSON("whoami")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, pub, data(t, resp)["pubkey"])
	assert.Equal(t, e.wallet, data(t, resp)["path"])
}

func TestFundAndBalance(t *testing.T) {
	e := newCLIEnv(t)
	pub := e.keygen()

	resp, code := e.runJSON("fund", "500")
	require.Equal(t, ExitSuccess, code)
	assert.EqualValues(t, 500, data(t, resp)["balance"])

	resp, code = e.runJSON("fund", "250", pub)
	require.Equal(t, ExitSuccess, code)
	assert.EqualValues(t, 750, data(t, resp)["balance"])

	resp, code = e.runJSON("balance")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, pub, data(t, resp)["owner"])
	assert.EqualValues(t, 750, data(t, resp)["balance"])

	_, code = e.runJSON("balance", "not-a-key")
	assert.Equal(t, ExitCommandError, code)

	_, code = e.runJSON("fund", "-3")
	assert.Equal(t, ExitCommandError, code)
}

func TestCreateShowClose(t *testing.T) {
	e := newCLIEnv(t)
	pub := e.keygen()
	_, _, code := e.run("fund", "2000000")
	require.Equal(t, ExitSuccess, code)

	resp, code := e.runJSON("create", "hello", "--nonce", "1")
	require.Equal(t, ExitSuccess, code, resp.Error)
	created := data(t, resp)
	addr := created["address"].(string)
	assert.Equal(t, pub, created["author"])
	assert.Equal(t, "hello", created["text"])
	assert.EqualValues(t, 1, created["nonce"])
	assert.EqualValues(t, 255, created["bump"])
	assert.EqualValues(t, testutil.DefaultUnixTimestamp, created["timestamp"])
	assert.EqualValues(t, 66, created["space"])
	assert.Equal(t, testTraceID, resp.TraceID)

	resp, code = e.runJSON("derive", pub, "1")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, addr, data(t, resp)["address"])

	resp, code = e.runJSON("balance")
	require.Equal(t, ExitSuccess, code)
	assert.EqualValues(t, 2000000-helloDeposit, data(t, resp)["balance"])

	out, _, code := e.run("show", addr)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "text:      hello")
	assert.Contains(t, out, "author:    "+pub)

	resp, code = e.runJSON("close", addr)
	require.Equal(t, ExitSuccess, code)
	assert.EqualValues(t, helloDeposit, data(t, resp)["refund"])

	resp, code = e.runJSON("balance")
	require.Equal(t, ExitSuccess, code)
	assert.EqualValues(t, 2000000, data(t, resp)["balance"])

	resp, code = e.runJSON("show", addr)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "NotFound", resp.Error.Code)
}

func TestCreate_Errors(t *testing.T) {
	e := newCLIEnv(t)
	e.keygen()

	t.Run("insufficient deposit", func(t *testing.T) {
		resp, code := e.runJSON("create", "hello", "--nonce", "1")
		assert.Equal(t, ExitFailure, code)
		assert.Equal(t, "AllocationFailed", resp.Error.Code)
	})

	_, _, code := e.run("fund", "10000000")
	require.Equal(t, ExitSuccess, code)

	t.Run("empty text", func(t *testing.T) {
		resp, code := e.runJSON("create", "", "--nonce", "1")
		assert.Equal(t, ExitFailure, code)
		assert.Equal(t, "TextEmpty", resp.Error.Code)
		details := resp.Error.Details.(map[string]any)
		assert.EqualValues(t, 6000, details["code"])
	})

	t.Run("text too long", func(t *testing.T) {
		resp, code := e.runJSON("create", strings.Repeat("x", 281), "--nonce", "1")
		assert.Equal(t, ExitFailure, code)
		assert.Equal(t, "TextTooLong", resp.Error.Code)
	})

	t.Run("nonce in use", func(t *testing.T) {
		_, code := e.runJSON("create", "first", "--nonce", "9")
		require.Equal(t, ExitSuccess, code)
		resp, code := e.runJSON("create", "second", "--nonce", "9")
		assert.Equal(t, ExitFailure, code)
		assert.Equal(t, "AddressAlreadyInUse", resp.Error.Code)
	})

	t.Run("no wallet", func(t *testing.T) {
		_, _, code := e.runRaw("--wallet", filepath.Join(e.dir, "missing.json"), "--db", e.db, "create", "x")
		assert.Equal(t, ExitCommandError, code)
	})
}

func TestCreate_RandomNonce(t *testing.T) {
	e := newCLIEnv(t)
	e.keygen()
	_, _, code := e.run("fund", "10000000")
	require.Equal(t, ExitSuccess, code)

	first, code := e.runJSON("create", "one")
	require.Equal(t, ExitSuccess, code)
	second, code := e.runJSON("create", "two")
	require.Equal(t, ExitSuccess, code)

	n1 := data(t, first)["nonce"].(float64)
	n2 := data(t, second)["nonce"].(float64)
	assert.Less(t, n1, float64(uint64(1)<<nonceBits))
	assert.Less(t, n2, float64(uint64(1)<<nonceBits))
	assert.NotEqual(t, data(t, first)["address"], data(t, second)["address"])
}

func TestClose_OnlyAuthor(t *testing.T) {
	e := newCLIEnv(t)
	e.keygen()
	_, _, code := e.run("fund", "2000000")
	require.Equal(t, ExitSuccess, code)

	resp, code := e.runJSON("create", "mine", "--nonce", "4")
	require.Equal(t, ExitSuccess, code)
	addr := data(t, resp)["address"].(string)

	intruder := filepath.Join(e.dir, "intruder.json")
	_, _, code = e.runRaw("--wallet", intruder, "keygen")
	require.Equal(t, ExitSuccess, code)

	out, _, code := e.runRaw("--wallet", intruder, "--db", e.db, "--format", "json", "close", addr)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, `"code":"Unauthorized"`)

	_, code = e.runJSON("show", addr)
	assert.Equal(t, ExitSuccess, code)
}

func TestClose_InvalidAddress(t *testing.T) {
	e := newCLIEnv(t)
	e.keygen()
	_, stderr, code := e.run("close", "not-hex")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "invalid address")
}

func TestDerive(t *testing.T) {
	e := newCLIEnv(t)
	alice := "c07cd1c1a1768ddce66838cfffbb8e543c2c1e459c48bf8c82425e235cbf4f62"

	out, _, code := e.runRaw("derive", alice, "1")
	require.Equal(t, ExitSuccess, code)
	assert.True(t, strings.HasSuffix(out, "(bump 255)\n"), out)

	// Deterministic across invocations.
	again, _, _ := e.runRaw("derive", alice, "1")
	assert.Equal(t, out, again)

	other, _, _ := e.runRaw("derive", alice, strconv.Itoa(2))
	assert.NotEqual(t, out, other)

	_, _, code = e.runRaw("derive", alice, "minus-one")
	assert.Equal(t, ExitCommandError, code)
	_, _, code = e.runRaw("derive", "zz", "1")
	assert.Equal(t, ExitCommandError, code)
}

func TestMemoryBackendDoesNotPersist(t *testing.T) {
	e := newCLIEnv(t)
	e.keygen()

	_, _, code := e.run("--backend", "memory", "fund", "10")
	require.Equal(t, ExitSuccess, code)

	resp, code := e.runJSON("--backend", "memory", "balance")
	require.Equal(t, ExitSuccess, code)
	assert.EqualValues(t, 0, data(t, resp)["balance"])
}
