package identity

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/memostore/internal/address"
)

func TestGenerate_Unique(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey(), b.PublicKey())
	assert.False(t, a.PublicKey().IsZero())
}

func TestFromSeed_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	a, err := FromSeed(seed)
	require.NoError(t, err)
	b, err := FromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, a.PublicKey(), b.PublicKey())

	_, err = FromSeed([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestSave_OverwriteTightensPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	kp, err := Generate()
	require.NoError(t, err)
	require.NoError(t, kp.Save(path, true))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), loaded.PublicKey())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "id.json")
	kp, err := Generate()
	require.NoError(t, err)
	require.NoError(t, kp.Save(path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), loaded.PublicKey())
}

func TestSave_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	kp, err := Generate()
	require.NoError(t, err)
	require.NoError(t, kp.Save(path, false))

	err = kp.Save(path, false)
	assert.ErrorIs(t, err, ErrKeyExists)
	assert.NoError(t, kp.Save(path, true))
}

func TestLoad_FileFormat(t *testing.T) {
	kp, err := FromSeed(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, kp.Save(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw []int
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 64)
	assert.Equal(t, 1, raw[0])
	pub := kp.PublicKey()
	assert.Equal(t, int(pub[0]), raw[32])
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	good, err := FromSeed(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	goodRaw := make([]int, 64)
	for i, b := range good.priv {
		goodRaw[i] = int(b)
	}
	mismatched := append([]int(nil), goodRaw...)
	mismatched[40] ^= 0xFF

	tests := []struct {
		name    string
		content string
	}{
		{"not json", "hello"},
		{"short", "[1,2,3]"},
		{"out of range", func() string {
			r := append([]int(nil), goodRaw...)
			r[0] = 300
			b, _ := json.Marshal(r)
			return string(b)
		}()},
		{"public key mismatch", func() string {
			b, _ := json.Marshal(mismatched)
			return string(b)
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNamed(t *testing.T) {
	assert.Equal(t, Named("alice"), Named("alice"))
	assert.NotEqual(t, Named("alice"), Named("bob"))
	// Harness golden files depend on this value.
	assert.Equal(t, "c07cd1c1a1768ddce66838cfffbb8e543c2c1e459c48bf8c82425e235cbf4f62", Named("alice").String())
}

func TestStatic(t *testing.T) {
	var s Signer = Static(address.Pubkey{1})
	assert.Equal(t, address.Pubkey{1}, s.PublicKey())
}
