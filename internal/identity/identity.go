// Package identity manages the caller's key pair.
//
// Key files hold the 64-byte ed25519 private key (seed followed by public
// key) as a JSON array of integers, the format Solana-style wallets write.
// The public half is the author identity stamped on memo records.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/memostore/internal/address"
)

// NamedDomain prefixes the hash used by Named.
const NamedDomain = "memostore/identity/v1"

// ErrKeyExists is returned by Save when the file is already present and
// overwrite was not requested.
var ErrKeyExists = errors.New("key file already exists")

// Signer is the authenticated caller. The service trusts PublicKey as the
// author of every request it makes.
type Signer interface {
	PublicKey() address.Pubkey
}

// Keypair is an ed25519 key pair.
type Keypair struct {
	priv ed25519.PrivateKey
}

var _ Signer = (*Keypair)(nil)

// Generate creates a key pair from the system random source.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// FromSeed derives a key pair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// PublicKey returns the public half.
func (k *Keypair) PublicKey() address.Pubkey {
	var p address.Pubkey
	copy(p[:], k.priv.Public().(ed25519.PublicKey))
	return p
}

// Load reads a key file.
func Load(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key file %s: expected %d bytes, got %d", path, ed25519.PrivateKeySize, len(raw))
	}

	b := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("key file %s: byte %d out of range: %d", path, i, v)
		}
		b[i] = byte(v)
	}

	kp, err := FromSeed(b[:ed25519.SeedSize])
	if err != nil {
		return nil, err
	}
	if string(kp.priv[ed25519.SeedSize:]) != string(b[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("key file %s: public key does not match seed", path)
	}
	return kp, nil
}

// Save writes the key pair to path with owner-only permissions, creating
// parent directories as needed.
func (k *Keypair) Save(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrKeyExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	raw := make([]int, len(k.priv))
	for i, b := range k.priv {
		raw[i] = int(b)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic replaces path with data. The temp file is created 0600, so
// the final file is owner-only even when it replaces a looser one.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".id-*.json")
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace key file: %w", err)
	}
	return nil
}

// DefaultPath returns ~/.config/memostore/id.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".config", "memostore", "id.json"), nil
}

// Named returns a stable public identity for a human-readable name. The
// harness uses it so scenarios can say "alice" instead of a hex key. Named
// identities have no private key.
func Named(name string) address.Pubkey {
	h := sha256.New()
	h.Write([]byte(NamedDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(name))

	var p address.Pubkey
	copy(p[:], h.Sum(nil))
	return p
}

// Static is a Signer with a fixed public key.
type Static address.Pubkey

// PublicKey returns the fixed key.
func (s Static) PublicKey() address.Pubkey {
	return address.Pubkey(s)
}
