package address

import (
	"encoding/hex"
	"fmt"
)

// PubkeyLen is the width of every identity and address in bytes.
const PubkeyLen = 32

// Pubkey is a fixed-width public identifier. Author identities, the program
// identity and derived record addresses all share this type.
type Pubkey [PubkeyLen]byte

// String returns the lowercase hex form.
func (p Pubkey) String() string {
	return hex.EncodeToString(p[:])
}

// Short returns the first eight hex characters, for display only.
func (p Pubkey) Short() string {
	return p.String()[:8]
}

// Bytes returns a copy of the key as a slice.
func (p Pubkey) Bytes() []byte {
	b := make([]byte, PubkeyLen)
	copy(b, p[:])
	return b
}

// IsZero reports whether every byte is zero.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePubkey decodes a 64-character hex string.
func ParsePubkey(s string) (Pubkey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("parse pubkey %q: %w", s, err)
	}
	return PubkeyFromBytes(raw)
}

// PubkeyFromBytes copies b into a Pubkey. b must be exactly PubkeyLen bytes.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeyLen {
		return p, fmt.Errorf("pubkey must be %d bytes, got %d", PubkeyLen, len(b))
	}
	copy(p[:], b)
	return p, nil
}
