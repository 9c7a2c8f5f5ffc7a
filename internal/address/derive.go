package address

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
)

// Domain prefixes the address hash. The version suffix leaves room for a
// future algorithm change without colliding with existing addresses.
const Domain = "memostore/address/v1"

// MaxBump is the first bump tried by FindAddress.
const MaxBump = 255

// ErrAddressExhausted is returned when every bump in 0..255 yields an
// address that is already taken.
var ErrAddressExhausted = errors.New("no usable bump in 0..255")

// Probe reports whether a candidate address is occupied by an allocation
// unrelated to the key being derived. A candidate that is free, or that
// already holds the record for the same key, is not occupied.
type Probe func(candidate Pubkey) (occupied bool, err error)

// Deriver binds a namespace tag and a program identity so callers only pass
// the key parts.
type Deriver struct {
	Namespace string
	Program   Pubkey
}

// NewDeriver returns a Deriver for namespace under program.
func NewDeriver(namespace string, program Pubkey) Deriver {
	return Deriver{Namespace: namespace, Program: program}
}

// Create re-derives the address for parts at a known bump.
func (d Deriver) Create(parts [][]byte, bump uint8) Pubkey {
	return CreateAddress(d.Namespace, parts, bump, d.Program)
}

// Find searches for the first usable bump. See FindAddress.
func (d Deriver) Find(parts [][]byte, probe Probe) (Pubkey, uint8, error) {
	return FindAddress(d.Namespace, parts, d.Program, probe)
}

// Verify reports whether addr is the address of parts at bump.
func (d Deriver) Verify(parts [][]byte, bump uint8, addr Pubkey) bool {
	return VerifyAddress(d.Namespace, parts, bump, d.Program, addr)
}

// CreateAddress computes the address of (namespace, parts) at bump.
// It is a pure function: equal inputs always give equal outputs.
func CreateAddress(namespace string, parts [][]byte, bump uint8, program Pubkey) Pubkey {
	h := sha256.New()
	h.Write([]byte(Domain))
	h.Write([]byte{0x00})
	writeSeed(h, []byte(namespace))
	for _, part := range parts {
		writeSeed(h, part)
	}
	h.Write([]byte{bump})
	h.Write(program[:])

	var out Pubkey
	copy(out[:], h.Sum(nil))
	return out
}

// FindAddress walks bump from 255 down to 0 and returns the first candidate
// that probe does not report as occupied. A nil probe accepts the first
// candidate, which is what offline callers without storage access get.
func FindAddress(namespace string, parts [][]byte, program Pubkey, probe Probe) (Pubkey, uint8, error) {
	for bump := MaxBump; bump >= 0; bump-- {
		candidate := CreateAddress(namespace, parts, uint8(bump), program)
		if probe == nil {
			return candidate, uint8(bump), nil
		}
		occupied, err := probe(candidate)
		if err != nil {
			return Pubkey{}, 0, fmt.Errorf("probe bump %d: %w", bump, err)
		}
		if !occupied {
			return candidate, uint8(bump), nil
		}
	}
	return Pubkey{}, 0, ErrAddressExhausted
}

// VerifyAddress reports whether addr re-derives from the given inputs.
func VerifyAddress(namespace string, parts [][]byte, bump uint8, program Pubkey, addr Pubkey) bool {
	return CreateAddress(namespace, parts, bump, program) == addr
}

// writeSeed writes a u32 little-endian length prefix followed by the seed,
// so ("ab","c") and ("a","bc") hash differently.
func writeSeed(h hash.Hash, seed []byte) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(seed)))
	h.Write(n[:])
	h.Write(seed)
}
