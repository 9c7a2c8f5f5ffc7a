// Package address derives deterministic storage addresses.
//
// An address is the SHA-256 of a versioned domain string, a namespace tag,
// length-prefixed key parts, a one-byte bump and the program identity:
//
//	SHA256("memostore/address/v1" || 0x00 || ns || parts... || bump || program)
//
// The same inputs always produce the same address and the hash cannot be
// inverted to recover the key parts. When the nominal candidate (bump 255)
// is already taken by an unrelated allocation, FindAddress walks the bump
// down towards 0 and returns the first usable candidate. The bump is stored
// next to the record so later lookups can re-derive the exact address with
// CreateAddress instead of searching again.
package address
