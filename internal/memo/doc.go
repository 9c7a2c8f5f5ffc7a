// Package memo implements the memo record store.
//
// A memo is a short text record owned by its author and addressed by
// (author, nonce). The package holds the persisted layout (Record), the
// content check run before any allocation (Validate), the error taxonomy,
// and Service, which drives the create and delete lifecycle against the
// storage, clock and notification collaborators.
//
// # Persisted layout
//
// Little-endian, fixed prefix plus variable tail:
//
//	[8 type tag][32 author][4 text length][text][8 timestamp][8 nonce][1 bump]
//
// The storage allocated for a record is exactly Space(len(text)) bytes.
//
// # Addressing
//
// Record addresses are derived with internal/address under the "memo"
// namespace from the key parts [author, little-endian nonce]. Two authors
// may use the same nonce; their addresses differ.
package memo
