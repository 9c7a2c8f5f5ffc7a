package memo

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/memostore/internal/address"
)

// Namespace is the address namespace tag for memo records.
const Namespace = "memo"

// MaxTextLen is the largest accepted text, in bytes.
const MaxTextLen = 280

// Layout sizes, in bytes.
const (
	TagLen       = 8
	lenPrefixLen = 4

	// FixedSize covers every field except the text and its length prefix:
	// tag, author, timestamp, nonce and bump.
	FixedSize = TagLen + address.PubkeyLen + 8 + 8 + 1
)

// Tag identifies a memo allocation: the first 8 bytes of
// SHA-256("account:Memo").
var Tag = [TagLen]byte{0xa1, 0xe7, 0xb7, 0x60, 0x42, 0x78, 0x03, 0x50}

// ErrNotMemo is returned by Unmarshal for buffers that do not hold a
// well-formed memo record.
var ErrNotMemo = errors.New("not a memo record")

// Record is the persisted memo.
type Record struct {
	Author    address.Pubkey
	Text      string
	Timestamp int64
	Nonce     uint64
	Bump      uint8
}

// Space returns the exact allocation size for a text of textLen bytes.
func Space(textLen int) int {
	return FixedSize + lenPrefixLen + textLen
}

// Space returns the exact allocation size for r.
func (r Record) Space() int {
	return Space(len(r.Text))
}

// Seeds returns the address key parts for (author, nonce).
func Seeds(author address.Pubkey, nonce uint64) [][]byte {
	n := make([]byte, 8)
	binary.LittleEndian.PutUint64(n, nonce)
	return [][]byte{author.Bytes(), n}
}

// Seeds returns the address key parts of r.
func (r Record) Seeds() [][]byte {
	return Seeds(r.Author, r.Nonce)
}

// MarshalTo writes r into buf, which must be exactly r.Space() bytes.
func (r Record) MarshalTo(buf []byte) error {
	if len(buf) != r.Space() {
		return fmt.Errorf("marshal memo: buffer is %d bytes, record needs %d", len(buf), r.Space())
	}

	off := copy(buf, Tag[:])
	off += copy(buf[off:], r.Author[:])
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(r.Text)))
	off += lenPrefixLen
	off += copy(buf[off:], r.Text)
	binary.LittleEndian.PutUint64(buf[off:], uint64(r.Timestamp))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], r.Nonce)
	off += 8
	buf[off] = r.Bump
	return nil
}

// Marshal returns the persisted form of r.
func (r Record) Marshal() []byte {
	buf := make([]byte, r.Space())
	// Cannot fail: buf is sized from r.
	_ = r.MarshalTo(buf)
	return buf
}

// IsMemo reports whether data starts with the memo type tag.
func IsMemo(data []byte) bool {
	return len(data) >= TagLen && [TagLen]byte(data[:TagLen]) == Tag
}

// Unmarshal decodes a persisted record. Trailing bytes beyond the bump are
// rejected so a record always occupies exactly its Space.
func Unmarshal(data []byte) (Record, error) {
	if len(data) < Space(0) {
		return Record{}, fmt.Errorf("%w: %d bytes is shorter than the fixed layout", ErrNotMemo, len(data))
	}
	if !IsMemo(data) {
		return Record{}, fmt.Errorf("%w: type tag %x", ErrNotMemo, data[:TagLen])
	}

	var r Record
	off := TagLen
	copy(r.Author[:], data[off:off+address.PubkeyLen])
	off += address.PubkeyLen

	textLen := int(binary.LittleEndian.Uint32(data[off:]))
	off += lenPrefixLen
	if len(data) != Space(textLen) {
		return Record{}, fmt.Errorf("%w: text length %d does not match %d-byte buffer", ErrNotMemo, textLen, len(data))
	}
	r.Text = string(data[off : off+textLen])
	off += textLen

	r.Timestamp = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	r.Nonce = binary.LittleEndian.Uint64(data[off:])
	off += 8
	r.Bump = data[off]
	return r, nil
}
