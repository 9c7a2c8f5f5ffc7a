// Package events publishes memo creation notifications.
//
// Events are fire-and-forget telemetry. They are encoded to bytes, handed to
// a Publisher and never read back by the store; a lost event does not affect
// any record. Sinks fan the bytes out to log lines, rotating files or
// in-memory recorders.
package events

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/memostore/internal/address"
)

// MemoCreatedTag prefixes an encoded MemoCreated: the first 8 bytes of
// SHA-256("event:MemoCreated").
var MemoCreatedTag = [8]byte{0xc4, 0xd0, 0x67, 0x7d, 0x3c, 0x22, 0x9c, 0x8c}

// ErrUnknownEvent is returned by Decode for payloads without a known tag.
var ErrUnknownEvent = errors.New("unknown event")

// memoCreatedFixed is the encoded size without the text bytes.
const memoCreatedFixed = 8 + 8 + 8 + 2*address.PubkeyLen + 4

// MemoCreated is published after a memo is stored.
type MemoCreated struct {
	Slot          uint64
	UnixTimestamp int64
	Memo          address.Pubkey
	Author        address.Pubkey
	Text          string
}

// Encode returns the wire form:
//
//	[8 tag][8 slot][8 unix_timestamp][32 memo][32 author][4 text length][text]
func (e MemoCreated) Encode() []byte {
	buf := make([]byte, 0, memoCreatedFixed+len(e.Text))
	buf = append(buf, MemoCreatedTag[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, e.Slot)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.UnixTimestamp))
	buf = append(buf, e.Memo[:]...)
	buf = append(buf, e.Author[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Text)))
	buf = append(buf, e.Text...)
	return buf
}

// Decode parses an encoded MemoCreated.
func Decode(data []byte) (MemoCreated, error) {
	if len(data) < memoCreatedFixed || [8]byte(data[:8]) != MemoCreatedTag {
		return MemoCreated{}, ErrUnknownEvent
	}

	var e MemoCreated
	off := 8
	e.Slot = binary.LittleEndian.Uint64(data[off:])
	off += 8
	e.UnixTimestamp = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	off += copy(e.Memo[:], data[off:])
	off += copy(e.Author[:], data[off:])
	n := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if len(data)-off != n {
		return MemoCreated{}, fmt.Errorf("decode MemoCreated: text length %d, %d bytes left", n, len(data)-off)
	}
	e.Text = string(data[off:])
	return e, nil
}

// fields is the flat view of MemoCreated used by text sinks.
func (e MemoCreated) fields() map[string]any {
	return map[string]any{
		"event":          "MemoCreated",
		"slot":           e.Slot,
		"unix_timestamp": e.UnixTimestamp,
		"memo":           e.Memo.String(),
		"author":         e.Author.String(),
		"text":           e.Text,
	}
}
