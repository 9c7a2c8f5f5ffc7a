package memo

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/memostore/internal/address"
)

func testKey(fill byte) address.Pubkey {
	var p address.Pubkey
	for i := range p {
		p[i] = fill
	}
	return p
}

func sampleRecord() Record {
	return Record{
		Author:    testKey(0xAA),
		Text:      "hello",
		Timestamp: 1_700_000_000,
		Nonce:     1,
		Bump:      254,
	}
}

func TestTag_IsAccountDiscriminator(t *testing.T) {
	sum := sha256.Sum256([]byte("account:Memo"))
	assert.Equal(t, sum[:TagLen], Tag[:])
}

func TestSpace(t *testing.T) {
	assert.Equal(t, 8+32+4+8+8+1, Space(0))
	assert.Equal(t, 8+32+4+5+8+8+1, Space(5))
	assert.Equal(t, 8+32+4+MaxTextLen+8+8+1, Space(MaxTextLen))
	assert.Equal(t, Space(5), sampleRecord().Space())
}

func TestRecord_MarshalLayout(t *testing.T) {
	r := sampleRecord()
	buf := r.Marshal()
	require.Len(t, buf, r.Space())

	assert.Equal(t, Tag[:], buf[0:8])
	assert.Equal(t, r.Author[:], buf[8:40])
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(buf[40:44]))
	assert.Equal(t, "hello", string(buf[44:49]))
	assert.Equal(t, uint64(1_700_000_000), binary.LittleEndian.Uint64(buf[49:57]))
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(buf[57:65]))
	assert.Equal(t, byte(254), buf[65])
}

func TestRecord_RoundTrip(t *testing.T) {
	tests := []Record{
		sampleRecord(),
		{Author: testKey(0x01), Text: "x", Timestamp: -1, Nonce: 0, Bump: 0},
		{Author: testKey(0xFF), Text: strings.Repeat("é", MaxTextLen/2), Nonce: ^uint64(0), Bump: 255},
	}
	for _, r := range tests {
		got, err := Unmarshal(r.Marshal())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
}

func TestRecord_MarshalToRejectsWrongSize(t *testing.T) {
	r := sampleRecord()
	assert.Error(t, r.MarshalTo(make([]byte, r.Space()-1)))
	assert.Error(t, r.MarshalTo(make([]byte, r.Space()+1)))
}

func TestUnmarshal_Rejects(t *testing.T) {
	good := sampleRecord().Marshal()

	wrongTag := append([]byte(nil), good...)
	wrongTag[0] ^= 0xFF

	overrun := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(overrun[40:], 1000)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", good[:Space(0)-1]},
		{"wrong tag", wrongTag},
		{"length overruns buffer", overrun},
		{"trailing bytes", append(append([]byte(nil), good...), 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			assert.ErrorIs(t, err, ErrNotMemo)
		})
	}
}

func TestIsMemo(t *testing.T) {
	assert.True(t, IsMemo(sampleRecord().Marshal()))
	assert.False(t, IsMemo([]byte{1, 2, 3}))
	assert.False(t, IsMemo(make([]byte, 64)))
}

func TestSeeds(t *testing.T) {
	r := sampleRecord()
	seeds := r.Seeds()
	require.Len(t, seeds, 2)
	assert.Equal(t, r.Author[:], seeds[0])
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, seeds[1])
}
