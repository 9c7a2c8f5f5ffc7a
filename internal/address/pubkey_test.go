package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParsePubkey(t *testing.T) {
	p := testKey(0xAB)

	parsed, err := ParsePubkey(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
	assert.Equal(t, "abababab", p.Short())
}

func TestParsePubkey_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not hex", "zz"},
		{"too short", "abcd"},
		{"too long", testKey(1).String() + "00"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePubkey(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestPubkey_TextRoundTripThroughYAML(t *testing.T) {
	type doc struct {
		Key Pubkey `yaml:"key"`
	}
	in := doc{Key: testKey(0x42)}

	out, err := yaml.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(out), in.Key.String())

	var back doc
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, in, back)
}

func TestPubkey_IsZero(t *testing.T) {
	assert.True(t, Pubkey{}.IsZero())
	assert.False(t, testKey(1).IsZero())
}
