package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRent_Deposit(t *testing.T) {
	tests := []struct {
		name string
		rent Rent
		size int
		want uint64
	}{
		{"default small", DefaultRent(), 62, (128 + 62) * 6960},
		{"no base", Rent{PerByte: 2}, 10, 20},
		{"disabled", Rent{BaseBytes: 128}, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rent.Deposit(tt.size))
		})
	}
}

func TestRent_Enabled(t *testing.T) {
	assert.True(t, DefaultRent().Enabled())
	assert.False(t, Rent{}.Enabled())
}
