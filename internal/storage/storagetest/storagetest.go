// Package storagetest holds the behavior every storage backend must share.
// Backends call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/memostore/internal/address"
	"github.com/roach88/memostore/internal/storage"
)

// Factory opens a fresh, empty backend charging deposits per rent.
// The backend is closed by the caller's t.Cleanup.
type Factory func(t *testing.T, rent storage.Rent) storage.Storage

// TestRent is small enough to reason about in assertions.
var TestRent = storage.Rent{BaseBytes: 10, PerByte: 2}

func key(b byte) address.Pubkey {
	var p address.Pubkey
	p[0] = b
	p[31] = b
	return p
}

func fill(b byte) func([]byte) error {
	return func(buf []byte) error {
		for i := range buf {
			buf[i] = b
		}
		return nil
	}
}

// Run executes the conformance suite against backends produced by open.
func Run(t *testing.T, open Factory) {
	ctx := context.Background()
	payer := key(0x01)
	other := key(0x02)
	addr := key(0xA0)

	t.Run("AllocateAndLoad", func(t *testing.T) {
		s := open(t, TestRent)
		_, err := s.Fund(ctx, payer, 1000)
		require.NoError(t, err)

		err = s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 5, Slot: 1, Init: fill(7)})
		require.NoError(t, err)

		data, err := s.Load(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, []byte{7, 7, 7, 7, 7}, data)

		bal, err := s.Balance(ctx, payer)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000-TestRent.Deposit(5)), bal)
	})

	t.Run("LoadReturnsCopy", func(t *testing.T) {
		s := open(t, storage.Rent{})
		require.NoError(t, s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 2, Init: fill(1)}))

		data, err := s.Load(ctx, addr)
		require.NoError(t, err)
		data[0] = 99

		again, err := s.Load(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 1}, again)
	})

	t.Run("LoadMissing", func(t *testing.T) {
		s := open(t, TestRent)
		_, err := s.Load(ctx, addr)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("AllocateTwiceFails", func(t *testing.T) {
		s := open(t, TestRent)
		_, err := s.Fund(ctx, payer, 1000)
		require.NoError(t, err)
		require.NoError(t, s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 3, Init: fill(1)}))
		before, _ := s.Balance(ctx, payer)

		err = s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 3, Init: fill(2)})
		assert.ErrorIs(t, err, storage.ErrAlreadyInUse)

		data, err := s.Load(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 1, 1}, data, "original allocation unchanged")
		after, _ := s.Balance(ctx, payer)
		assert.Equal(t, before, after, "no second deposit")
	})

	t.Run("ConcurrentAllocateOneWinner", func(t *testing.T) {
		s := open(t, TestRent)
		_, err := s.Fund(ctx, payer, 1000)
		require.NoError(t, err)

		const n = 8
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 5, Init: fill(byte(i + 1))})
			}(i)
		}
		wg.Wait()

		winner := -1
		for i, err := range errs {
			if err == nil {
				require.Equal(t, -1, winner, "more than one allocation succeeded")
				winner = i
				continue
			}
			assert.ErrorIs(t, err, storage.ErrAlreadyInUse)
		}
		require.NotEqual(t, -1, winner, "no allocation succeeded")

		data, err := s.Load(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(winner + 1), byte(winner + 1), byte(winner + 1), byte(winner + 1), byte(winner + 1)}, data)
		bal, err := s.Balance(ctx, payer)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000-TestRent.Deposit(5)), bal, "deposit debited once")
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		s := open(t, TestRent)
		_, err := s.Fund(ctx, payer, TestRent.Deposit(5)-1)
		require.NoError(t, err)

		err = s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 5, Init: fill(1)})
		assert.ErrorIs(t, err, storage.ErrInsufficientFunds)

		_, err = s.Load(ctx, addr)
		assert.ErrorIs(t, err, storage.ErrNotFound, "nothing allocated")
		bal, _ := s.Balance(ctx, payer)
		assert.Equal(t, TestRent.Deposit(5)-1, bal, "balance untouched")
	})

	t.Run("ZeroRentNeedsNoFunds", func(t *testing.T) {
		s := open(t, storage.Rent{})
		require.NoError(t, s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 5, Init: fill(1)}))
	})

	t.Run("InitErrorAborts", func(t *testing.T) {
		s := open(t, TestRent)
		_, err := s.Fund(ctx, payer, 1000)
		require.NoError(t, err)
		boom := errors.New("init failed")

		err = s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 5, Init: func([]byte) error { return boom }})
		assert.ErrorIs(t, err, boom)

		_, err = s.Load(ctx, addr)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		bal, _ := s.Balance(ctx, payer)
		assert.Equal(t, uint64(1000), bal)
	})

	t.Run("DeallocateRefundsRecipient", func(t *testing.T) {
		s := open(t, TestRent)
		_, err := s.Fund(ctx, payer, 1000)
		require.NoError(t, err)
		require.NoError(t, s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 5, Init: fill(3)}))

		var seen []byte
		refund, err := s.Deallocate(ctx, addr, func(data []byte) (address.Pubkey, error) {
			seen = data
			return payer, nil
		})
		require.NoError(t, err)
		assert.Equal(t, TestRent.Deposit(5), refund)
		assert.Equal(t, []byte{3, 3, 3, 3, 3}, seen)

		_, err = s.Load(ctx, addr)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		bal, _ := s.Balance(ctx, payer)
		assert.Equal(t, uint64(1000), bal, "deposit fully refunded")
	})

	t.Run("DeallocateCheckErrorKeepsAllocation", func(t *testing.T) {
		s := open(t, TestRent)
		_, err := s.Fund(ctx, payer, 1000)
		require.NoError(t, err)
		require.NoError(t, s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 5, Init: fill(3)}))
		before, _ := s.Balance(ctx, payer)
		denied := errors.New("denied")

		_, err = s.Deallocate(ctx, addr, func([]byte) (address.Pubkey, error) {
			return address.Pubkey{}, denied
		})
		assert.ErrorIs(t, err, denied)

		_, err = s.Load(ctx, addr)
		assert.NoError(t, err, "allocation still loadable")
		after, _ := s.Balance(ctx, payer)
		assert.Equal(t, before, after)
	})

	t.Run("DeallocateMissing", func(t *testing.T) {
		s := open(t, TestRent)
		_, err := s.Deallocate(ctx, addr, func([]byte) (address.Pubkey, error) {
			t.Fatal("check must not run for a missing allocation")
			return address.Pubkey{}, nil
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ReallocateAfterDeallocate", func(t *testing.T) {
		s := open(t, storage.Rent{})
		require.NoError(t, s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: payer, Size: 1, Init: fill(1)}))
		_, err := s.Deallocate(ctx, addr, func([]byte) (address.Pubkey, error) { return payer, nil })
		require.NoError(t, err)

		require.NoError(t, s.Allocate(ctx, storage.AllocateRequest{Address: addr, Payer: other, Size: 1, Init: fill(2)}))
	})

	t.Run("FundAndBalance", func(t *testing.T) {
		s := open(t, TestRent)
		bal, err := s.Balance(ctx, other)
		require.NoError(t, err)
		assert.Zero(t, bal)

		bal, err = s.Fund(ctx, other, 40)
		require.NoError(t, err)
		assert.Equal(t, uint64(40), bal)

		bal, err = s.Fund(ctx, other, 2)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), bal)
	})
}
