// Package storage defines the allocation collaborator used by the memo
// service and the deposit accounting shared by every backend.
//
// Backends live in subpackages:
//   - sqlitestore: SQLite, the default on-disk backend
//   - boltstore: bbolt through storm
//   - memstore: in-process, for tests and throwaway runs
//
// Every mutating call is one atomic unit. If Init or Check fails, or the
// payer cannot cover the deposit, nothing is written and no balance moves.
package storage

import (
	"context"
	"errors"

	"github.com/roach88/memostore/internal/address"
)

var (
	// ErrNotFound is returned when no allocation exists at the address.
	ErrNotFound = errors.New("storage: allocation not found")

	// ErrAlreadyInUse is returned when the address is already allocated.
	ErrAlreadyInUse = errors.New("storage: address already in use")

	// ErrInsufficientFunds is returned when the payer balance is below the deposit.
	ErrInsufficientFunds = errors.New("storage: insufficient funds for deposit")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("storage: closed")
)

// AllocateRequest describes one allocate-and-initialize call.
type AllocateRequest struct {
	// Address is where the allocation is created.
	Address address.Pubkey

	// Payer is debited the deposit for Size bytes.
	Payer address.Pubkey

	// Size is the exact allocation size in bytes.
	Size int

	// Slot is the logical clock slot of the allocation, kept for diagnostics.
	Slot uint64

	// Init fills the zeroed buffer of Size bytes. An error aborts the
	// allocation and is returned unchanged.
	Init func(buf []byte) error
}

// CheckFunc inspects an allocation about to be released and returns who
// receives its deposit. An error aborts the release and is returned unchanged.
type CheckFunc func(data []byte) (recipient address.Pubkey, err error)

// Storage is the allocation collaborator.
type Storage interface {
	// Allocate atomically claims req.Address, debits the deposit from
	// req.Payer and stores the buffer produced by req.Init.
	// Returns ErrAlreadyInUse or ErrInsufficientFunds.
	Allocate(ctx context.Context, req AllocateRequest) error

	// Load returns a copy of the allocation data, or ErrNotFound.
	Load(ctx context.Context, addr address.Pubkey) ([]byte, error)

	// Deallocate atomically loads the allocation, runs check, deletes it and
	// credits its deposit to the recipient returned by check.
	// Returns the refunded amount, or ErrNotFound.
	Deallocate(ctx context.Context, addr address.Pubkey, check CheckFunc) (refund uint64, err error)

	// Balance returns the spendable balance of owner. Unknown owners have 0.
	Balance(ctx context.Context, owner address.Pubkey) (uint64, error)

	// Fund credits amount to owner and returns the new balance.
	Fund(ctx context.Context, owner address.Pubkey, amount uint64) (uint64, error)

	// Close releases backend resources.
	Close() error
}
