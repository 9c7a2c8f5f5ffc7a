package memo

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/memostore/internal/address"
	"github.com/roach88/memostore/internal/clock"
	"github.com/roach88/memostore/internal/events"
	"github.com/roach88/memostore/internal/storage"
)

// Notifier receives creation events after a successful Create.
// events.Emitter implements it.
type Notifier interface {
	EmitMemoCreated(ctx context.Context, ev events.MemoCreated)
}

// Service creates and deletes memo records.
//
// Each call is one atomic unit against Storage: either the record and the
// deposit movement are both committed or neither is. Service holds no locks
// and never retries; a repeated Create with the same (author, nonce) fails
// with AddressAlreadyInUse.
type Service struct {
	deriver  address.Deriver
	storage  storage.Storage
	clock    clock.Clock
	notifier Notifier
}

// NewService wires a Service. program is the service instance identity mixed
// into every address. A nil notifier disables events.
func NewService(program address.Pubkey, st storage.Storage, clk clock.Clock, notifier Notifier) *Service {
	return &Service{
		deriver:  address.NewDeriver(Namespace, program),
		storage:  st,
		clock:    clk,
		notifier: notifier,
	}
}

// Program returns the service instance identity.
func (s *Service) Program() address.Pubkey {
	return s.deriver.Program
}

// Derive computes the nominal address of (author, nonce) without touching
// storage.
func (s *Service) Derive(author address.Pubkey, nonce uint64) (address.Pubkey, uint8) {
	// A nil probe cannot exhaust.
	addr, bump, _ := s.deriver.Find(Seeds(author, nonce), nil)
	return addr, bump
}

// Create validates text, derives the record address, allocates exactly
// Space(len(text)) bytes paid by author and writes the record. On success
// a MemoCreated event is published and the address is returned.
func (s *Service) Create(ctx context.Context, author address.Pubkey, nonce uint64, text string) (address.Pubkey, error) {
	if err := Validate(text); err != nil {
		return address.Pubkey{}, err
	}

	addr, bump, err := s.deriver.Find(Seeds(author, nonce), s.probe(ctx, author, nonce))
	if err != nil {
		if errors.Is(err, address.ErrAddressExhausted) {
			return address.Pubkey{}, wrap(ErrAddressExhausted, err)
		}
		return address.Pubkey{}, fmt.Errorf("derive memo address: %w", err)
	}

	tick, err := s.clock.Now(ctx)
	if err != nil {
		return address.Pubkey{}, fmt.Errorf("read clock: %w", err)
	}

	rec := Record{
		Author:    author,
		Text:      text,
		Timestamp: tick.UnixTimestamp,
		Nonce:     nonce,
		Bump:      bump,
	}
	err = s.storage.Allocate(ctx, storage.AllocateRequest{
		Address: addr,
		Payer:   author,
		Size:    rec.Space(),
		Slot:    tick.Slot,
		Init:    rec.MarshalTo,
	})
	switch {
	case errors.Is(err, storage.ErrAlreadyInUse):
		return address.Pubkey{}, wrap(ErrAddressAlreadyInUse, err)
	case errors.Is(err, storage.ErrInsufficientFunds):
		return address.Pubkey{}, wrap(ErrAllocationFailed, err)
	case err != nil:
		return address.Pubkey{}, fmt.Errorf("allocate memo: %w", err)
	}

	if s.notifier != nil {
		s.notifier.EmitMemoCreated(ctx, events.MemoCreated{
			Slot:          tick.Slot,
			UnixTimestamp: tick.UnixTimestamp,
			Memo:          addr,
			Author:        author,
			Text:          text,
		})
	}
	return addr, nil
}

// DeleteResult describes a closed memo.
type DeleteResult struct {
	Address address.Pubkey
	Author  address.Pubkey
	Refund  uint64
}

// Delete removes the memo at addr on behalf of requester and refunds its
// deposit to the author. Only the author may delete.
func (s *Service) Delete(ctx context.Context, requester, addr address.Pubkey) (DeleteResult, error) {
	var author address.Pubkey
	refund, err := s.storage.Deallocate(ctx, addr, func(data []byte) (address.Pubkey, error) {
		rec, err := s.decodeAt(addr, data)
		if err != nil {
			return address.Pubkey{}, err
		}
		if rec.Author != requester {
			return address.Pubkey{}, ErrUnauthorized
		}
		author = rec.Author
		return rec.Author, nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return DeleteResult{}, wrap(ErrNotFound, err)
	}
	if err != nil {
		var merr *Error
		if errors.As(err, &merr) {
			return DeleteResult{}, merr
		}
		return DeleteResult{}, fmt.Errorf("deallocate memo: %w", err)
	}

	return DeleteResult{Address: addr, Author: author, Refund: refund}, nil
}

// Load returns the memo stored at addr.
func (s *Service) Load(ctx context.Context, addr address.Pubkey) (Record, error) {
	data, err := s.storage.Load(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return Record{}, wrap(ErrNotFound, err)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load memo: %w", err)
	}
	return s.decodeAt(addr, data)
}

// decodeAt decodes data and checks that the record's own seeds and bump
// re-derive addr. Anything else at addr is reported as NotFound.
func (s *Service) decodeAt(addr address.Pubkey, data []byte) (Record, error) {
	rec, err := Unmarshal(data)
	if err != nil {
		return Record{}, wrap(ErrNotFound, err)
	}
	if !s.deriver.Verify(rec.Seeds(), rec.Bump, addr) {
		return Record{}, wrap(ErrNotFound, fmt.Errorf("seeds of record do not derive %s", addr))
	}
	return rec, nil
}

// probe treats a candidate as occupied only when it holds something other
// than this (author, nonce) memo. A candidate holding the same memo is left
// for Allocate to reject with AddressAlreadyInUse.
func (s *Service) probe(ctx context.Context, author address.Pubkey, nonce uint64) address.Probe {
	return func(candidate address.Pubkey) (bool, error) {
		data, err := s.storage.Load(ctx, candidate)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		rec, err := Unmarshal(data)
		if err != nil {
			return true, nil
		}
		return rec.Author != author || rec.Nonce != nonce, nil
	}
}
