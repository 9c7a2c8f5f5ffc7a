// Package memstore is an in-process storage backend.
//
// Allocations are spread over shards selected by the xxhash of the address,
// so loads of unrelated addresses do not contend. Mutations additionally
// hold the ledger lock, which makes allocation, balance movement and
// deletion one atomic unit.
package memstore

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/memostore/internal/address"
	"github.com/roach88/memostore/internal/storage"
)

const defaultShards = 16

type allocation struct {
	owner   address.Pubkey
	data    []byte
	deposit uint64
	slot    uint64
}

type shard struct {
	sync.RWMutex
	m map[address.Pubkey]allocation
}

// Store is the in-memory backend.
type Store struct {
	rent   storage.Rent
	shards []*shard

	// ledger serializes mutations and guards balances and slot.
	ledger   sync.Mutex
	balances map[address.Pubkey]uint64
	slot     uint64
	closed   bool
}

var _ storage.Storage = (*Store)(nil)

// New creates an empty store charging deposits per rent.
func New(rent storage.Rent) *Store {
	s := &Store{
		rent:     rent,
		shards:   make([]*shard, defaultShards),
		balances: make(map[address.Pubkey]uint64),
	}
	for i := range s.shards {
		s.shards[i] = &shard{m: make(map[address.Pubkey]allocation)}
	}
	return s
}

func (s *Store) shardFor(addr address.Pubkey) *shard {
	return s.shards[xxhash.Sum64(addr[:])%uint64(len(s.shards))]
}

// Allocate implements storage.Storage.
func (s *Store) Allocate(_ context.Context, req storage.AllocateRequest) error {
	s.ledger.Lock()
	defer s.ledger.Unlock()
	if s.closed {
		return storage.ErrClosed
	}

	sh := s.shardFor(req.Address)
	sh.RLock()
	_, exists := sh.m[req.Address]
	sh.RUnlock()
	if exists {
		return storage.ErrAlreadyInUse
	}

	buf := make([]byte, req.Size)
	if req.Init != nil {
		if err := req.Init(buf); err != nil {
			return err
		}
	}

	deposit := s.rent.Deposit(req.Size)
	if s.balances[req.Payer] < deposit {
		return storage.ErrInsufficientFunds
	}
	s.balances[req.Payer] -= deposit

	sh.Lock()
	sh.m[req.Address] = allocation{owner: req.Payer, data: buf, deposit: deposit, slot: req.Slot}
	sh.Unlock()
	return nil
}

// Load implements storage.Storage.
func (s *Store) Load(_ context.Context, addr address.Pubkey) ([]byte, error) {
	sh := s.shardFor(addr)
	sh.RLock()
	defer sh.RUnlock()

	a, ok := sh.m[addr]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out, nil
}

// Deallocate implements storage.Storage.
func (s *Store) Deallocate(_ context.Context, addr address.Pubkey, check storage.CheckFunc) (uint64, error) {
	s.ledger.Lock()
	defer s.ledger.Unlock()
	if s.closed {
		return 0, storage.ErrClosed
	}

	sh := s.shardFor(addr)
	sh.RLock()
	a, ok := sh.m[addr]
	sh.RUnlock()
	if !ok {
		return 0, storage.ErrNotFound
	}

	recipient := a.owner
	if check != nil {
		data := make([]byte, len(a.data))
		copy(data, a.data)
		r, err := check(data)
		if err != nil {
			return 0, err
		}
		recipient = r
	}

	sh.Lock()
	delete(sh.m, addr)
	sh.Unlock()
	s.balances[recipient] += a.deposit
	return a.deposit, nil
}

// Balance implements storage.Storage.
func (s *Store) Balance(_ context.Context, owner address.Pubkey) (uint64, error) {
	s.ledger.Lock()
	defer s.ledger.Unlock()
	return s.balances[owner], nil
}

// Fund implements storage.Storage.
func (s *Store) Fund(_ context.Context, owner address.Pubkey, amount uint64) (uint64, error) {
	s.ledger.Lock()
	defer s.ledger.Unlock()
	if s.closed {
		return 0, storage.ErrClosed
	}
	s.balances[owner] += amount
	return s.balances[owner], nil
}

// NextSlot implements clock.SlotSource.
func (s *Store) NextSlot(context.Context) (uint64, error) {
	s.ledger.Lock()
	defer s.ledger.Unlock()
	s.slot++
	return s.slot, nil
}

// Len returns the number of live allocations.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.RLock()
		n += len(sh.m)
		sh.RUnlock()
	}
	return n
}

// Close marks the store closed. Loads keep working on the retained data.
func (s *Store) Close() error {
	s.ledger.Lock()
	defer s.ledger.Unlock()
	s.closed = true
	return nil
}
