// Package boltstore is a single-file storage backend built on storm over
// bbolt. Records are msgpack-encoded; each mutating call runs in one bbolt
// write transaction.
package boltstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"

	"github.com/roach88/memostore/internal/address"
	"github.com/roach88/memostore/internal/storage"
)

// Codec is the format used to store rows in the database.
var Codec = storm.Codec(msgpack.Codec)

type allocationRow struct {
	Address string `storm:"id"`
	Owner   string
	Data    []byte
	Size    int
	Deposit uint64
	Slot    uint64
}

type balanceRow struct {
	Owner    string `storm:"id"`
	Lamports uint64
}

type clockRow struct {
	ID   int `storm:"id"`
	Slot uint64
}

const clockRowID = 1

// Store is the storm/bbolt backend.
type Store struct {
	db   *storm.DB
	rent storage.Rent
}

var _ storage.Storage = (*Store)(nil)

// Open opens or creates the database file at path.
func Open(path string, rent storage.Rent) (*Store, error) {
	db, err := storm.Open(path, Codec)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	return &Store{db: db, rent: rent}, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Allocate implements storage.Storage.
func (s *Store) Allocate(_ context.Context, req storage.AllocateRequest) error {
	buf := make([]byte, req.Size)
	if req.Init != nil {
		if err := req.Init(buf); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin(true)
	if err != nil {
		return fmt.Errorf("allocate: begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing allocationRow
	err = tx.One("Address", req.Address.String(), &existing)
	if err == nil {
		return storage.ErrAlreadyInUse
	}
	if !errors.Is(err, storm.ErrNotFound) {
		return fmt.Errorf("allocate: lookup: %w", err)
	}

	deposit := s.rent.Deposit(req.Size)
	if deposit > 0 {
		bal, err := balance(tx, req.Payer)
		if err != nil {
			return fmt.Errorf("allocate: %w", err)
		}
		if bal.Lamports < deposit {
			return storage.ErrInsufficientFunds
		}
		bal.Lamports -= deposit
		if err := tx.Save(&bal); err != nil {
			return fmt.Errorf("allocate: debit: %w", err)
		}
	}

	row := allocationRow{
		Address: req.Address.String(),
		Owner:   req.Payer.String(),
		Data:    buf,
		Size:    req.Size,
		Deposit: deposit,
		Slot:    req.Slot,
	}
	if err := tx.Save(&row); err != nil {
		return fmt.Errorf("allocate: save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("allocate: commit: %w", err)
	}
	return nil
}

// Load implements storage.Storage.
func (s *Store) Load(_ context.Context, addr address.Pubkey) ([]byte, error) {
	var row allocationRow
	err := s.db.One("Address", addr.String(), &row)
	if errors.Is(err, storm.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return row.Data, nil
}

// Deallocate implements storage.Storage.
func (s *Store) Deallocate(_ context.Context, addr address.Pubkey, check storage.CheckFunc) (uint64, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return 0, fmt.Errorf("deallocate: begin tx: %w", err)
	}
	defer tx.Rollback()

	var row allocationRow
	err = tx.One("Address", addr.String(), &row)
	if errors.Is(err, storm.ErrNotFound) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("deallocate: lookup: %w", err)
	}

	recipient, err := address.ParsePubkey(row.Owner)
	if err != nil {
		return 0, fmt.Errorf("deallocate: owner: %w", err)
	}
	if check != nil {
		if recipient, err = check(row.Data); err != nil {
			return 0, err
		}
	}

	if err := tx.DeleteStruct(&row); err != nil {
		return 0, fmt.Errorf("deallocate: delete: %w", err)
	}
	if row.Deposit > 0 {
		bal, err := balance(tx, recipient)
		if err != nil {
			return 0, fmt.Errorf("deallocate: %w", err)
		}
		bal.Lamports += row.Deposit
		if err := tx.Save(&bal); err != nil {
			return 0, fmt.Errorf("deallocate: credit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("deallocate: commit: %w", err)
	}
	return row.Deposit, nil
}

// Balance implements storage.Storage.
func (s *Store) Balance(_ context.Context, owner address.Pubkey) (uint64, error) {
	bal, err := balance(s.db, owner)
	if err != nil {
		return 0, err
	}
	return bal.Lamports, nil
}

// Fund implements storage.Storage.
func (s *Store) Fund(_ context.Context, owner address.Pubkey, amount uint64) (uint64, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return 0, fmt.Errorf("fund: begin tx: %w", err)
	}
	defer tx.Rollback()

	bal, err := balance(tx, owner)
	if err != nil {
		return 0, fmt.Errorf("fund: %w", err)
	}
	bal.Lamports += amount
	if err := tx.Save(&bal); err != nil {
		return 0, fmt.Errorf("fund: save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("fund: commit: %w", err)
	}
	return bal.Lamports, nil
}

// NextSlot implements clock.SlotSource.
func (s *Store) NextSlot(context.Context) (uint64, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return 0, fmt.Errorf("next slot: begin tx: %w", err)
	}
	defer tx.Rollback()

	row := clockRow{ID: clockRowID}
	if err := tx.One("ID", clockRowID, &row); err != nil && !errors.Is(err, storm.ErrNotFound) {
		return 0, fmt.Errorf("next slot: lookup: %w", err)
	}
	row.Slot++
	if err := tx.Save(&row); err != nil {
		return 0, fmt.Errorf("next slot: save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("next slot: commit: %w", err)
	}
	return row.Slot, nil
}

// balance loads the balance row of owner, or a zero row if none exists.
func balance(n storm.Node, owner address.Pubkey) (balanceRow, error) {
	row := balanceRow{Owner: owner.String()}
	err := n.One("Owner", row.Owner, &row)
	if err != nil && !errors.Is(err, storm.ErrNotFound) {
		return balanceRow{}, fmt.Errorf("balance %s: %w", owner.Short(), err)
	}
	return row, nil
}
