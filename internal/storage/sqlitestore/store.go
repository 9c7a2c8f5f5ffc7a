package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/memostore/internal/address"
	"github.com/roach88/memostore/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - empty database
// 1 - allocations, balances, clock
const currentSchemaVersion = 1

// Store is the SQLite storage backend.
type Store struct {
	db   *sql.DB
	rent storage.Rent
}

var _ storage.Storage = (*Store)(nil)

// Open creates or opens a SQLite database at path.
// Applies required pragmas and the schema automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, rent storage.Rent) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, rent: rent}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Allocate implements storage.Storage.
func (s *Store) Allocate(ctx context.Context, req storage.AllocateRequest) error {
	buf := make([]byte, req.Size)
	if req.Init != nil {
		if err := req.Init(buf); err != nil {
			return err
		}
	}
	deposit, err := toInt64(s.rent.Deposit(req.Size))
	if err != nil {
		return fmt.Errorf("allocate: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("allocate: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// The primary key claims the address atomically.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO allocations (address, owner, data, size, deposit, slot)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, req.Address[:], req.Payer[:], buf, req.Size, deposit, int64(req.Slot))
	if err != nil {
		return fmt.Errorf("allocate: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("allocate: rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrAlreadyInUse
	}

	if deposit > 0 {
		res, err := tx.ExecContext(ctx, `
			UPDATE balances SET lamports = lamports - ?
			WHERE owner = ? AND lamports >= ?
		`, deposit, req.Payer[:], deposit)
		if err != nil {
			return fmt.Errorf("allocate: debit: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("allocate: rows affected: %w", err)
		}
		if n == 0 {
			return storage.ErrInsufficientFunds
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("allocate: commit: %w", err)
	}
	return nil
}

// Load implements storage.Storage.
func (s *Store) Load(ctx context.Context, addr address.Pubkey) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM allocations WHERE address = ?`, addr[:]).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return data, nil
}

// Deallocate implements storage.Storage.
func (s *Store) Deallocate(ctx context.Context, addr address.Pubkey, check storage.CheckFunc) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("deallocate: begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		data    []byte
		owner   []byte
		deposit int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT data, owner, deposit FROM allocations WHERE address = ?
	`, addr[:]).Scan(&data, &owner, &deposit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("deallocate: select: %w", err)
	}

	recipient, err := address.PubkeyFromBytes(owner)
	if err != nil {
		return 0, fmt.Errorf("deallocate: owner: %w", err)
	}
	if check != nil {
		if recipient, err = check(data); err != nil {
			return 0, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM allocations WHERE address = ?`, addr[:]); err != nil {
		return 0, fmt.Errorf("deallocate: delete: %w", err)
	}
	if deposit > 0 {
		if err := credit(ctx, tx, recipient, deposit); err != nil {
			return 0, fmt.Errorf("deallocate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("deallocate: commit: %w", err)
	}
	return uint64(deposit), nil
}

// Balance implements storage.Storage.
func (s *Store) Balance(ctx context.Context, owner address.Pubkey) (uint64, error) {
	var lamports int64
	err := s.db.QueryRowContext(ctx, `SELECT lamports FROM balances WHERE owner = ?`, owner[:]).Scan(&lamports)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return uint64(lamports), nil
}

// Fund implements storage.Storage.
func (s *Store) Fund(ctx context.Context, owner address.Pubkey, amount uint64) (uint64, error) {
	delta, err := toInt64(amount)
	if err != nil {
		return 0, fmt.Errorf("fund: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("fund: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := credit(ctx, tx, owner, delta); err != nil {
		return 0, fmt.Errorf("fund: %w", err)
	}
	var lamports int64
	if err := tx.QueryRowContext(ctx, `SELECT lamports FROM balances WHERE owner = ?`, owner[:]).Scan(&lamports); err != nil {
		return 0, fmt.Errorf("fund: read back: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("fund: commit: %w", err)
	}
	return uint64(lamports), nil
}

// NextSlot implements clock.SlotSource. The counter survives restarts.
func (s *Store) NextSlot(ctx context.Context) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("next slot: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE clock SET slot = slot + 1 WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("next slot: update: %w", err)
	}
	var slot int64
	if err := tx.QueryRowContext(ctx, `SELECT slot FROM clock WHERE id = 1`).Scan(&slot); err != nil {
		return 0, fmt.Errorf("next slot: select: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("next slot: commit: %w", err)
	}
	return uint64(slot), nil
}

func credit(ctx context.Context, tx *sql.Tx, owner address.Pubkey, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO balances (owner, lamports) VALUES (?, ?)
		ON CONFLICT(owner) DO UPDATE SET lamports = lamports + excluded.lamports
	`, owner[:], amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", owner.Short(), err)
	}
	return nil
}

func toInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("amount %d exceeds %d", v, int64(math.MaxInt64))
	}
	return int64(v), nil
}
