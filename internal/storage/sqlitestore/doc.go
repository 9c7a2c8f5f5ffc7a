// Package sqlitestore provides SQLite-backed durable storage for memo
// allocations.
//
// Tables:
//   - allocations: one row per allocated address with its raw bytes, owner and deposit
//   - balances: spendable deposit balance per owner
//   - clock: the persisted logical slot counter
//
// Allocate, Deallocate and Fund each run in one transaction, so a failure at
// any step leaves no partial write. The primary key on allocations.address is
// the allocate-at-address primitive: a second insert for the same address
// loses with storage.ErrAlreadyInUse.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - one open connection: SQLite has a single writer
//
// Balances are stored as INTEGER, which is signed 64-bit in SQLite; amounts
// above math.MaxInt64 are rejected.
package sqlitestore
