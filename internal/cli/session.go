package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/memostore/internal/address"
	"github.com/roach88/memostore/internal/clock"
	"github.com/roach88/memostore/internal/config"
	"github.com/roach88/memostore/internal/events"
	"github.com/roach88/memostore/internal/identity"
	"github.com/roach88/memostore/internal/memo"
	"github.com/roach88/memostore/internal/storage"
	"github.com/roach88/memostore/internal/storage/boltstore"
	"github.com/roach88/memostore/internal/storage/memstore"
	"github.com/roach88/memostore/internal/storage/sqlitestore"
)

// session is the storage, service and event pipeline behind one command.
type session struct {
	store   storage.Storage
	service *memo.Service
	sinks   *events.Group
	logger  *slog.Logger
}

// openStorage opens the configured backend.
func openStorage(cfg config.Config) (storage.Storage, error) {
	rent := cfg.StorageRent()
	switch cfg.Backend {
	case config.BackendSQLite:
		return sqlitestore.Open(cfg.Database, rent)
	case config.BackendBolt:
		return boltstore.Open(cfg.Database, rent)
	case config.BackendMemory:
		return memstore.New(rent), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// newSinks builds the event sink group described by cfg.
func newSinks(cfg config.Events, logger *slog.Logger) (*events.Group, error) {
	policy := events.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Retries

	group := events.NewGroup()
	if cfg.Log {
		if err := group.Add(events.WithRetry(events.NewLogSink(logger), policy)); err != nil {
			return nil, err
		}
	}
	if cfg.File != "" {
		sink := events.NewFileSink(cfg.File, events.RotateOptions{
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
		})
		if err := group.Add(events.WithRetry(sink, policy)); err != nil {
			return nil, err
		}
	}
	return group, nil
}

// openSession wires storage, clock, sinks and the memo service.
func (opts *RootOptions) openSession() (*session, error) {
	cfg := opts.config
	program, err := cfg.Program()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid program id", err)
	}

	opts.logger.Debug("opening storage", "backend", cfg.Backend, "path", cfg.Database)
	st, err := openStorage(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}

	clk := opts.Clock
	if clk == nil {
		if src, ok := st.(clock.SlotSource); ok {
			clk = clock.NewPersistent(src, time.Now)
		} else {
			clk = clock.NewLogical()
		}
	}

	sinks, err := newSinks(cfg.Events, opts.logger)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to configure event sinks", err)
	}

	return &session{
		store:   st,
		service: memo.NewService(program, st, clk, events.NewEmitter(sinks, opts.logger)),
		sinks:   sinks,
		logger:  opts.logger,
	}, nil
}

// Close flushes sinks and closes storage.
func (r *session) Close(ctx context.Context) {
	if err := r.sinks.Close(ctx); err != nil {
		r.logger.Error("error closing event sinks", "error", err)
	}
	if err := r.store.Close(); err != nil {
		r.logger.Error("error closing storage", "error", err)
	}
}

// walletPath returns the configured key file or the default location.
func (opts *RootOptions) walletPath() (string, error) {
	if opts.config.Wallet != "" {
		return opts.config.Wallet, nil
	}
	return identity.DefaultPath()
}

// signer loads the caller's key pair.
func (opts *RootOptions) signer() (identity.Signer, error) {
	path, err := opts.walletPath()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "no wallet", err)
	}
	kp, err := identity.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load wallet (run keygen first)", err)
	}
	return kp, nil
}

// pubkeyArg parses an optional pubkey argument, falling back to the wallet.
func (opts *RootOptions) pubkeyArg(args []string, i int) (address.Pubkey, error) {
	if len(args) > i {
		pk, err := address.ParsePubkey(args[i])
		if err != nil {
			return address.Pubkey{}, WrapExitError(ExitCommandError, "invalid pubkey", err)
		}
		return pk, nil
	}
	s, err := opts.signer()
	if err != nil {
		return address.Pubkey{}, err
	}
	return s.PublicKey(), nil
}
