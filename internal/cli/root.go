package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/memostore/internal/clock"
	"github.com/roach88/memostore/internal/config"
)

// EnvConfig names the config file when --config is not given.
const EnvConfig = "MEMOSTORE_CONFIG"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	Backend    string
	Wallet     string

	// IDs overrides the trace ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs IDGenerator

	// Clock overrides the storage-backed clock (for testing).
	Clock clock.Clock

	// Lookup overrides environment lookup (for testing).
	// If nil, defaults to os.LookupEnv.
	Lookup func(string) (string, bool)

	config  config.Config
	logger  *slog.Logger
	traceID string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the memostore CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memostore",
		Short: "memostore - author-owned memos at derived addresses",
		Long: `Store short text memos at addresses derived from (author, nonce).

Each memo is allocated at exactly its size, paid for by its author's
deposit balance, and can only be closed by its author, which refunds
the deposit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file (env "+EnvConfig+")")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to database file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "storage backend (sqlite|bolt|memory)")
	cmd.PersistentFlags().StringVar(&opts.Wallet, "wallet", "", "path to key file")

	// Add subcommands
	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewFundCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewCloseCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup validates global flags, loads configuration and configures logging.
func (opts *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	path := opts.ConfigPath
	if path == "" {
		path, _ = lookup(EnvConfig)
	}

	cfg, err := config.LoadWithEnv(path, lookup)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Backend != "" {
		cfg.Backend = strings.ToLower(opts.Backend)
	}
	if opts.Wallet != "" {
		cfg.Wallet = opts.Wallet
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	opts.config = cfg

	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// formatter returns the output formatter for cmd.
func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
		TraceID:   opts.traceID,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// exactArgs is cobra.ExactArgs reporting a command error exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

// rangeArgs is cobra.RangeArgs reporting a command error exit code.
func rangeArgs(lo, hi int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.RangeArgs(lo, hi)(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are rendered on stderr, or as a JSON envelope on stdout when
// --format json is in effect.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return ExecuteWith(ctx, &RootOptions{}, args, stdout, stderr)
}

// ExecuteWith is Execute with preset options, used by tests to inject
// clocks, trace IDs and environment.
func ExecuteWith(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	ids := opts.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	opts.traceID = ids.Generate()

	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		err = WrapExitError(ExitCommandError, "invalid command", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose, TraceID: opts.traceID}
	if !isValidFormat(f.Format) {
		f.Format = "text"
	}
	reportError(f, err)
	return GetExitCode(err)
}
