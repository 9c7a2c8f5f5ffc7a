package cli

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/memostore/internal/address"
	"github.com/roach88/memostore/internal/memo"
)

// nonceBits bounds generated nonces. 48-bit values survive JSON consumers
// that hold numbers as doubles.
const nonceBits = 48

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Nonce uint64
}

// MemoResult describes a stored memo.
type MemoResult struct {
	Address   string `json:"address"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Nonce     uint64 `json:"nonce"`
	Bump      uint8  `json:"bump"`
	Timestamp int64  `json:"timestamp"`
	Space     int    `json:"space"`
}

func (r MemoResult) String() string {
	return fmt.Sprintf("address:   %s\nauthor:    %s\nnonce:     %d\nbump:      %d\ntimestamp: %d\nspace:     %d\ntext:      %s",
		r.Address, r.Author, r.Nonce, r.Bump, r.Timestamp, r.Space, r.Text)
}

func memoResult(addr address.Pubkey, rec memo.Record) MemoResult {
	return MemoResult{
		Address:   addr.String(),
		Author:    rec.Author.String(),
		Text:      rec.Text,
		Nonce:     rec.Nonce,
		Bump:      rec.Bump,
		Timestamp: rec.Timestamp,
		Space:     rec.Space(),
	}
}

// randomNonce returns a uniformly random nonce below 2^48.
func randomNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:nonceBits/8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <text>",
		Short: "Store a memo",
		Long: `Store a memo authored by the wallet key.

The memo address is derived from the author and the nonce. Without
--nonce a random 48-bit nonce is chosen. Text must be 1 to 280 bytes.

Example:
  memostore create "hello world"
  memostore create "pinned" --nonce 1 --format json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Nonce, "nonce", 0, "nonce (random if omitted)")

	return cmd
}

func runCreate(opts *CreateOptions, text string, cmd *cobra.Command) error {
	signer, err := opts.signer()
	if err != nil {
		return err
	}

	nonce := opts.Nonce
	if !cmd.Flags().Changed("nonce") {
		if nonce, err = randomNonce(); err != nil {
			return WrapExitError(ExitFailure, "failed to generate nonce", err)
		}
	}

	s, err := opts.openSession()
	if err != nil {
		return err
	}
	defer s.Close(cmd.Context())

	author := signer.PublicKey()
	addr, err := s.service.Create(cmd.Context(), author, nonce, text)
	if err != nil {
		return operationError("create failed", err)
	}
	opts.logger.Debug("memo created", "address", addr.Short(), "author", author.Short(), "nonce", nonce)

	rec, err := s.service.Load(cmd.Context(), addr)
	if err != nil {
		return operationError("reload failed", err)
	}
	return opts.formatter(cmd).Success(memoResult(addr, rec))
}

// CloseResult describes a closed memo.
type CloseResult struct {
	Address string `json:"address"`
	Author  string `json:"author"`
	Refund  uint64 `json:"refund"`
}

func (r CloseResult) String() string {
	return fmt.Sprintf("closed %s, refunded %d to %s", r.Address, r.Refund, r.Author)
}

// NewCloseCommand creates the close command.
func NewCloseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close <address>",
		Short: "Close a memo and refund its deposit",
		Long: `Close the memo at address. Only its author may close it; the
storage deposit is refunded to the author.

Example:
  memostore close 68e5f8274a5c75e60b13067efd21bc16dd94312292d688777b2362951eb851f0`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := address.ParsePubkey(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid address", err)
			}
			signer, err := opts.signer()
			if err != nil {
				return err
			}

			s, err := opts.openSession()
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			res, err := s.service.Delete(cmd.Context(), signer.PublicKey(), addr)
			if err != nil {
				return operationError("close failed", err)
			}
			return opts.formatter(cmd).Success(CloseResult{
				Address: res.Address.String(),
				Author:  res.Author.String(),
				Refund:  res.Refund,
			})
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <address>",
		Short: "Print a stored memo",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := address.ParsePubkey(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid address", err)
			}

			s, err := opts.openSession()
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			rec, err := s.service.Load(cmd.Context(), addr)
			if err != nil {
				return operationError("show failed", err)
			}
			return opts.formatter(cmd).Success(memoResult(addr, rec))
		},
	}
}

// DeriveResult is the offline address of (author, nonce).
type DeriveResult struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

func (r DeriveResult) String() string {
	return fmt.Sprintf("%s (bump %d)", r.Address, r.Bump)
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "derive <author> <nonce>",
		Short: "Compute a memo address without touching storage",
		Long: `Compute the address a memo by author with nonce would take, assuming
no colliding allocation exists.

Example:
  memostore derive $(memostore whoami --format json | jq -r .data.pubkey) 1`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			author, err := address.ParsePubkey(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid author", err)
			}
			nonce, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid nonce", err)
			}
			program, err := opts.config.Program()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid program id", err)
			}

			addr, bump, err := address.FindAddress(memo.Namespace, memo.Seeds(author, nonce), program, nil)
			if err != nil {
				return WrapExitError(ExitFailure, "derive failed", err)
			}
			return opts.formatter(cmd).Success(DeriveResult{Address: addr.String(), Bump: bump})
		},
	}
}
