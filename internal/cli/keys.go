package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/memostore/internal/identity"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Force bool
}

// KeyResult is the output of keygen and whoami.
type KeyResult struct {
	Pubkey string `json:"pubkey"`
	Path   string `json:"path"`
}

func (r KeyResult) String() string {
	return fmt.Sprintf("%s (%s)", r.Pubkey, r.Path)
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new key pair",
		Long: `Generate an ed25519 key pair and write it to the wallet path.

The file is created with owner-only permissions. An existing file is
never replaced unless --force is given.

Example:
  memostore keygen
  memostore keygen --wallet ./alice.json`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing key file")

	return cmd
}

func runKeygen(opts *KeygenOptions, cmd *cobra.Command) error {
	path, err := opts.walletPath()
	if err != nil {
		return WrapExitError(ExitCommandError, "no wallet path", err)
	}

	kp, err := identity.Generate()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to generate key", err)
	}
	if err := kp.Save(path, opts.Force); err != nil {
		if errors.Is(err, identity.ErrKeyExists) {
			return WrapExitError(ExitCommandError, "refusing to overwrite key file (use --force)", err)
		}
		return WrapExitError(ExitFailure, "failed to save key", err)
	}

	opts.logger.Info("key generated", "path", path)
	return opts.formatter(cmd).Success(KeyResult{Pubkey: kp.PublicKey().String(), Path: path})
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the wallet public key",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.walletPath()
			if err != nil {
				return WrapExitError(ExitCommandError, "no wallet path", err)
			}
			s, err := opts.signer()
			if err != nil {
				return err
			}
			return opts.formatter(cmd).Success(KeyResult{Pubkey: s.PublicKey().String(), Path: path})
		},
	}
}
