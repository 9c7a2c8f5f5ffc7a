package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// BalanceResult is the output of fund and balance.
type BalanceResult struct {
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

func (r BalanceResult) String() string {
	return fmt.Sprintf("%s: %d", r.Owner, r.Balance)
}

// NewFundCommand creates the fund command.
func NewFundCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <amount> [pubkey]",
		Short: "Credit a deposit balance",
		Long: `Credit amount to the deposit balance of pubkey (default: the wallet).

Memo creation debits the author's balance by the storage deposit;
closing the memo refunds it. This command is a local faucet.

Example:
  memostore fund 1000000
  memostore fund 500 5498c5781e26ca44305e8f73f6d9842af4caf0e555b1d9a7424ab15c39319de4`,
		Args: rangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}
			owner, err := opts.pubkeyArg(args, 1)
			if err != nil {
				return err
			}

			s, err := opts.openSession()
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			bal, err := s.store.Fund(cmd.Context(), owner, amount)
			if err != nil {
				return WrapExitError(ExitFailure, "fund failed", err)
			}
			opts.logger.Debug("funded", "owner", owner.Short(), "amount", amount, "balance", bal)
			return opts.formatter(cmd).Success(BalanceResult{Owner: owner.String(), Balance: bal})
		},
	}
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [pubkey]",
		Short: "Show a deposit balance",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := opts.pubkeyArg(args, 0)
			if err != nil {
				return err
			}

			s, err := opts.openSession()
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			bal, err := s.store.Balance(cmd.Context(), owner)
			if err != nil {
				return WrapExitError(ExitFailure, "balance failed", err)
			}
			return opts.formatter(cmd).Success(BalanceResult{Owner: owner.String(), Balance: bal})
		},
	}
}
