package main

import (
	"github.com/spf13/cobra"

	"tikka/internal/event"
	"tikka/internal/ledger"
	"tikka/internal/raffle"
)

func (a *app) mintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Credit an account with new units of a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := addressFlag(cmd, "token")
			if err != nil {
				return err
			}
			to, err := addressFlag(cmd, "to")
			if err != nil {
				return err
			}
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			err = a.store.Update(cmd.Context(), func(tx raffle.Tx) error {
				return ledger.New(tx).Mint(token, to, amount)
			})
			if err != nil {
				return err
			}
			return a.outputBalance(cmd, token, to)
		},
	}
	cmd.Flags().String("token", "", "asset")
	cmd.Flags().String("to", "", "receiving account")
	cmd.Flags().String("amount", "", "units to mint")
	requireFlags(cmd, "token", "to", "amount")
	return cmd
}

func (a *app) outputBalance(cmd *cobra.Command, token, account ledger.Address) error {
	balance, err := a.contract.Balance(cmd.Context(), token, account)
	if err != nil {
		return err
	}
	return output(cmd, map[string]any{
		"token":   token,
		"account": account,
		"balance": balance,
	})
}

func (a *app) balanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the balance of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := addressFlag(cmd, "token")
			if err != nil {
				return err
			}
			account, err := addressFlag(cmd, "account")
			if err != nil {
				return err
			}
			return a.outputBalance(cmd, token, account)
		},
	}
	cmd.Flags().String("token", "", "asset")
	cmd.Flags().String("account", "", "account")
	requireFlags(cmd, "token", "account")
	return cmd
}

func (a *app) auditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check escrow holds exactly what the raffles owe in a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := addressFlag(cmd, "token")
			if err != nil {
				return err
			}
			report, err := a.contract.Audit(cmd.Context(), token)
			if outputErr := output(cmd, report); outputErr != nil {
				return outputErr
			}
			return err
		},
	}
	cmd.Flags().String("token", "", "asset")
	requireFlags(cmd, "token")
	return cmd
}

func (a *app) eventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			after, _ := cmd.Flags().GetUint64("after")
			limit, _ := cmd.Flags().GetInt("limit")
			records, err := a.store.Events(cmd.Context(), after, limit)
			if err != nil {
				return err
			}
			if records == nil {
				records = []event.Record{}
			}
			return output(cmd, records)
		},
	}
	cmd.Flags().Uint64("after", 0, "print events with a greater id")
	cmd.Flags().Int("limit", 100, "page size, 0 for all")
	return cmd
}
