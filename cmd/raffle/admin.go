package main

import (
	"github.com/spf13/cobra"

	"tikka/internal/ledger"
	"tikka/internal/raffle"
)

func (a *app) initCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the platform once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := addressFlag(cmd, "admin")
			if err != nil {
				return err
			}
			treasury, err := optionalAddressFlag(cmd, "treasury")
			if err != nil {
				return err
			}
			oracle, err := optionalAddressFlag(cmd, "oracle")
			if err != nil {
				return err
			}
			feeBP, _ := cmd.Flags().GetUint32("fee-bp")

			err = a.contract.Init(cmd.Context(), raffle.InitParams{
				Admin:    admin,
				FeeBP:    feeBP,
				Treasury: treasury,
				Oracle:   oracle,
			})
			if err != nil {
				return err
			}
			return a.outputPlatform(cmd)
		},
	}
	cmd.Flags().String("admin", "", "admin account")
	cmd.Flags().Uint32("fee-bp", 0, "platform fee in basis points")
	cmd.Flags().String("treasury", "", "account receiving fees at claim time")
	cmd.Flags().String("oracle", "", "randomness oracle account")
	requireFlags(cmd, "admin")
	return cmd
}

func (a *app) outputPlatform(cmd *cobra.Command) error {
	platform, err := a.contract.GetPlatform(cmd.Context())
	if err != nil {
		return err
	}
	return output(cmd, platform)
}

func (a *app) platformCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "platform",
		Short: "Show platform settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.outputPlatform(cmd)
		},
	}
}

// adminCommand builds a command run by the admin named in --admin.
func (a *app) adminCommand(use, short string, fn func(cmd *cobra.Command, admin ledger.Address) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := addressFlag(cmd, "admin")
			if err != nil {
				return err
			}
			if err := fn(cmd, admin); err != nil {
				return err
			}
			return a.outputPlatform(cmd)
		},
	}
	cmd.Flags().String("admin", "", "admin account")
	requireFlags(cmd, "admin")
	return cmd
}

func (a *app) setOracleCommand() *cobra.Command {
	cmd := a.adminCommand("set-oracle", "Register the randomness oracle", func(cmd *cobra.Command, admin ledger.Address) error {
		oracle, err := addressFlag(cmd, "oracle")
		if err != nil {
			return err
		}
		return a.contract.SetOracle(cmd.Context(), admin, oracle)
	})
	cmd.Flags().String("oracle", "", "oracle account")
	requireFlags(cmd, "oracle")
	return cmd
}

func (a *app) setFeeCommand() *cobra.Command {
	cmd := a.adminCommand("set-fee", "Set the fee charged on raffles created from now on", func(cmd *cobra.Command, admin ledger.Address) error {
		feeBP, _ := cmd.Flags().GetUint32("fee-bp")
		return a.contract.SetFee(cmd.Context(), admin, feeBP)
	})
	cmd.Flags().Uint32("fee-bp", 0, "platform fee in basis points")
	requireFlags(cmd, "fee-bp")
	return cmd
}

func (a *app) setTreasuryCommand() *cobra.Command {
	cmd := a.adminCommand("set-treasury", "Send future fees straight to a treasury", func(cmd *cobra.Command, admin ledger.Address) error {
		treasury, err := addressFlag(cmd, "treasury")
		if err != nil {
			return err
		}
		return a.contract.SetTreasury(cmd.Context(), admin, treasury)
	})
	cmd.Flags().String("treasury", "", "treasury account")
	requireFlags(cmd, "treasury")
	return cmd
}

func (a *app) withdrawFeesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw-fees",
		Short: "Pay out fees accrued in one token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := addressFlag(cmd, "admin")
			if err != nil {
				return err
			}
			token, err := addressFlag(cmd, "token")
			if err != nil {
				return err
			}
			recipient, err := addressFlag(cmd, "recipient")
			if err != nil {
				return err
			}
			amount, err := a.contract.WithdrawFees(cmd.Context(), admin, token, recipient)
			if err != nil {
				return err
			}
			return output(cmd, map[string]ledger.Amount{"amount": amount})
		},
	}
	cmd.Flags().String("admin", "", "admin account")
	cmd.Flags().String("token", "", "fee asset")
	cmd.Flags().String("recipient", "", "account receiving the fees")
	requireFlags(cmd, "admin", "token", "recipient")
	return cmd
}

func (a *app) pauseCommand() *cobra.Command {
	return a.adminCommand("pause", "Stop raffle creation, deposits and ticket sales", func(cmd *cobra.Command, admin ledger.Address) error {
		return a.contract.Pause(cmd.Context(), admin)
	})
}

func (a *app) unpauseCommand() *cobra.Command {
	return a.adminCommand("unpause", "Resume a paused platform", func(cmd *cobra.Command, admin ledger.Address) error {
		return a.contract.Unpause(cmd.Context(), admin)
	})
}

func (a *app) proposeAdminCommand() *cobra.Command {
	cmd := a.adminCommand("propose-admin", "Offer the admin role to another account", func(cmd *cobra.Command, admin ledger.Address) error {
		proposed, err := addressFlag(cmd, "proposed")
		if err != nil {
			return err
		}
		return a.contract.ProposeAdmin(cmd.Context(), admin, proposed)
	})
	cmd.Flags().String("proposed", "", "account offered the admin role")
	requireFlags(cmd, "proposed")
	return cmd
}

func (a *app) acceptAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept-admin",
		Short: "Take over the admin role offered to caller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := addressFlag(cmd, "caller")
			if err != nil {
				return err
			}
			if err := a.contract.AcceptAdmin(cmd.Context(), caller); err != nil {
				return err
			}
			return a.outputPlatform(cmd)
		},
	}
	cmd.Flags().String("caller", "", "proposed admin account")
	requireFlags(cmd, "caller")
	return cmd
}
