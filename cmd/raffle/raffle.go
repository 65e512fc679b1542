package main

import (
	"github.com/spf13/cobra"

	"tikka/internal/ledger"
	"tikka/internal/raffle"
)

func (a *app) createCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a raffle in the Proposed state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creator, err := addressFlag(cmd, "creator")
			if err != nil {
				return err
			}
			token, err := addressFlag(cmd, "token")
			if err != nil {
				return err
			}
			price, err := amountFlag(cmd, "ticket-price")
			if err != nil {
				return err
			}
			prize, err := amountFlag(cmd, "prize")
			if err != nil {
				return err
			}
			var source raffle.RandomnessSource
			randomness, _ := cmd.Flags().GetString("randomness")
			if err := source.UnmarshalText([]byte(randomness)); err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			endTime, _ := cmd.Flags().GetUint64("end-time")
			maxTickets, _ := cmd.Flags().GetUint32("max-tickets")
			allowMultiple, _ := cmd.Flags().GetBool("allow-multiple")

			id, err := a.contract.Create(cmd.Context(), raffle.CreateParams{
				Creator:          creator,
				Description:      description,
				EndTime:          endTime,
				MaxTickets:       maxTickets,
				TicketPrice:      price,
				PaymentToken:     token,
				PrizeAmount:      prize,
				AllowMultiple:    allowMultiple,
				RandomnessSource: source,
			})
			if err != nil {
				return err
			}
			return output(cmd, map[string]uint64{"raffle_id": id})
		},
	}
	cmd.Flags().String("creator", "", "creator account")
	cmd.Flags().String("description", "", "free text shown to buyers")
	cmd.Flags().Uint64("end-time", 0, "unix time when sales close, 0 for none")
	cmd.Flags().Uint32("max-tickets", 0, "ticket cap")
	cmd.Flags().String("ticket-price", "", "price of one ticket")
	cmd.Flags().String("token", "", "payment and prize asset")
	cmd.Flags().String("prize", "", "prize amount")
	cmd.Flags().Bool("allow-multiple", false, "let one account buy several tickets")
	cmd.Flags().String("randomness", "internal", "internal or external")
	requireFlags(cmd, "creator", "max-tickets", "ticket-price", "token", "prize")
	return cmd
}

// raffleCommand builds a command taking a raffle id and an account flag.
func (a *app) raffleCommand(use, short, account string, fn func(cmd *cobra.Command, id uint64, account ledger.Address) (any, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <raffle-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			address, err := addressFlag(cmd, account)
			if err != nil {
				return err
			}
			result, err := fn(cmd, id, address)
			if err != nil {
				return err
			}
			if result == nil {
				if result, err = a.contract.GetRaffle(cmd.Context(), id); err != nil {
					return err
				}
			}
			return output(cmd, result)
		},
	}
	cmd.Flags().String(account, "", account+" account")
	requireFlags(cmd, account)
	return cmd
}

func (a *app) depositCommand() *cobra.Command {
	return a.raffleCommand("deposit", "Deposit the prize and open ticket sales", "creator",
		func(cmd *cobra.Command, id uint64, creator ledger.Address) (any, error) {
			return nil, a.contract.DepositPrize(cmd.Context(), id, creator)
		})
}

func (a *app) buyCommand() *cobra.Command {
	cmd := a.raffleCommand("buy", "Buy tickets", "buyer",
		func(cmd *cobra.Command, id uint64, buyer ledger.Address) (any, error) {
			quantity, _ := cmd.Flags().GetUint32("quantity")
			ids, err := a.contract.BuyTickets(cmd.Context(), id, buyer, quantity)
			if err != nil {
				return nil, err
			}
			return map[string][]uint32{"ticket_ids": ids}, nil
		})
	cmd.Flags().Uint32("quantity", 1, "number of tickets")
	return cmd
}

func (a *app) finalizeCommand() *cobra.Command {
	return a.raffleCommand("finalize", "Close sales and draw, or request randomness", "caller",
		func(cmd *cobra.Command, id uint64, caller ledger.Address) (any, error) {
			winner, err := a.contract.FinalizeRaffle(cmd.Context(), id, caller)
			if err != nil {
				return nil, err
			}
			return map[string]*ledger.Address{"winner": winner}, nil
		})
}

func (a *app) provideRandomnessCommand() *cobra.Command {
	cmd := a.raffleCommand("provide-randomness", "Answer a randomness request as the oracle", "oracle",
		func(cmd *cobra.Command, id uint64, oracle ledger.Address) (any, error) {
			seed, _ := cmd.Flags().GetUint64("seed")
			winner, err := a.contract.ProvideRandomness(cmd.Context(), id, oracle, seed)
			if err != nil {
				return nil, err
			}
			return map[string]ledger.Address{"winner": winner}, nil
		})
	cmd.Flags().Uint64("seed", 0, "random seed")
	requireFlags(cmd, "seed")
	return cmd
}

func (a *app) cancelCommand() *cobra.Command {
	cmd := a.raffleCommand("cancel", "Cancel an undrawn raffle", "creator",
		func(cmd *cobra.Command, id uint64, creator ledger.Address) (any, error) {
			reason, _ := cmd.Flags().GetString("reason")
			return nil, a.contract.CancelRaffle(cmd.Context(), id, creator, reason)
		})
	cmd.Flags().String("reason", "", "reason published with the cancellation")
	return cmd
}

func (a *app) claimCommand() *cobra.Command {
	return a.raffleCommand("claim", "Claim the prize as the winner", "winner",
		func(cmd *cobra.Command, id uint64, winner ledger.Address) (any, error) {
			net, err := a.contract.ClaimPrize(cmd.Context(), id, winner)
			if err != nil {
				return nil, err
			}
			return map[string]ledger.Amount{"net_amount": net}, nil
		})
}

func (a *app) withdrawProceedsCommand() *cobra.Command {
	return a.raffleCommand("withdraw-proceeds", "Collect ticket sales of a drawn raffle", "creator",
		func(cmd *cobra.Command, id uint64, creator ledger.Address) (any, error) {
			amount, err := a.contract.WithdrawProceeds(cmd.Context(), id, creator)
			if err != nil {
				return nil, err
			}
			return map[string]ledger.Amount{"amount": amount}, nil
		})
}

func (a *app) refundCommand() *cobra.Command {
	return a.raffleCommand("refund", "Reclaim ticket payments of a cancelled raffle", "buyer",
		func(cmd *cobra.Command, id uint64, buyer ledger.Address) (any, error) {
			ids, err := a.contract.RefundTickets(cmd.Context(), id, buyer)
			if err != nil {
				return nil, err
			}
			return map[string][]uint32{"ticket_ids": ids}, nil
		})
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <raffle-id>",
		Short: "Show a raffle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			r, err := a.contract.GetRaffle(cmd.Context(), id)
			if err != nil {
				return err
			}
			return output(cmd, r)
		},
	}
}

func (a *app) ticketsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets <raffle-id>",
		Short: "List ticket holders in ticket order, or the tickets of one buyer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			buyer, err := optionalAddressFlag(cmd, "buyer")
			if err != nil {
				return err
			}
			if buyer != nil {
				tickets, err := a.contract.GetTicketsOf(cmd.Context(), id, *buyer)
				if err != nil {
					return err
				}
				return output(cmd, tickets)
			}
			buyers, err := a.contract.GetTickets(cmd.Context(), id)
			if err != nil {
				return err
			}
			return output(cmd, buyers)
		},
	}
	cmd.Flags().String("buyer", "", "only tickets of this account")
	return cmd
}

func (a *app) listCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List raffles in id order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			after, _ := cmd.Flags().GetUint64("after")
			limit, _ := cmd.Flags().GetInt("limit")
			raffles, err := a.contract.ListRaffles(cmd.Context(), after, limit)
			if err != nil {
				return err
			}
			if raffles == nil {
				raffles = []*raffle.Raffle{}
			}
			return output(cmd, raffles)
		},
	}
	cmd.Flags().Uint64("after", 0, "list raffles with a greater id")
	cmd.Flags().Int("limit", 50, "page size, 0 for all")
	return cmd
}
