package raffle

import (
	"context"
	"fmt"

	"tikka/internal/ledger"
)

// ClaimPrize pays the prize minus the platform fee to the winner and returns
// the net amount. The fee goes to the treasury, or accrues in escrow for the
// admin to withdraw while no treasury is set.
func (c *Contract) ClaimPrize(ctx context.Context, raffleID uint64, winner ledger.Address) (ledger.Amount, error) {
	var net ledger.Amount
	err := c.update(ctx, "claim_prize", func(o *op) error {
		raffle, err := o.raffle(raffleID)
		if err != nil {
			return err
		}
		switch {
		case raffle.Status == StatusClaimed || raffle.PrizeClaimed:
			return fmt.Errorf("%w: prize of raffle %d already claimed", ErrAlreadyProcessed, raffleID)
		case raffle.Status != StatusFinalized:
			return fmt.Errorf("%w: raffle %d is %s", ErrInvalidState, raffleID, raffle.Status)
		case raffle.Winner == nil || *raffle.Winner != winner:
			return ErrUnauthorized
		}

		platform, err := o.tx.Platform()
		if err != nil {
			return err
		}

		fee := ledger.Fee(raffle.PrizeAmount, raffle.FeeBP)
		net = raffle.PrizeAmount.Sub(fee)
		if net.IsPositive() {
			if err := o.move(raffle.PaymentToken, o.escrow, winner, net); err != nil {
				return err
			}
		}

		var treasury *ledger.Address
		if fee.IsPositive() {
			if platform.Treasury != nil {
				account := *platform.Treasury
				treasury = &account
				if err := o.move(raffle.PaymentToken, o.escrow, account, fee); err != nil {
					return err
				}
			} else {
				platform.SetAccruedFee(raffle.PaymentToken, platform.AccruedFee(raffle.PaymentToken).Add(fee))
				if err := o.tx.PutPlatform(platform); err != nil {
					return err
				}
			}
		}

		raffle.PrizeClaimed = true
		raffle.Status = StatusClaimed
		if err := o.save(raffle); err != nil {
			return err
		}

		emitTransition(o.emitter, raffleID, PrizeClaimed{
			RaffleID:    raffleID,
			Winner:      winner,
			GrossAmount: raffle.PrizeAmount,
			NetAmount:   net,
			PlatformFee: fee,
			Treasury:    treasury,
			ClaimedAt:   o.now.Timestamp,
		}, StatusFinalized, StatusClaimed, o.now.Timestamp)
		return nil
	})
	if err != nil {
		return ledger.ZeroAmount(), err
	}
	return net, nil
}

// WithdrawProceeds pays the ticket revenue of a drawn raffle to its creator,
// once.
func (c *Contract) WithdrawProceeds(ctx context.Context, raffleID uint64, creator ledger.Address) (ledger.Amount, error) {
	var amount ledger.Amount
	err := c.update(ctx, "withdraw_proceeds", func(o *op) error {
		raffle, err := o.raffle(raffleID)
		if err != nil {
			return err
		}
		switch {
		case raffle.ProceedsWithdrawn:
			return fmt.Errorf("%w: proceeds of raffle %d already withdrawn", ErrAlreadyProcessed, raffleID)
		case raffle.Status != StatusFinalized && raffle.Status != StatusClaimed:
			return fmt.Errorf("%w: raffle %d is %s", ErrInvalidState, raffleID, raffle.Status)
		case raffle.Creator != creator:
			return ErrUnauthorized
		}

		amount, err = ledger.MulAmount(raffle.TicketPrice, uint64(raffle.TicketsSold))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOverflow, err)
		}
		if amount.IsPositive() {
			if err := o.move(raffle.PaymentToken, o.escrow, creator, amount); err != nil {
				return err
			}
		}

		raffle.ProceedsWithdrawn = true
		if err := o.save(raffle); err != nil {
			return err
		}

		o.emit(raffleID, ProceedsWithdrawn{
			RaffleID:  raffleID,
			Creator:   creator,
			Amount:    amount,
			Token:     raffle.PaymentToken,
			Timestamp: o.now.Timestamp,
		})
		return nil
	})
	if err != nil {
		return ledger.ZeroAmount(), err
	}
	return amount, nil
}
