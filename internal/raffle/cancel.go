package raffle

import (
	"context"
	"fmt"

	"tikka/internal/ledger"
)

// CancelRaffle stops a raffle that has not been drawn and returns a deposited
// prize to the creator. Ticket holders reclaim their payments with
// RefundTickets.
func (c *Contract) CancelRaffle(ctx context.Context, raffleID uint64, creator ledger.Address, reason string) error {
	return c.update(ctx, "cancel_raffle", func(o *op) error {
		raffle, err := o.raffle(raffleID)
		if err != nil {
			return err
		}
		if raffle.Status != StatusProposed && raffle.Status != StatusActive {
			return fmt.Errorf("%w: raffle %d is %s", ErrInvalidState, raffleID, raffle.Status)
		}
		if raffle.Creator != creator {
			return ErrUnauthorized
		}
		return cancel(o, raffle, reason)
	})
}

func cancel(o *op, raffle *Raffle, reason string) error {
	refunded := ledger.ZeroAmount()
	if raffle.PrizeDeposited {
		if err := o.move(raffle.PaymentToken, o.escrow, raffle.Creator, raffle.PrizeAmount); err != nil {
			return err
		}
		refunded = raffle.PrizeAmount
	}

	from := raffle.Status
	raffle.Status = StatusCancelled
	if err := o.save(raffle); err != nil {
		return err
	}

	emitTransition(o.emitter, raffle.ID, RaffleCancelled{
		RaffleID:      raffle.ID,
		Creator:       raffle.Creator,
		Reason:        reason,
		TicketsSold:   raffle.TicketsSold,
		PrizeRefunded: refunded,
		Timestamp:     o.now.Timestamp,
	}, from, StatusCancelled, o.now.Timestamp)
	return nil
}
