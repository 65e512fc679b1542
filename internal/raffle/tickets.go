package raffle

import (
	"context"
	"fmt"

	"tikka/internal/ledger"
)

func (c *Contract) BuyTicket(ctx context.Context, raffleID uint64, buyer ledger.Address) (uint32, error) {
	ids, err := c.buy(ctx, "buy_ticket", raffleID, buyer, 1)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// BuyTickets sells quantity tickets in one call. The ids are contiguous.
func (c *Contract) BuyTickets(ctx context.Context, raffleID uint64, buyer ledger.Address, quantity uint32) ([]uint32, error) {
	return c.buy(ctx, "buy_tickets", raffleID, buyer, quantity)
}

func (c *Contract) buy(ctx context.Context, operation string, raffleID uint64, buyer ledger.Address, quantity uint32) ([]uint32, error) {
	var ids []uint32
	err := c.update(ctx, operation, func(o *op) error {
		raffle, err := o.raffle(raffleID)
		if err != nil {
			return err
		}
		platform, err := o.tx.Platform()
		if err != nil {
			return err
		}

		switch {
		case platform.Paused:
			return ErrPaused
		case buyer == "":
			return fmt.Errorf("%w: buyer is empty", ErrInvalidParameters)
		case buyer == o.escrow:
			return fmt.Errorf("%w: escrow cannot buy tickets", ErrInvalidParameters)
		case quantity == 0:
			return fmt.Errorf("%w: quantity must be positive", ErrInvalidParameters)
		case raffle.Status != StatusActive:
			return fmt.Errorf("%w: raffle %d is %s", ErrInvalidState, raffleID, raffle.Status)
		case raffle.EndTime != 0 && o.now.Timestamp >= raffle.EndTime:
			return ErrExpired
		case uint64(raffle.TicketsSold)+uint64(quantity) > uint64(raffle.MaxTickets):
			return fmt.Errorf("%w: %d of %d sold, %d requested", ErrSoldOut, raffle.TicketsSold, raffle.MaxTickets, quantity)
		}

		if !raffle.AllowMultiple {
			if quantity > 1 {
				return fmt.Errorf("%w: raffle %d sells one ticket per account", ErrDuplicateTicket, raffleID)
			}
			held, err := o.tx.TicketsOf(raffleID, buyer)
			if err != nil {
				return err
			}
			if len(held) > 0 {
				return fmt.Errorf("%w: %s already holds ticket %d", ErrDuplicateTicket, buyer, held[0].Index)
			}
		}

		total, err := ledger.MulAmount(raffle.TicketPrice, uint64(quantity))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOverflow, err)
		}
		if err := o.move(raffle.PaymentToken, buyer, o.escrow, total); err != nil {
			return err
		}

		ids = make([]uint32, 0, quantity)
		tickets := make([]Ticket, 0, quantity)
		for i := uint32(1); i <= quantity; i++ {
			index := raffle.TicketsSold + i
			ids = append(ids, index)
			tickets = append(tickets, Ticket{
				RaffleID:    raffleID,
				Index:       index,
				Buyer:       buyer,
				PurchasedAt: o.now.Timestamp,
			})
		}
		raffle.TicketsSold += quantity

		if err := o.save(raffle); err != nil {
			return err
		}
		if err := o.tx.PutTickets(tickets); err != nil {
			return err
		}

		o.emit(raffleID, TicketPurchased{
			RaffleID:  raffleID,
			Buyer:     buyer,
			TicketIDs: ids,
			Quantity:  quantity,
			TotalPaid: total,
			Timestamp: o.now.Timestamp,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RefundTickets pays back every unrefunded ticket buyer holds in a cancelled
// raffle and returns their ids.
func (c *Contract) RefundTickets(ctx context.Context, raffleID uint64, buyer ledger.Address) ([]uint32, error) {
	var ids []uint32
	err := c.update(ctx, "refund_tickets", func(o *op) error {
		raffle, err := o.raffle(raffleID)
		if err != nil {
			return err
		}
		if raffle.Status != StatusCancelled {
			return fmt.Errorf("%w: raffle %d is %s", ErrInvalidState, raffleID, raffle.Status)
		}

		held, err := o.tx.TicketsOf(raffleID, buyer)
		if err != nil {
			return err
		}
		if len(held) == 0 {
			return fmt.Errorf("%w: %s holds no tickets in raffle %d", ErrUnauthorized, buyer, raffleID)
		}

		var pending []Ticket
		for _, ticket := range held {
			if !ticket.Refunded {
				ticket.Refunded = true
				pending = append(pending, ticket)
			}
		}
		if len(pending) == 0 {
			return fmt.Errorf("%w: tickets of %s already refunded", ErrAlreadyProcessed, buyer)
		}

		total, err := ledger.MulAmount(raffle.TicketPrice, uint64(len(pending)))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOverflow, err)
		}
		if err := o.move(raffle.PaymentToken, o.escrow, buyer, total); err != nil {
			return err
		}

		raffle.RefundedTickets += uint32(len(pending))
		if err := o.save(raffle); err != nil {
			return err
		}
		if err := o.tx.PutTickets(pending); err != nil {
			return err
		}

		ids = make([]uint32, 0, len(pending))
		for _, ticket := range pending {
			ids = append(ids, ticket.Index)
			o.emit(raffleID, TicketRefunded{
				RaffleID:  raffleID,
				Buyer:     buyer,
				TicketID:  ticket.Index,
				Amount:    raffle.TicketPrice,
				Timestamp: o.now.Timestamp,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
