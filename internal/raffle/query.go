package raffle

import (
	"context"

	"tikka/internal/ledger"
)

func (c *Contract) GetRaffle(ctx context.Context, raffleID uint64) (*Raffle, error) {
	var raffle *Raffle
	err := c.view(ctx, func(tx ReadTx) error {
		var err error
		raffle, err = tx.Raffle(raffleID)
		return err
	})
	return raffle, err
}

// GetTickets returns the buyer of every ticket; element i holds ticket i+1.
func (c *Contract) GetTickets(ctx context.Context, raffleID uint64) ([]ledger.Address, error) {
	var buyers []ledger.Address
	err := c.view(ctx, func(tx ReadTx) error {
		if _, err := tx.Raffle(raffleID); err != nil {
			return err
		}
		tickets, err := tx.Tickets(raffleID)
		if err != nil {
			return err
		}
		buyers = make([]ledger.Address, 0, len(tickets))
		for _, ticket := range tickets {
			buyers = append(buyers, ticket.Buyer)
		}
		return nil
	})
	return buyers, err
}

func (c *Contract) GetTicketsOf(ctx context.Context, raffleID uint64, buyer ledger.Address) ([]Ticket, error) {
	var tickets []Ticket
	err := c.view(ctx, func(tx ReadTx) error {
		if _, err := tx.Raffle(raffleID); err != nil {
			return err
		}
		var err error
		tickets, err = tx.TicketsOf(raffleID, buyer)
		return err
	})
	return tickets, err
}

// ListRaffles pages through raffles in id order, starting after afterID.
func (c *Contract) ListRaffles(ctx context.Context, afterID uint64, limit int) ([]*Raffle, error) {
	var raffles []*Raffle
	err := c.view(ctx, func(tx ReadTx) error {
		var err error
		raffles, err = tx.Raffles(afterID, limit)
		return err
	})
	return raffles, err
}

func (c *Contract) GetPlatform(ctx context.Context) (*Platform, error) {
	var platform *Platform
	err := c.view(ctx, func(tx ReadTx) error {
		var err error
		platform, err = tx.Platform()
		return err
	})
	return platform, err
}

func (c *Contract) Balance(ctx context.Context, token, account ledger.Address) (ledger.Amount, error) {
	var balance ledger.Amount
	err := c.view(ctx, func(tx ReadTx) error {
		var err error
		balance, err = tx.Balance(token, account)
		return err
	})
	return balance, err
}
