package raffle

import (
	"context"

	"tikka/internal/event"
	"tikka/internal/ledger"
)

// Store is the durable home of raffle state. Update runs fn as one atomic
// unit: when fn or the commit fails nothing it wrote is observable.
type Store interface {
	View(ctx context.Context, fn func(tx ReadTx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
}

type ReadTx interface {
	// Raffle returns a copy of the stored record or ErrNotFound.
	Raffle(id uint64) (*Raffle, error)
	Raffles(afterID uint64, limit int) ([]*Raffle, error)

	// Tickets are ordered by index.
	Tickets(raffleID uint64) ([]Ticket, error)
	TicketsOf(raffleID uint64, buyer ledger.Address) ([]Ticket, error)

	// Platform returns the zero Platform until one is stored.
	Platform() (*Platform, error)

	Balance(token, account ledger.Address) (ledger.Amount, error)
}

type Tx interface {
	ReadTx
	ledger.Balances
	event.Sink

	// NextRaffleID allocates a fresh identifier starting at 1. An id handed out
	// by a committed transaction is never handed out again.
	NextRaffleID() (uint64, error)
	PutRaffle(raffle *Raffle) error
	// PutTickets inserts tickets or overwrites them by (raffle, index).
	PutTickets(tickets []Ticket) error
	PutPlatform(platform *Platform) error
}
