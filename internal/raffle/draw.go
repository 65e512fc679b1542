package raffle

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"tikka/internal/ledger"
)

const noTicketsReason = "no tickets sold"

// InternalWinningTicket derives the winning ticket id in [1, sold] from public
// draw data. It is reproducible by anyone and offers no unpredictability. sold
// must be positive.
func InternalWinningTicket(endTime, sequence uint64, sold uint32) uint32 {
	var input [20]byte
	binary.BigEndian.PutUint64(input[0:8], endTime)
	binary.BigEndian.PutUint64(input[8:16], sequence)
	binary.BigEndian.PutUint32(input[16:20], sold)
	digest := blake2b.Sum256(input[:])
	return uint32(binary.BigEndian.Uint64(digest[:8])%uint64(sold)) + 1
}

// ExternalWinningTicket maps an oracle seed to a ticket id in [1, sold]. sold
// must be positive.
func ExternalWinningTicket(seed uint64, sold uint32) uint32 {
	return uint32(seed%uint64(sold)) + 1
}

// FinalizeRaffle closes ticket sales. Anyone may trigger it once the raffle has
// ended or sold out. Internal raffles are drawn immediately and the winner is
// returned; External raffles wait in Drawing for the oracle and nil is
// returned. A raffle without sales follows the zero ticket policy.
func (c *Contract) FinalizeRaffle(ctx context.Context, raffleID uint64, caller ledger.Address) (*ledger.Address, error) {
	var winner *ledger.Address
	err := c.update(ctx, "finalize_raffle", func(o *op) error {
		winner = nil
		raffle, err := o.raffle(raffleID)
		if err != nil {
			return err
		}

		ended := raffle.EndTime != 0 && o.now.Timestamp >= raffle.EndTime
		switch {
		case caller == "":
			return fmt.Errorf("%w: caller is empty", ErrInvalidParameters)
		case raffle.Status != StatusActive:
			return fmt.Errorf("%w: raffle %d is %s", ErrInvalidState, raffleID, raffle.Status)
		case !ended && raffle.TicketsSold < raffle.MaxTickets:
			return ErrNotYetExpired
		}

		if raffle.TicketsSold == 0 {
			if c.zeroTickets == ZeroTicketsReject {
				return ErrZeroTickets
			}
			return cancel(o, raffle, noTicketsReason)
		}

		emitTransition(o.emitter, raffleID, DrawTriggered{
			RaffleID:         raffleID,
			TriggeredBy:      caller,
			TotalTicketsSold: raffle.TicketsSold,
			Timestamp:        o.now.Timestamp,
		}, StatusActive, StatusDrawing, o.now.Timestamp)
		raffle.Status = StatusDrawing

		if raffle.RandomnessSource == RandomnessExternal {
			platform, err := o.tx.Platform()
			if err != nil {
				return err
			}
			if platform.Oracle == nil {
				return fmt.Errorf("%w: no oracle registered", ErrInvalidState)
			}
			raffle.PendingSeed = &SeedRequest{
				Oracle:      *platform.Oracle,
				RequestedAt: o.now.Timestamp,
			}
			if err := o.save(raffle); err != nil {
				return err
			}
			o.emit(raffleID, RandomnessRequested{
				RaffleID:  raffleID,
				Oracle:    *platform.Oracle,
				Timestamp: o.now.Timestamp,
			})
			return nil
		}

		ticket := InternalWinningTicket(raffle.EndTime, o.now.Sequence, raffle.TicketsSold)
		holder, err := settle(o, raffle, ticket)
		if err != nil {
			return err
		}
		winner = &holder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return winner, nil
}

// ProvideRandomness completes an External draw with the oracle's seed and
// returns the winner.
func (c *Contract) ProvideRandomness(ctx context.Context, raffleID uint64, oracle ledger.Address, seed uint64) (ledger.Address, error) {
	var winner ledger.Address
	err := c.update(ctx, "provide_randomness", func(o *op) error {
		raffle, err := o.raffle(raffleID)
		if err != nil {
			return err
		}

		switch {
		case raffle.RandomnessSource != RandomnessExternal || raffle.PendingSeed == nil:
			return fmt.Errorf("%w: raffle %d requested no randomness", ErrInvalidState, raffleID)
		case raffle.PendingSeed.Oracle != oracle:
			return ErrUnauthorized
		case raffle.PendingSeed.Seed != nil:
			return fmt.Errorf("%w: randomness of raffle %d already provided", ErrAlreadyProcessed, raffleID)
		case raffle.Status != StatusDrawing:
			return fmt.Errorf("%w: raffle %d is %s", ErrInvalidState, raffleID, raffle.Status)
		case raffle.TicketsSold == 0:
			return ErrZeroTickets
		}

		raffle.PendingSeed.Seed = &seed
		o.emit(raffleID, RandomnessReceived{
			RaffleID:  raffleID,
			Oracle:    oracle,
			Seed:      seed,
			Timestamp: o.now.Timestamp,
		})

		winner, err = settle(o, raffle, ExternalWinningTicket(seed, raffle.TicketsSold))
		return err
	})
	if err != nil {
		return "", err
	}
	return winner, nil
}

// settle moves a Drawing raffle to Finalized with the holder of ticket as
// winner.
func settle(o *op, raffle *Raffle, ticket uint32) (ledger.Address, error) {
	tickets, err := o.tx.Tickets(raffle.ID)
	if err != nil {
		return "", err
	}
	if int(ticket) > len(tickets) || tickets[ticket-1].Index != ticket {
		return "", fmt.Errorf("%w: raffle %d has no ticket %d", ErrInvariant, raffle.ID, ticket)
	}
	holder := tickets[ticket-1].Buyer

	raffle.Winner = &holder
	raffle.WinningTicket = ticket
	raffle.Status = StatusFinalized
	if err := o.save(raffle); err != nil {
		return "", err
	}

	emitTransition(o.emitter, raffle.ID, RaffleFinalized{
		RaffleID:         raffle.ID,
		Winner:           holder,
		WinningTicketID:  ticket,
		TotalTicketsSold: raffle.TicketsSold,
		RandomnessSource: raffle.RandomnessSource,
		Sequence:         o.now.Sequence,
		FinalizedAt:      o.now.Timestamp,
	}, StatusDrawing, StatusFinalized, o.now.Timestamp)
	return holder, nil
}
