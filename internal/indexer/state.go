package indexer

import (
	"errors"
	"fmt"
	"sort"

	"tikka/internal/event"
	"tikka/internal/ledger"
	"tikka/internal/raffle"
)

var (
	ErrUnknownRaffle = errors.New("indexer: event for unknown raffle")
	ErrOutOfOrder    = errors.New("indexer: event does not follow current state")
)

// State is the raffle world as told by the event log.
type State struct {
	Raffles  map[uint64]*raffle.Raffle
	Tickets  map[uint64][]raffle.Ticket
	Platform raffle.Platform

	touched         map[uint64]struct{}
	touchedPlatform bool
}

func NewState() *State {
	return &State{
		Raffles: make(map[uint64]*raffle.Raffle),
		Tickets: make(map[uint64][]raffle.Ticket),
		touched: make(map[uint64]struct{}),
	}
}

// Apply folds one stored event into the state.
func (s *State) Apply(record event.Record) error {
	if record.Topic.Namespace != raffle.Namespace {
		return nil
	}
	payload, err := raffle.Events.Decode(record)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case raffle.RaffleCreated:
		if _, ok := s.Raffles[p.RaffleID]; ok {
			return fmt.Errorf("%w: raffle %d created twice", ErrOutOfOrder, p.RaffleID)
		}
		s.Raffles[p.RaffleID] = &raffle.Raffle{
			ID:               p.RaffleID,
			Creator:          p.Creator,
			Description:      p.Description,
			EndTime:          p.EndTime,
			MaxTickets:       p.MaxTickets,
			AllowMultiple:    p.AllowMultiple,
			TicketPrice:      p.TicketPrice,
			PaymentToken:     p.PaymentToken,
			PrizeAmount:      p.PrizeAmount,
			Status:           raffle.StatusProposed,
			RandomnessSource: p.RandomnessSource,
			FeeBP:            p.FeeBP,
			CreatedAt:        p.Timestamp,
		}
		s.touch(p.RaffleID)
		return nil

	case raffle.OracleAddressUpdated:
		s.Platform.Oracle = &p.NewOracle
	case raffle.FeeUpdated:
		s.Platform.FeeBP = p.NewFeeBP
	case raffle.TreasuryUpdated:
		s.Platform.Treasury = &p.NewTreasury
	case raffle.FeesWithdrawn:
		s.Platform.SetAccruedFee(p.Token, s.Platform.AccruedFee(p.Token).Sub(p.Amount))
	case raffle.ContractPaused:
		s.Platform.Paused = true
	case raffle.ContractUnpaused:
		s.Platform.Paused = false
	case raffle.AdminTransferProposed:
		s.Platform.PendingAdmin = &p.ProposedAdmin
	case raffle.AdminTransferAccepted:
		s.Platform.Initialized = true
		s.Platform.Admin = &p.NewAdmin
		s.Platform.PendingAdmin = nil

	default:
		return s.applyRaffle(record.RaffleID, payload)
	}

	s.touchedPlatform = true
	return nil
}

func (s *State) applyRaffle(id uint64, payload event.Payload) error {
	r, ok := s.Raffles[id]
	if !ok {
		return fmt.Errorf("%w: %d (%s)", ErrUnknownRaffle, id, payload.EventName())
	}
	s.touch(id)

	switch p := payload.(type) {
	case raffle.PrizeDeposited:
		r.PrizeDeposited = true

	case raffle.TicketPurchased:
		for _, index := range p.TicketIDs {
			if index != r.TicketsSold+1 {
				return fmt.Errorf("%w: raffle %d ticket %d after %d", ErrOutOfOrder, id, index, r.TicketsSold)
			}
			r.TicketsSold = index
			s.Tickets[id] = append(s.Tickets[id], raffle.Ticket{
				RaffleID:    id,
				Index:       index,
				Buyer:       p.Buyer,
				PurchasedAt: p.Timestamp,
			})
		}

	case raffle.DrawTriggered:

	case raffle.RandomnessRequested:
		r.PendingSeed = &raffle.SeedRequest{Oracle: p.Oracle, RequestedAt: p.Timestamp}

	case raffle.RandomnessReceived:
		if r.PendingSeed == nil {
			return fmt.Errorf("%w: raffle %d received randomness it never requested", ErrOutOfOrder, id)
		}
		seed := p.Seed
		r.PendingSeed.Seed = &seed

	case raffle.RaffleFinalized:
		winner := p.Winner
		r.Winner = &winner
		r.WinningTicket = p.WinningTicketID

	case raffle.RaffleCancelled:

	case raffle.TicketRefunded:
		tickets := s.Tickets[id]
		if p.TicketID < 1 || int(p.TicketID) > len(tickets) {
			return fmt.Errorf("%w: raffle %d refunded unknown ticket %d", ErrOutOfOrder, id, p.TicketID)
		}
		tickets[p.TicketID-1].Refunded = true
		r.RefundedTickets++

	case raffle.PrizeClaimed:
		r.PrizeClaimed = true
		if p.Treasury == nil && p.PlatformFee.IsPositive() {
			s.Platform.SetAccruedFee(r.PaymentToken, s.Platform.AccruedFee(r.PaymentToken).Add(p.PlatformFee))
			s.touchedPlatform = true
		}

	case raffle.ProceedsWithdrawn:
		r.ProceedsWithdrawn = true

	case raffle.StatusChanged:
		if r.Status != p.OldStatus {
			return fmt.Errorf("%w: raffle %d is %s, event moves it from %s", ErrOutOfOrder, id, r.Status, p.OldStatus)
		}
		r.Status = p.NewStatus

	default:
		return fmt.Errorf("%w: %s", event.ErrUnknownEvent, payload.EventName())
	}
	return nil
}

func (s *State) touch(id uint64) {
	s.touched[id] = struct{}{}
}

// Changes returns everything modified since the last call, in raffle id order.
func (s *State) Changes() (raffles []*raffle.Raffle, tickets []raffle.Ticket, platform *raffle.Platform) {
	ids := make([]uint64, 0, len(s.touched))
	for id := range s.touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		raffles = append(raffles, s.Raffles[id].Clone())
		tickets = append(tickets, s.Tickets[id]...)
	}
	if s.touchedPlatform {
		copied := s.Platform
		copied.AccruedFees = make(map[ledger.Address]ledger.Amount, len(s.Platform.AccruedFees))
		for token, amount := range s.Platform.AccruedFees {
			copied.AccruedFees[token] = amount
		}
		platform = &copied
	}

	s.touched = make(map[uint64]struct{})
	s.touchedPlatform = false
	return raffles, tickets, platform
}

// PendingRandomness lists raffles waiting for a seed from oracle.
func (s *State) PendingRandomness(oracle ledger.Address) []*raffle.Raffle {
	var pending []*raffle.Raffle
	for _, r := range s.Raffles {
		if awaitingSeed(r) && r.PendingSeed.Oracle == oracle {
			pending = append(pending, r.Clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending
}

func awaitingSeed(r *raffle.Raffle) bool {
	return r.Status == raffle.StatusDrawing && r.PendingSeed != nil && r.PendingSeed.Seed == nil
}
