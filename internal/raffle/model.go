package raffle

import (
	"fmt"

	"tikka/internal/ledger"
)

type Status uint8

const (
	StatusProposed Status = iota
	StatusActive
	StatusDrawing
	StatusFinalized
	StatusClaimed
	StatusCancelled
)

var statusNames = [...]string{"Proposed", "Active", "Drawing", "Finalized", "Claimed", "Cancelled"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("raffle: unknown status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("raffle: unknown status %q", text)
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusClaimed || s == StatusCancelled
}

type RandomnessSource uint8

const (
	RandomnessInternal RandomnessSource = iota
	RandomnessExternal
)

func (r RandomnessSource) String() string {
	switch r {
	case RandomnessInternal:
		return "Internal"
	case RandomnessExternal:
		return "External"
	}
	return fmt.Sprintf("RandomnessSource(%d)", uint8(r))
}

func (r RandomnessSource) MarshalText() ([]byte, error) {
	if r > RandomnessExternal {
		return nil, fmt.Errorf("raffle: unknown randomness source %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *RandomnessSource) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Internal", "internal":
		*r = RandomnessInternal
	case "External", "external":
		*r = RandomnessExternal
	default:
		return fmt.Errorf("raffle: unknown randomness source %q", text)
	}
	return nil
}

// SeedRequest records an outstanding request to an external oracle. Seed stays
// nil until the oracle answers.
type SeedRequest struct {
	Oracle      ledger.Address `json:"oracle"`
	RequestedAt uint64         `json:"requested_at"`
	Seed        *uint64        `json:"seed"`
}

type Raffle struct {
	ID                uint64           `json:"id"`
	Creator           ledger.Address   `json:"creator"`
	Description       string           `json:"description"`
	EndTime           uint64           `json:"end_time"`
	MaxTickets        uint32           `json:"max_tickets"`
	AllowMultiple     bool             `json:"allow_multiple"`
	TicketPrice       ledger.Amount    `json:"ticket_price"`
	PaymentToken      ledger.Address   `json:"payment_token"`
	PrizeAmount       ledger.Amount    `json:"prize_amount"`
	TicketsSold       uint32           `json:"tickets_sold"`
	RefundedTickets   uint32           `json:"refunded_tickets"`
	Status            Status           `json:"status"`
	PrizeDeposited    bool             `json:"prize_deposited"`
	PrizeClaimed      bool             `json:"prize_claimed"`
	ProceedsWithdrawn bool             `json:"proceeds_withdrawn"`
	Winner            *ledger.Address  `json:"winner"`
	WinningTicket     uint32           `json:"winning_ticket"`
	RandomnessSource  RandomnessSource `json:"randomness_source"`
	PendingSeed       *SeedRequest     `json:"pending_seed"`
	FeeBP             uint32           `json:"fee_bp"`
	CreatedAt         uint64           `json:"created_at"`
}

// Clone returns a deep copy, so callers never share optional fields with the
// stored record.
func (r *Raffle) Clone() *Raffle {
	clone := *r
	if r.Winner != nil {
		winner := *r.Winner
		clone.Winner = &winner
	}
	if r.PendingSeed != nil {
		request := *r.PendingSeed
		if r.PendingSeed.Seed != nil {
			seed := *r.PendingSeed.Seed
			request.Seed = &seed
		}
		clone.PendingSeed = &request
	}
	return &clone
}

// Held is the part of the escrow balance attributable to this raffle.
func (r *Raffle) Held() (ledger.Amount, error) {
	held := ledger.ZeroAmount()
	// a cancelled raffle returned its prize to the creator
	if r.PrizeDeposited && !r.PrizeClaimed && r.Status != StatusCancelled {
		held = held.Add(r.PrizeAmount)
	}
	if !r.ProceedsWithdrawn {
		proceeds, err := ledger.MulAmount(r.TicketPrice, uint64(r.TicketsSold-r.RefundedTickets))
		if err != nil {
			return ledger.ZeroAmount(), err
		}
		held = held.Add(proceeds)
	}
	return held, nil
}

// Validate checks the invariants that must hold for a stored raffle.
func (r *Raffle) Validate() error {
	switch {
	case r.MaxTickets < 1:
		return fmt.Errorf("%w: raffle %d max tickets is zero", ErrInvariant, r.ID)
	case r.TicketsSold > r.MaxTickets:
		return fmt.Errorf("%w: raffle %d sold %d of %d tickets", ErrInvariant, r.ID, r.TicketsSold, r.MaxTickets)
	case r.RefundedTickets > r.TicketsSold:
		return fmt.Errorf("%w: raffle %d refunded more tickets than sold", ErrInvariant, r.ID)
	case r.RefundedTickets > 0 && r.Status != StatusCancelled:
		return fmt.Errorf("%w: raffle %d refunded tickets while %s", ErrInvariant, r.ID, r.Status)
	case (r.Winner != nil) != (r.Status == StatusFinalized || r.Status == StatusClaimed):
		return fmt.Errorf("%w: raffle %d winner presence does not match status %s", ErrInvariant, r.ID, r.Status)
	case r.PrizeClaimed != (r.Status == StatusClaimed):
		return fmt.Errorf("%w: raffle %d prize claimed flag does not match status %s", ErrInvariant, r.ID, r.Status)
	case r.ProceedsWithdrawn && r.Status != StatusFinalized && r.Status != StatusClaimed:
		return fmt.Errorf("%w: raffle %d proceeds withdrawn while %s", ErrInvariant, r.ID, r.Status)
	}

	switch r.Status {
	case StatusProposed:
		if r.PrizeDeposited || r.TicketsSold > 0 {
			return fmt.Errorf("%w: proposed raffle %d holds funds", ErrInvariant, r.ID)
		}
	case StatusActive, StatusDrawing, StatusFinalized, StatusClaimed:
		if !r.PrizeDeposited {
			return fmt.Errorf("%w: raffle %d is %s without a deposited prize", ErrInvariant, r.ID, r.Status)
		}
	case StatusCancelled:
	default:
		return fmt.Errorf("%w: raffle %d has unknown status %d", ErrInvariant, r.ID, uint8(r.Status))
	}

	if r.Winner != nil && (r.WinningTicket < 1 || r.WinningTicket > r.TicketsSold) {
		return fmt.Errorf("%w: raffle %d winning ticket %d outside [1, %d]", ErrInvariant, r.ID, r.WinningTicket, r.TicketsSold)
	}
	return nil
}

// Ticket is a 1-based positional entry in a raffle's draw.
type Ticket struct {
	RaffleID    uint64         `json:"raffle_id"`
	Index       uint32         `json:"index"`
	Buyer       ledger.Address `json:"buyer"`
	PurchasedAt uint64         `json:"purchased_at"`
	Refunded    bool           `json:"refunded"`
}

// Platform is the administrative state shared by all raffles.
type Platform struct {
	Initialized  bool                             `json:"initialized"`
	Admin        *ledger.Address                  `json:"admin"`
	PendingAdmin *ledger.Address                  `json:"pending_admin"`
	FeeBP        uint32                           `json:"fee_bp"`
	Treasury     *ledger.Address                  `json:"treasury"`
	Oracle       *ledger.Address                  `json:"oracle"`
	Paused       bool                             `json:"paused"`
	AccruedFees  map[ledger.Address]ledger.Amount `json:"accrued_fees"`
}

func (p *Platform) AccruedFee(token ledger.Address) ledger.Amount {
	if p.AccruedFees == nil {
		return ledger.ZeroAmount()
	}
	if amount, ok := p.AccruedFees[token]; ok {
		return amount
	}
	return ledger.ZeroAmount()
}

func (p *Platform) SetAccruedFee(token ledger.Address, amount ledger.Amount) {
	if p.AccruedFees == nil {
		p.AccruedFees = make(map[ledger.Address]ledger.Amount)
	}
	if amount.IsZero() {
		delete(p.AccruedFees, token)
		return
	}
	p.AccruedFees[token] = amount
}
