package raffle

import (
	"tikka/internal/event"
	"tikka/internal/ledger"
)

// Namespace is the first topic element of every event this package emits.
const Namespace = "raffle"

// Lifecycle events.

type RaffleCreated struct {
	RaffleID         uint64           `json:"raffle_id"`
	Creator          ledger.Address   `json:"creator"`
	EndTime          uint64           `json:"end_time"`
	MaxTickets       uint32           `json:"max_tickets"`
	AllowMultiple    bool             `json:"allow_multiple"`
	TicketPrice      ledger.Amount    `json:"ticket_price"`
	PaymentToken     ledger.Address   `json:"payment_token"`
	PrizeAmount      ledger.Amount    `json:"prize_amount"`
	Description      string           `json:"description"`
	RandomnessSource RandomnessSource `json:"randomness_source"`
	FeeBP            uint32           `json:"fee_bp"`
	Timestamp        uint64           `json:"timestamp"`
}

type PrizeDeposited struct {
	RaffleID  uint64         `json:"raffle_id"`
	Creator   ledger.Address `json:"creator"`
	Amount    ledger.Amount  `json:"amount"`
	Token     ledger.Address `json:"token"`
	Timestamp uint64         `json:"timestamp"`
}

type TicketPurchased struct {
	RaffleID  uint64         `json:"raffle_id"`
	Buyer     ledger.Address `json:"buyer"`
	TicketIDs []uint32       `json:"ticket_ids"`
	Quantity  uint32         `json:"quantity"`
	TotalPaid ledger.Amount  `json:"total_paid"`
	Timestamp uint64         `json:"timestamp"`
}

type DrawTriggered struct {
	RaffleID         uint64         `json:"raffle_id"`
	TriggeredBy      ledger.Address `json:"triggered_by"`
	TotalTicketsSold uint32         `json:"total_tickets_sold"`
	Timestamp        uint64         `json:"timestamp"`
}

type RandomnessRequested struct {
	RaffleID  uint64         `json:"raffle_id"`
	Oracle    ledger.Address `json:"oracle"`
	Timestamp uint64         `json:"timestamp"`
}

type RandomnessReceived struct {
	RaffleID  uint64         `json:"raffle_id"`
	Oracle    ledger.Address `json:"oracle"`
	Seed      uint64         `json:"seed"`
	Timestamp uint64         `json:"timestamp"`
}

// RaffleFinalized carries Sequence so Internal draws can be recomputed from
// (end_time, sequence, total_tickets_sold).
type RaffleFinalized struct {
	RaffleID         uint64           `json:"raffle_id"`
	Winner           ledger.Address   `json:"winner"`
	WinningTicketID  uint32           `json:"winning_ticket_id"`
	TotalTicketsSold uint32           `json:"total_tickets_sold"`
	RandomnessSource RandomnessSource `json:"randomness_source"`
	Sequence         uint64           `json:"sequence"`
	FinalizedAt      uint64           `json:"finalized_at"`
}

type RaffleCancelled struct {
	RaffleID      uint64         `json:"raffle_id"`
	Creator       ledger.Address `json:"creator"`
	Reason        string         `json:"reason"`
	TicketsSold   uint32         `json:"tickets_sold"`
	PrizeRefunded ledger.Amount  `json:"prize_refunded"`
	Timestamp     uint64         `json:"timestamp"`
}

type TicketRefunded struct {
	RaffleID  uint64         `json:"raffle_id"`
	Buyer     ledger.Address `json:"buyer"`
	TicketID  uint32         `json:"ticket_id"`
	Amount    ledger.Amount  `json:"amount"`
	Timestamp uint64         `json:"timestamp"`
}

type PrizeClaimed struct {
	RaffleID    uint64          `json:"raffle_id"`
	Winner      ledger.Address  `json:"winner"`
	GrossAmount ledger.Amount   `json:"gross_amount"`
	NetAmount   ledger.Amount   `json:"net_amount"`
	PlatformFee ledger.Amount   `json:"platform_fee"`
	Treasury    *ledger.Address `json:"treasury"`
	ClaimedAt   uint64          `json:"claimed_at"`
}

type ProceedsWithdrawn struct {
	RaffleID  uint64         `json:"raffle_id"`
	Creator   ledger.Address `json:"creator"`
	Amount    ledger.Amount  `json:"amount"`
	Token     ledger.Address `json:"token"`
	Timestamp uint64         `json:"timestamp"`
}

type StatusChanged struct {
	RaffleID  uint64 `json:"raffle_id"`
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`
	Timestamp uint64 `json:"timestamp"`
}

// Admin events.

type OracleAddressUpdated struct {
	OldOracle *ledger.Address `json:"old_oracle"`
	NewOracle ledger.Address  `json:"new_oracle"`
	UpdatedBy ledger.Address  `json:"updated_by"`
	Timestamp uint64          `json:"timestamp"`
}

type FeeUpdated struct {
	OldFeeBP  uint32         `json:"old_fee_bp"`
	NewFeeBP  uint32         `json:"new_fee_bp"`
	UpdatedBy ledger.Address `json:"updated_by"`
	Timestamp uint64         `json:"timestamp"`
}

type TreasuryUpdated struct {
	OldTreasury *ledger.Address `json:"old_treasury"`
	NewTreasury ledger.Address  `json:"new_treasury"`
	UpdatedBy   ledger.Address  `json:"updated_by"`
	Timestamp   uint64          `json:"timestamp"`
}

type FeesWithdrawn struct {
	Recipient ledger.Address `json:"recipient"`
	Amount    ledger.Amount  `json:"amount"`
	Token     ledger.Address `json:"token"`
	Timestamp uint64         `json:"timestamp"`
}

type ContractPaused struct {
	PausedBy  ledger.Address `json:"paused_by"`
	Timestamp uint64         `json:"timestamp"`
}

type ContractUnpaused struct {
	UnpausedBy ledger.Address `json:"unpaused_by"`
	Timestamp  uint64         `json:"timestamp"`
}

type AdminTransferProposed struct {
	CurrentAdmin  ledger.Address `json:"current_admin"`
	ProposedAdmin ledger.Address `json:"proposed_admin"`
	Timestamp     uint64         `json:"timestamp"`
}

// AdminTransferAccepted is also emitted by Init with an empty OldAdmin.
type AdminTransferAccepted struct {
	OldAdmin  ledger.Address `json:"old_admin"`
	NewAdmin  ledger.Address `json:"new_admin"`
	Timestamp uint64         `json:"timestamp"`
}

func (RaffleCreated) EventName() string         { return "raffle_created" }
func (PrizeDeposited) EventName() string        { return "prize_deposited" }
func (TicketPurchased) EventName() string       { return "ticket_purchased" }
func (DrawTriggered) EventName() string         { return "draw_triggered" }
func (RandomnessRequested) EventName() string   { return "randomness_requested" }
func (RandomnessReceived) EventName() string    { return "randomness_received" }
func (RaffleFinalized) EventName() string       { return "raffle_finalized" }
func (RaffleCancelled) EventName() string       { return "raffle_cancelled" }
func (TicketRefunded) EventName() string        { return "ticket_refunded" }
func (PrizeClaimed) EventName() string          { return "prize_claimed" }
func (ProceedsWithdrawn) EventName() string     { return "proceeds_withdrawn" }
func (StatusChanged) EventName() string         { return "status_changed" }
func (OracleAddressUpdated) EventName() string  { return "oracle_address_updated" }
func (FeeUpdated) EventName() string            { return "fee_updated" }
func (TreasuryUpdated) EventName() string       { return "treasury_updated" }
func (FeesWithdrawn) EventName() string         { return "fees_withdrawn" }
func (ContractPaused) EventName() string        { return "contract_paused" }
func (ContractUnpaused) EventName() string      { return "contract_unpaused" }
func (AdminTransferProposed) EventName() string { return "admin_transfer_proposed" }
func (AdminTransferAccepted) EventName() string { return "admin_transfer_accepted" }

// Events decodes every payload this package emits.
var Events = event.NewRegistry()

func init() {
	Events.Register(
		RaffleCreated{},
		PrizeDeposited{},
		TicketPurchased{},
		DrawTriggered{},
		RandomnessRequested{},
		RandomnessReceived{},
		RaffleFinalized{},
		RaffleCancelled{},
		TicketRefunded{},
		PrizeClaimed{},
		ProceedsWithdrawn{},
		StatusChanged{},
		OracleAddressUpdated{},
		FeeUpdated{},
		TreasuryUpdated{},
		FeesWithdrawn{},
		ContractPaused{},
		ContractUnpaused{},
		AdminTransferProposed{},
		AdminTransferAccepted{},
	)
}

// emitTransition publishes primary and then the status_changed event that
// belongs to it.
func emitTransition(emitter *event.Emitter, raffleID uint64, primary event.Payload, from, to Status, timestamp uint64) {
	emitter.Emit(raffleID, primary)
	emitter.Emit(raffleID, StatusChanged{
		RaffleID:  raffleID,
		OldStatus: from,
		NewStatus: to,
		Timestamp: timestamp,
	})
}
