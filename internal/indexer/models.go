package indexer

import (
	"encoding/json"

	"gorm.io/datatypes"

	"tikka/internal/ledger"
	"tikka/internal/raffle"
	"tikka/internal/storage"
)

// RaffleView is the indexed form of a raffle. Snapshot holds the full record,
// the other columns exist to be queried.
type RaffleView struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	Creator      string `gorm:"index;not null"`
	PaymentToken string `gorm:"not null"`
	Status       string `gorm:"index;not null"`
	AwaitingSeed bool   `gorm:"index:idx_raffle_views_pending;not null"`
	SeedOracle   string `gorm:"index:idx_raffle_views_pending"`
	Snapshot     datatypes.JSON
}

type TicketView struct {
	RaffleID    uint64         `gorm:"primaryKey;autoIncrement:false"`
	TicketIndex uint32         `gorm:"primaryKey;autoIncrement:false"`
	Buyer       string         `gorm:"index;not null"`
	PurchasedAt storage.Uint64 `gorm:"not null"`
	Refunded    bool           `gorm:"not null"`
}

type PlatformView struct {
	ID       uint8 `gorm:"primaryKey;autoIncrement:false"`
	Snapshot datatypes.JSON
}

// IndexerTouch remembers the last event log id applied to the views.
type IndexerTouch struct {
	Name    string `gorm:"primaryKey"`
	EventID uint64 `gorm:"not null"`
}

const platformViewID = 1

func newRaffleView(r *raffle.Raffle) (*RaffleView, error) {
	snapshot, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	view := &RaffleView{
		ID:           r.ID,
		Creator:      string(r.Creator),
		PaymentToken: string(r.PaymentToken),
		Status:       r.Status.String(),
		AwaitingSeed: awaitingSeed(r),
		Snapshot:     datatypes.JSON(snapshot),
	}
	if r.PendingSeed != nil {
		view.SeedOracle = string(r.PendingSeed.Oracle)
	}
	return view, nil
}

func (v *RaffleView) raffle() (*raffle.Raffle, error) {
	var r raffle.Raffle
	if err := json.Unmarshal(v.Snapshot, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func newTicketView(ticket raffle.Ticket) *TicketView {
	return &TicketView{
		RaffleID:    ticket.RaffleID,
		TicketIndex: ticket.Index,
		Buyer:       string(ticket.Buyer),
		PurchasedAt: storage.Uint64(ticket.PurchasedAt),
		Refunded:    ticket.Refunded,
	}
}

func (v *TicketView) ticket() raffle.Ticket {
	return raffle.Ticket{
		RaffleID:    v.RaffleID,
		Index:       v.TicketIndex,
		Buyer:       ledger.Address(v.Buyer),
		PurchasedAt: uint64(v.PurchasedAt),
		Refunded:    v.Refunded,
	}
}
