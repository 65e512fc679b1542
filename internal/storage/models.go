package storage

import (
	"database/sql/driver"
	"fmt"

	"gorm.io/datatypes"

	"tikka/internal/event"
	"tikka/internal/ledger"
	"tikka/internal/raffle"
)

type RaffleRecord struct {
	ID                uint64         `gorm:"primaryKey;autoIncrement:false"`
	Creator           ledger.Address `gorm:"not null;index"`
	Description       string         `gorm:"not null"`
	EndTime           Uint64         `gorm:"not null"`
	MaxTickets        uint32         `gorm:"not null"`
	AllowMultiple     bool           `gorm:"not null"`
	TicketPrice       ledger.Amount  `gorm:"type:text;not null"`
	PaymentToken      ledger.Address `gorm:"not null;index"`
	PrizeAmount       ledger.Amount  `gorm:"type:text;not null"`
	TicketsSold       uint32         `gorm:"default:0"`
	RefundedTickets   uint32         `gorm:"default:0"`
	Status            string         `gorm:"not null;index"`
	PrizeDeposited    bool           `gorm:"default:false"`
	PrizeClaimed      bool           `gorm:"default:false"`
	ProceedsWithdrawn bool           `gorm:"default:false"`
	Winner            *ledger.Address
	WinningTicket     uint32 `gorm:"default:0"`
	RandomnessSource  string `gorm:"not null"`
	SeedOracle        *ledger.Address
	SeedRequestedAt   Uint64 `gorm:"not null"`
	Seed              *Uint64
	FeeBP             uint32 `gorm:"not null"`
	Created           Uint64 `gorm:"column:created_at;not null"`
}

type TicketRecord struct {
	RaffleID    uint64         `gorm:"primaryKey;autoIncrement:false"`
	Index       uint32         `gorm:"primaryKey;autoIncrement:false;column:ticket_index"`
	Buyer       ledger.Address `gorm:"not null;index"`
	PurchasedAt Uint64         `gorm:"not null"`
	Refunded    bool           `gorm:"default:false"`
}

type BalanceRecord struct {
	Token   ledger.Address `gorm:"primaryKey"`
	Account ledger.Address `gorm:"primaryKey"`
	Amount  ledger.Amount  `gorm:"type:text;not null"`
}

// PlatformRecord is a single row table.
type PlatformRecord struct {
	ID           uint8 `gorm:"primaryKey;autoIncrement:false"`
	Initialized  bool  `gorm:"default:false"`
	Admin        *ledger.Address
	PendingAdmin *ledger.Address
	FeeBP        uint32 `gorm:"default:0"`
	Treasury     *ledger.Address
	Oracle       *ledger.Address
	Paused       bool `gorm:"default:false"`
}

// FeeRecord holds platform fees accrued in one token.
type FeeRecord struct {
	Token  ledger.Address `gorm:"primaryKey"`
	Amount ledger.Amount  `gorm:"type:text;not null"`
}

type CounterRecord struct {
	Name  string `gorm:"primaryKey"`
	Value uint64 `gorm:"not null"`
}

type EventRecord struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	TxID      string `gorm:"not null;index"`
	Sequence  Uint64 `gorm:"not null;index"`
	Timestamp Uint64 `gorm:"not null"`
	RaffleID  uint64 `gorm:"not null;index"`
	Namespace string `gorm:"not null"`
	Name      string `gorm:"not null;index"`
	Payload   datatypes.JSON
}

// Uint64 keeps the whole uint64 range in a signed sqlite integer column by
// storing the same 64 bits as int64.
type Uint64 uint64

func (v Uint64) Value() (driver.Value, error) {
	return int64(v), nil
}

func (v *Uint64) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		*v = 0
	case int64:
		*v = Uint64(value)
	default:
		return fmt.Errorf("storage: cannot scan %T into Uint64", src)
	}
	return nil
}

const platformRecordID = 1

const raffleCounter = "raffle"

func newRaffleRecord(r *raffle.Raffle) RaffleRecord {
	record := RaffleRecord{
		ID:                r.ID,
		Creator:           r.Creator,
		Description:       r.Description,
		EndTime:           Uint64(r.EndTime),
		MaxTickets:        r.MaxTickets,
		AllowMultiple:     r.AllowMultiple,
		TicketPrice:       r.TicketPrice,
		PaymentToken:      r.PaymentToken,
		PrizeAmount:       r.PrizeAmount,
		TicketsSold:       r.TicketsSold,
		RefundedTickets:   r.RefundedTickets,
		Status:            r.Status.String(),
		PrizeDeposited:    r.PrizeDeposited,
		PrizeClaimed:      r.PrizeClaimed,
		ProceedsWithdrawn: r.ProceedsWithdrawn,
		Winner:            r.Winner,
		WinningTicket:     r.WinningTicket,
		RandomnessSource:  r.RandomnessSource.String(),
		FeeBP:             r.FeeBP,
		Created:           Uint64(r.CreatedAt),
	}
	if r.PendingSeed != nil {
		oracle := r.PendingSeed.Oracle
		record.SeedOracle = &oracle
		record.SeedRequestedAt = Uint64(r.PendingSeed.RequestedAt)
		if r.PendingSeed.Seed != nil {
			seed := Uint64(*r.PendingSeed.Seed)
			record.Seed = &seed
		}
	}
	return record
}

func (record *RaffleRecord) raffle() (*raffle.Raffle, error) {
	r := &raffle.Raffle{
		ID:                record.ID,
		Creator:           record.Creator,
		Description:       record.Description,
		EndTime:           uint64(record.EndTime),
		MaxTickets:        record.MaxTickets,
		AllowMultiple:     record.AllowMultiple,
		TicketPrice:       record.TicketPrice,
		PaymentToken:      record.PaymentToken,
		PrizeAmount:       record.PrizeAmount,
		TicketsSold:       record.TicketsSold,
		RefundedTickets:   record.RefundedTickets,
		PrizeDeposited:    record.PrizeDeposited,
		PrizeClaimed:      record.PrizeClaimed,
		ProceedsWithdrawn: record.ProceedsWithdrawn,
		Winner:            record.Winner,
		WinningTicket:     record.WinningTicket,
		FeeBP:             record.FeeBP,
		CreatedAt:         uint64(record.Created),
	}
	if err := r.Status.UnmarshalText([]byte(record.Status)); err != nil {
		return nil, err
	}
	if err := r.RandomnessSource.UnmarshalText([]byte(record.RandomnessSource)); err != nil {
		return nil, err
	}
	if record.SeedOracle != nil {
		r.PendingSeed = &raffle.SeedRequest{
			Oracle:      *record.SeedOracle,
			RequestedAt: uint64(record.SeedRequestedAt),
		}
		if record.Seed != nil {
			seed := uint64(*record.Seed)
			r.PendingSeed.Seed = &seed
		}
	}
	return r, nil
}

func newTicketRecord(t raffle.Ticket) TicketRecord {
	return TicketRecord{
		RaffleID:    t.RaffleID,
		Index:       t.Index,
		Buyer:       t.Buyer,
		PurchasedAt: Uint64(t.PurchasedAt),
		Refunded:    t.Refunded,
	}
}

func (record *TicketRecord) ticket() raffle.Ticket {
	return raffle.Ticket{
		RaffleID:    record.RaffleID,
		Index:       record.Index,
		Buyer:       record.Buyer,
		PurchasedAt: uint64(record.PurchasedAt),
		Refunded:    record.Refunded,
	}
}

func newEventRecord(evt event.Event) (EventRecord, error) {
	record, err := event.Encode(evt)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{
		TxID:      record.TxID,
		Sequence:  Uint64(record.Sequence),
		Timestamp: Uint64(record.Timestamp),
		RaffleID:  record.RaffleID,
		Namespace: record.Topic.Namespace,
		Name:      record.Topic.Name,
		Payload:   datatypes.JSON(record.Payload),
	}, nil
}

func (record *EventRecord) record() event.Record {
	return event.Record{
		ID:        record.ID,
		Topic:     event.Topic{Namespace: record.Namespace, Name: record.Name},
		RaffleID:  record.RaffleID,
		TxID:      record.TxID,
		Sequence:  uint64(record.Sequence),
		Timestamp: uint64(record.Timestamp),
		Payload:   []byte(record.Payload),
	}
}
