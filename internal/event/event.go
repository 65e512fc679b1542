package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tikka/internal/ledger"
)

// Topic is the two-part key every event is published under.
type Topic struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

func (t Topic) String() string {
	return t.Namespace + "." + t.Name
}

// Payload is the typed body of an event. EventName is the snake_case topic
// name and must be constant per type.
type Payload interface {
	EventName() string
}

// Event is one published fact. Events emitted by the same operation share
// TxID, Sequence and Timestamp.
type Event struct {
	Topic     Topic
	RaffleID  uint64
	TxID      string
	Sequence  uint64
	Timestamp uint64
	Payload   Payload
}

// Record is the stored form of an Event. ID is the position in the event log
// and strictly increases in publish order.
type Record struct {
	ID        uint64          `json:"id"`
	Topic     Topic           `json:"topic"`
	RaffleID  uint64          `json:"raffle_id"`
	TxID      string          `json:"tx_id"`
	Sequence  uint64          `json:"sequence"`
	Timestamp uint64          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Sink receives the events of one operation. Raffle store transactions
// implement it so events are written in the same atomic unit as state.
type Sink interface {
	Publish(events []Event) error
}

var ErrPublish = errors.New("event: publish failed")

// Emitter buffers the events of a single operation in emission order.
type Emitter struct {
	namespace string
	txID      string
	tick      ledger.Tick
	events    []Event
}

func NewEmitter(namespace string, tick ledger.Tick) *Emitter {
	return &Emitter{
		namespace: namespace,
		txID:      uuid.NewString(),
		tick:      tick,
	}
}

func (e *Emitter) Emit(raffleID uint64, payload Payload) {
	e.events = append(e.events, Event{
		Topic:     Topic{Namespace: e.namespace, Name: payload.EventName()},
		RaffleID:  raffleID,
		TxID:      e.txID,
		Sequence:  e.tick.Sequence,
		Timestamp: e.tick.Timestamp,
		Payload:   payload,
	})
}

func (e *Emitter) Events() []Event {
	return e.events
}

func (e *Emitter) TxID() string {
	return e.txID
}

// Flush hands the buffered events to sink. Any sink error is reported as
// ErrPublish and must abort the enclosing operation.
func (e *Emitter) Flush(sink Sink) error {
	if len(e.events) == 0 {
		return nil
	}
	if err := sink.Publish(e.events); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

// Encode converts an event to its stored form. The ID is assigned by the log.
func Encode(evt Event) (Record, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("event: encode %s: %w", evt.Topic, err)
	}
	return Record{
		Topic:     evt.Topic,
		RaffleID:  evt.RaffleID,
		TxID:      evt.TxID,
		Sequence:  evt.Sequence,
		Timestamp: evt.Timestamp,
		Payload:   payload,
	}, nil
}
