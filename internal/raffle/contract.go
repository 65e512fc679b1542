package raffle

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tikka/internal/event"
	"tikka/internal/ledger"
	"tikka/internal/logger"
)

// ZeroTicketPolicy decides what finalizing a raffle without sales does.
type ZeroTicketPolicy string

const (
	// ZeroTicketsCancel cancels the raffle and returns the prize to the creator.
	ZeroTicketsCancel ZeroTicketPolicy = "cancel"
	// ZeroTicketsReject fails finalization with ErrZeroTickets.
	ZeroTicketsReject ZeroTicketPolicy = "reject"
)

func (p ZeroTicketPolicy) Valid() bool {
	return p == ZeroTicketsCancel || p == ZeroTicketsReject
}

const DefaultEscrow ledger.Address = "escrow"

// TransfererFactory builds the asset mover used inside one store transaction.
type TransfererFactory func(balances ledger.Balances) ledger.Transferer

type Option func(*Contract)

func WithZeroTicketPolicy(policy ZeroTicketPolicy) Option {
	return func(c *Contract) {
		c.zeroTickets = policy
	}
}

// WithEscrowAccount sets the account that holds prizes and ticket proceeds.
func WithEscrowAccount(account ledger.Address) Option {
	return func(c *Contract) {
		c.escrow = account
	}
}

func WithTransferer(factory TransfererFactory) Option {
	return func(c *Contract) {
		c.transferer = factory
	}
}

// Contract is the raffle state machine. Every mutating call runs as a single
// store transaction: guards, transfers, record writes and events commit
// together or not at all.
type Contract struct {
	store       Store
	clock       ledger.Clock
	escrow      ledger.Address
	zeroTickets ZeroTicketPolicy
	transferer  TransfererFactory
	operations  *prometheus.CounterVec
}

func New(store Store, clock ledger.Clock, options ...Option) *Contract {
	contract := &Contract{
		store:       store,
		clock:       clock,
		escrow:      DefaultEscrow,
		zeroTickets: ZeroTicketsCancel,
		transferer: func(balances ledger.Balances) ledger.Transferer {
			return ledger.New(balances)
		},
	}
	for _, option := range options {
		option(contract)
	}
	return contract
}

func (c *Contract) Escrow() ledger.Address {
	return c.escrow
}

// RegisterMetrics counts operations by name and result kind on registry.
func (c *Contract) RegisterMetrics(registry prometheus.Registerer) error {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_operations_total",
			Help: "Raffle contract operations, by operation and result",
		},
		[]string{"operation", "result"},
	)
	if err := registry.Register(counter); err != nil {
		return err
	}
	c.operations = counter
	return nil
}

// op is the context of one mutating call.
type op struct {
	tx       Tx
	now      ledger.Tick
	emitter  *event.Emitter
	transfer ledger.Transferer
	escrow   ledger.Address
}

func (o *op) raffle(id uint64) (*Raffle, error) {
	return o.tx.Raffle(id)
}

// save validates raffle before writing it.
func (o *op) save(raffle *Raffle) error {
	if err := raffle.Validate(); err != nil {
		return err
	}
	return o.tx.PutRaffle(raffle)
}

func (o *op) move(token, from, to ledger.Address, amount ledger.Amount) error {
	if err := o.transfer.Transfer(token, from, to, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

func (o *op) emit(raffleID uint64, payload event.Payload) {
	o.emitter.Emit(raffleID, payload)
}

func (c *Contract) update(ctx context.Context, operation string, fn func(o *op) error) error {
	now := c.clock.Now()
	var committed []event.Event

	err := c.store.Update(ctx, func(tx Tx) error {
		o := &op{
			tx:       tx,
			now:      now,
			emitter:  event.NewEmitter(Namespace, now),
			transfer: c.transferer(tx),
			escrow:   c.escrow,
		}
		if err := fn(o); err != nil {
			return err
		}
		if err := o.emitter.Flush(tx); err != nil {
			return err
		}
		committed = o.emitter.Events()
		return nil
	})

	c.observe(operation, err)
	if err != nil {
		logger.Debug("raffle operation rejected",
			zap.String("operation", operation),
			zap.String("kind", KindOf(err)),
			zap.Error(err),
		)
		return err
	}

	event.Observe(committed)
	logger.Debug("raffle operation committed",
		zap.String("operation", operation),
		zap.Uint64("sequence", now.Sequence),
		zap.Int("events", len(committed)),
	)
	return nil
}

func (c *Contract) view(ctx context.Context, fn func(tx ReadTx) error) error {
	return c.store.View(ctx, fn)
}

func (c *Contract) observe(operation string, err error) {
	if c.operations == nil {
		return
	}
	c.operations.WithLabelValues(operation, KindOf(err)).Inc()
}
