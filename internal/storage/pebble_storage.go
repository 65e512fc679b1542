package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"

	"tikka/internal/event"
	"tikka/internal/ledger"
	"tikka/internal/logger"
	"tikka/internal/raffle"
)

var ErrClosed = errors.New("storage: closed")

var (
	platformKey       = []byte("p")
	raffleCounterKey  = []byte("n/raffle")
	eventCounterKey   = []byte("n/event")
	sequenceKey       = []byte("n/sequence")
	rafflePrefix      = []byte("r/")
	ticketPrefix      = []byte("t/")
	balancePrefix     = []byte("b/")
	eventPrefix       = []byte("e/")
	balanceKeySepByte = byte(0)
)

// PebbleStorage keeps JSON encoded records under prefixed keys. Writes of one
// Update are collected in an indexed batch and committed at once.
type PebbleStorage struct {
	db     *pebble.DB
	mu     sync.Mutex
	closed bool
}

func NewPebbleStorage(path string) (*PebbleStorage, error) {
	logger.Debug("initializing database...", zap.String("driver", PebbleDriver), zap.String("path", path))

	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 * 1024 * 1024), // 64MB
		MemTableSize: 32 * 1024 * 1024,                  // 32MB
		Logger:       logger.Sugar(),
	}
	defer opts.Cache.Unref()

	dir := path
	if path == MemoryPath {
		opts.FS = vfs.NewMem()
		dir = ""
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}

	logger.Debug("initializing database... done")
	return &PebbleStorage{db: db}, nil
}

func (s *PebbleStorage) View(ctx context.Context, fn func(tx raffle.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot, err := s.snapshot()
	if err != nil {
		return err
	}
	defer snapshot.Close()

	return fn(&pebbleTx{reader: snapshot})
}

func (s *PebbleStorage) snapshot() (*pebble.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.db.NewSnapshot(), nil
}

// Update runs one writer at a time, so read-modify-write sequences inside fn
// never interleave.
func (s *PebbleStorage) Update(ctx context.Context, fn func(tx raffle.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := s.db.NewIndexedBatch()
	defer batch.Close()

	if err := fn(&pebbleTx{reader: batch, batch: batch}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleStorage) Events(ctx context.Context, afterID uint64, limit int) ([]event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snapshot, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	defer snapshot.Close()

	var records []event.Record
	err = scan(snapshot, eventKey(afterID+1), prefixEnd(eventPrefix), limit, func(_, value []byte) error {
		var record event.Record
		if err := json.Unmarshal(value, &record); err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	return records, err
}

func (s *PebbleStorage) LatestSequence(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	snapshot, err := s.snapshot()
	if err != nil {
		return 0, err
	}
	defer snapshot.Close()

	return readCounter(snapshot, sequenceKey)
}

func (s *PebbleStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type pebbleTx struct {
	reader pebble.Reader
	batch  *pebble.Batch
}

func (t *pebbleTx) Raffle(id uint64) (*raffle.Raffle, error) {
	var r raffle.Raffle
	found, err := getJSON(t.reader, raffleKey(id), &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, raffle.ErrNotFound
	}
	return &r, nil
}

func (t *pebbleTx) Raffles(afterID uint64, limit int) ([]*raffle.Raffle, error) {
	var raffles []*raffle.Raffle
	err := scan(t.reader, raffleKey(afterID+1), prefixEnd(rafflePrefix), limit, func(_, value []byte) error {
		var r raffle.Raffle
		if err := json.Unmarshal(value, &r); err != nil {
			return err
		}
		raffles = append(raffles, &r)
		return nil
	})
	return raffles, err
}

func (t *pebbleTx) Tickets(raffleID uint64) ([]raffle.Ticket, error) {
	return t.tickets(raffleID, func(raffle.Ticket) bool { return true })
}

func (t *pebbleTx) TicketsOf(raffleID uint64, buyer ledger.Address) ([]raffle.Ticket, error) {
	return t.tickets(raffleID, func(ticket raffle.Ticket) bool { return ticket.Buyer == buyer })
}

func (t *pebbleTx) tickets(raffleID uint64, keep func(raffle.Ticket) bool) ([]raffle.Ticket, error) {
	prefix := ticketKeyPrefix(raffleID)
	tickets := make([]raffle.Ticket, 0)
	err := scan(t.reader, prefix, prefixEnd(prefix), 0, func(_, value []byte) error {
		var ticket raffle.Ticket
		if err := json.Unmarshal(value, &ticket); err != nil {
			return err
		}
		if keep(ticket) {
			tickets = append(tickets, ticket)
		}
		return nil
	})
	return tickets, err
}

func (t *pebbleTx) Platform() (*raffle.Platform, error) {
	var platform raffle.Platform
	if _, err := getJSON(t.reader, platformKey, &platform); err != nil {
		return nil, err
	}
	return &platform, nil
}

func (t *pebbleTx) Balance(token, account ledger.Address) (ledger.Amount, error) {
	value, found, err := get(t.reader, balanceKey(token, account))
	if err != nil || !found {
		return ledger.ZeroAmount(), err
	}
	return ledger.ParseAmount(string(value))
}

func (t *pebbleTx) NextRaffleID() (uint64, error) {
	return t.increment(raffleCounterKey)
}

func (t *pebbleTx) PutRaffle(r *raffle.Raffle) error {
	return t.putJSON(raffleKey(r.ID), r)
}

func (t *pebbleTx) PutTickets(tickets []raffle.Ticket) error {
	for _, ticket := range tickets {
		if err := t.putJSON(ticketKey(ticket.RaffleID, ticket.Index), ticket); err != nil {
			return err
		}
	}
	return nil
}

func (t *pebbleTx) PutPlatform(platform *raffle.Platform) error {
	return t.putJSON(platformKey, platform)
}

func (t *pebbleTx) SetBalance(token, account ledger.Address, amount ledger.Amount) error {
	return t.batch.Set(balanceKey(token, account), []byte(amount.String()), nil)
}

func (t *pebbleTx) Publish(events []event.Event) error {
	latest, err := readCounter(t.reader, sequenceKey)
	if err != nil {
		return err
	}
	for _, evt := range events {
		record, err := event.Encode(evt)
		if err != nil {
			return err
		}
		if record.ID, err = t.increment(eventCounterKey); err != nil {
			return err
		}
		if err := t.putJSON(eventKey(record.ID), record); err != nil {
			return err
		}
		latest = max(latest, record.Sequence)
	}
	return t.batch.Set(sequenceKey, encodeUint64(latest), nil)
}

func (t *pebbleTx) increment(key []byte) (uint64, error) {
	value, err := readCounter(t.reader, key)
	if err != nil {
		return 0, err
	}
	value++
	if err := t.batch.Set(key, encodeUint64(value), nil); err != nil {
		return 0, err
	}
	return value, nil
}

func (t *pebbleTx) putJSON(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return t.batch.Set(key, data, nil)
}

func get(reader pebble.Reader, key []byte) ([]byte, bool, error) {
	value, closer, err := reader.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, true, nil
}

func getJSON(reader pebble.Reader, key []byte, target any) (bool, error) {
	value, found, err := get(reader, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(value, target); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

func readCounter(reader pebble.Reader, key []byte) (uint64, error) {
	value, found, err := get(reader, key)
	if err != nil || !found {
		return 0, err
	}
	if len(value) != 8 {
		return 0, fmt.Errorf("storage: counter %q has %d bytes", key, len(value))
	}
	return binary.BigEndian.Uint64(value), nil
}

// scan visits keys in [lower, upper) in order, stopping after limit entries
// when limit is positive.
func scan(reader pebble.Reader, lower, upper []byte, limit int, visit func(key, value []byte) error) error {
	iter, err := reader.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	count := 0
	for valid := iter.First(); valid; valid = iter.Next() {
		if limit > 0 && count == limit {
			break
		}
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}
		if err := visit(iter.Key(), value); err != nil {
			return err
		}
		count++
	}
	return iter.Error()
}

func encodeUint64(value uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, value)
}

func raffleKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(bytes.Clone(rafflePrefix), id)
}

func ticketKeyPrefix(raffleID uint64) []byte {
	return binary.BigEndian.AppendUint64(bytes.Clone(ticketPrefix), raffleID)
}

func ticketKey(raffleID uint64, index uint32) []byte {
	return binary.BigEndian.AppendUint32(ticketKeyPrefix(raffleID), index)
}

func balanceKey(token, account ledger.Address) []byte {
	key := append(bytes.Clone(balancePrefix), token...)
	key = append(key, balanceKeySepByte)
	return append(key, account...)
}

func eventKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(bytes.Clone(eventPrefix), id)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
