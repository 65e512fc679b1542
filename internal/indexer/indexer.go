package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tikka/internal/event"
	"tikka/internal/logger"
)

const (
	DefaultBatchSize = 50
	touchName        = "raffle_events"
)

// EventSource is the event log the indexer follows.
type EventSource interface {
	Events(ctx context.Context, afterID uint64, limit int) ([]event.Record, error)
}

type Indexer struct {
	ctx       context.Context
	source    EventSource
	storage   *ViewStorage
	batchSize int
	state     *State
	cursor    uint64
}

func NewIndexer(ctx context.Context, source EventSource, storage *ViewStorage, batchSize int) (*Indexer, error) {
	logger.Debug("initializing indexer...")

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	indexer := &Indexer{
		ctx:       ctx,
		source:    source,
		storage:   storage,
		batchSize: batchSize,
	}
	if err := indexer.reload(); err != nil {
		return nil, err
	}

	logger.Debug("initializing indexer... done", zap.Uint64("cursor", indexer.cursor))
	return indexer, nil
}

func (i *Indexer) reload() error {
	state, err := i.storage.Load()
	if err != nil {
		return err
	}
	cursor, err := i.storage.GetTouch(touchName)
	if err != nil {
		return err
	}
	i.state, i.cursor = state, cursor
	return nil
}

// Cursor is the id of the last event reflected in the views.
func (i *Indexer) Cursor() uint64 {
	return i.cursor
}

func (i *Indexer) Storage() *ViewStorage {
	return i.storage
}

// Run applies every event published after the cursor, one window at a time,
// and returns how many were applied. A failed window leaves the views at the
// previous window.
func (i *Indexer) Run() (int, error) {
	applied := 0
	for {
		n, err := i.window()
		if err != nil {
			if reloadErr := i.reload(); reloadErr != nil {
				logger.Error("cannot reload views", zap.Error(reloadErr))
			}
			return applied, err
		}
		applied += n
		if n < i.batchSize {
			return applied, nil
		}
	}
}

func (i *Indexer) window() (int, error) {
	records, err := busyRetry(i.ctx, func() ([]event.Record, error) {
		return i.source.Events(i.ctx, i.cursor, i.batchSize)
	})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	for _, record := range records {
		if err := i.state.Apply(record); err != nil {
			return 0, fmt.Errorf("indexer: event %d (%s): %w", record.ID, record.Topic, err)
		}
	}

	cursor := records[len(records)-1].ID
	raffles, tickets, platform := i.state.Changes()
	_, err = busyRetry(i.ctx, func() (struct{}, error) {
		return struct{}{}, i.storage.Save(touchName, cursor, raffles, tickets, platform)
	})
	if err != nil {
		return 0, err
	}

	logger.Debug("indexed events", zap.Int("count", len(records)), zap.Uint64("cursor", cursor))
	i.cursor = cursor
	return len(records), nil
}
