package storage

import (
	"context"
	"errors"
	"fmt"

	"tikka/internal/event"
	"tikka/internal/raffle"
)

// Storage is a raffle store that also exposes its event log.
type Storage interface {
	raffle.Store

	// event log
	Events(ctx context.Context, afterID uint64, limit int) ([]event.Record, error)
	LatestSequence(ctx context.Context) (uint64, error)

	Close() error
}

type Driver = string

const (
	SqliteDriver Driver = "sqlite"
	PebbleDriver Driver = "pebble"
)

// MemoryPath opens a store that lives only as long as the process.
const MemoryPath = ":memory:"

var ErrUnknownDriver = errors.New("storage: unknown driver")

func Open(driver Driver, path string) (Storage, error) {
	switch driver {
	case SqliteDriver:
		return NewSqliteStorage(path)
	case PebbleDriver:
		return NewPebbleStorage(path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}
