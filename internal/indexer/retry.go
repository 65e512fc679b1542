package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"tikka/internal/logger"
)

const busyRetryDelay = 500 * time.Millisecond

type Func[T any] func() (T, error)

// busyRetry repeats fn for as long as sqlite reports the database busy or
// locked by another connection.
func busyRetry[T any](ctx context.Context, fn Func[T]) (T, error) {
	for {
		result, err := fn()
		if err == nil || !isBusy(err) {
			return result, err
		}

		logger.Debug("database is busy, retrying...")
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(busyRetryDelay):
		}
	}
}

func isBusy(err error) bool {
	var e sqlite3.Error
	return errors.As(err, &e) && (e.Code == sqlite3.ErrBusy || e.Code == sqlite3.ErrLocked)
}
