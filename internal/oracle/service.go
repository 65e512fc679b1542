package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tikka/internal/logger"
)

const DefaultPollInterval = 5 * time.Second

var ErrRunning = errors.New("oracle: service already running")

// Indexer brings the views the responder reads up to date.
type Indexer interface {
	Run() (int, error)
}

// Service polls the event log and answers randomness requests until stopped.
type Service struct {
	indexer   Indexer
	responder *Responder
	interval  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(indexer Indexer, responder *Responder, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Service{
		indexer:   indexer,
		responder: responder,
		interval:  interval,
	}
}

// Tick runs one round: index, answer, and index the answers.
func (s *Service) Tick(ctx context.Context) error {
	if _, err := s.indexer.Run(); err != nil {
		return err
	}
	answered, err := s.responder.Run(ctx)
	if answered > 0 {
		if _, indexErr := s.indexer.Run(); indexErr != nil {
			return errors.Join(err, indexErr)
		}
	}
	return err
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)

	logger.Info("oracle service started", zap.Duration("poll interval", s.interval))
	return nil
}

// Stop cancels the loop and waits for the round in progress to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	logger.Info("oracle service stopped")
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			logger.Error("oracle round failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
