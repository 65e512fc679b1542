package oracle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tikka/internal/ledger"
	"tikka/internal/logger"
	"tikka/internal/raffle"
)

type RandomnessProvider interface {
	ProvideRandomness(ctx context.Context, raffleID uint64, oracle ledger.Address, seed uint64) (ledger.Address, error)
}

type PendingRequests interface {
	PendingRandomness(oracle ledger.Address) ([]*raffle.Raffle, error)
}

// Responder answers the randomness requests addressed to one oracle account.
type Responder struct {
	provider RandomnessProvider
	pending  PendingRequests
	account  ledger.Address
	seeds    SeedSource
}

func NewResponder(provider RandomnessProvider, pending PendingRequests, account ledger.Address, seeds SeedSource) *Responder {
	return &Responder{
		provider: provider,
		pending:  pending,
		account:  account,
		seeds:    seeds,
	}
}

// Run answers every pending request and returns how many were answered.
// Requests that were answered elsewhere since the views were built are
// skipped. A failed request does not stop the others.
func (r *Responder) Run(ctx context.Context) (int, error) {
	requests, err := r.pending.PendingRandomness(r.account)
	if err != nil {
		return 0, err
	}

	answered := 0
	var errs []error
	for _, request := range requests {
		if err := ctx.Err(); err != nil {
			return answered, err
		}

		seed, err := r.seeds.Seed(ctx)
		if err != nil {
			return answered, err
		}

		logger.Debug("providing randomness...", zap.Uint64("raffle id", request.ID))
		winner, err := r.provider.ProvideRandomness(ctx, request.ID, r.account, seed)
		switch {
		case errors.Is(err, raffle.ErrAlreadyProcessed):
			logger.Debug("randomness already provided", zap.Uint64("raffle id", request.ID))
			continue
		case err != nil:
			logger.Error("cannot provide randomness", zap.Uint64("raffle id", request.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("raffle %d: %w", request.ID, err))
			continue
		}

		logger.Info("randomness provided", zap.Uint64("raffle id", request.ID), zap.String("winner", string(winner)))
		answered++
	}
	return answered, errors.Join(errs...)
}
