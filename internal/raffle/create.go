package raffle

import (
	"context"
	"fmt"

	"tikka/internal/ledger"
)

type CreateParams struct {
	Creator          ledger.Address
	Description      string
	EndTime          uint64
	MaxTickets       uint32
	TicketPrice      ledger.Amount
	PaymentToken     ledger.Address
	PrizeAmount      ledger.Amount
	AllowMultiple    bool
	RandomnessSource RandomnessSource
}

func (p CreateParams) validate(now uint64) error {
	switch {
	case p.Creator == "":
		return fmt.Errorf("%w: creator is empty", ErrInvalidParameters)
	case p.PaymentToken == "":
		return fmt.Errorf("%w: payment token is empty", ErrInvalidParameters)
	case p.MaxTickets < 1:
		return fmt.Errorf("%w: max tickets must be at least 1", ErrInvalidParameters)
	case p.EndTime != 0 && p.EndTime <= now:
		return fmt.Errorf("%w: end time %d is not after %d", ErrInvalidParameters, p.EndTime, now)
	case p.RandomnessSource > RandomnessExternal:
		return fmt.Errorf("%w: unknown randomness source %d", ErrInvalidParameters, uint8(p.RandomnessSource))
	}
	if err := positiveAmount("ticket price", p.TicketPrice); err != nil {
		return err
	}
	if err := positiveAmount("prize amount", p.PrizeAmount); err != nil {
		return err
	}
	// a full raffle must still be payable
	if _, err := ledger.MulAmount(p.TicketPrice, uint64(p.MaxTickets)); err != nil {
		return fmt.Errorf("%w: %w", ErrOverflow, err)
	}
	return nil
}

func positiveAmount(name string, amount ledger.Amount) error {
	if err := ledger.CheckAmount(amount); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidParameters, name, err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidParameters, name)
	}
	return nil
}

// Create registers a Proposed raffle and returns its id. The platform fee in
// force now is the one charged when the prize is claimed.
func (c *Contract) Create(ctx context.Context, params CreateParams) (uint64, error) {
	var id uint64
	err := c.update(ctx, "create", func(o *op) error {
		platform, err := o.tx.Platform()
		if err != nil {
			return err
		}
		if platform.Paused {
			return ErrPaused
		}
		if err := params.validate(o.now.Timestamp); err != nil {
			return err
		}
		if params.Creator == o.escrow {
			return fmt.Errorf("%w: escrow cannot create raffles", ErrInvalidParameters)
		}
		if params.RandomnessSource == RandomnessExternal && platform.Oracle == nil {
			return fmt.Errorf("%w: external randomness needs a registered oracle", ErrInvalidParameters)
		}

		id, err = o.tx.NextRaffleID()
		if err != nil {
			return err
		}

		raffle := &Raffle{
			ID:               id,
			Creator:          params.Creator,
			Description:      params.Description,
			EndTime:          params.EndTime,
			MaxTickets:       params.MaxTickets,
			AllowMultiple:    params.AllowMultiple,
			TicketPrice:      params.TicketPrice,
			PaymentToken:     params.PaymentToken,
			PrizeAmount:      params.PrizeAmount,
			Status:           StatusProposed,
			RandomnessSource: params.RandomnessSource,
			FeeBP:            platform.FeeBP,
			CreatedAt:        o.now.Timestamp,
		}
		if err := o.save(raffle); err != nil {
			return err
		}

		o.emit(id, RaffleCreated{
			RaffleID:         id,
			Creator:          raffle.Creator,
			EndTime:          raffle.EndTime,
			MaxTickets:       raffle.MaxTickets,
			AllowMultiple:    raffle.AllowMultiple,
			TicketPrice:      raffle.TicketPrice,
			PaymentToken:     raffle.PaymentToken,
			PrizeAmount:      raffle.PrizeAmount,
			Description:      raffle.Description,
			RandomnessSource: raffle.RandomnessSource,
			FeeBP:            raffle.FeeBP,
			Timestamp:        o.now.Timestamp,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DepositPrize moves the prize from the creator into escrow and opens ticket
// sales.
func (c *Contract) DepositPrize(ctx context.Context, raffleID uint64, creator ledger.Address) error {
	return c.update(ctx, "deposit_prize", func(o *op) error {
		raffle, err := o.raffle(raffleID)
		if err != nil {
			return err
		}
		switch {
		case raffle.PrizeDeposited:
			return fmt.Errorf("%w: prize of raffle %d already deposited", ErrAlreadyProcessed, raffleID)
		case raffle.Status != StatusProposed:
			return fmt.Errorf("%w: raffle %d is %s", ErrInvalidState, raffleID, raffle.Status)
		case raffle.Creator != creator:
			return ErrUnauthorized
		}
		platform, err := o.tx.Platform()
		if err != nil {
			return err
		}
		if platform.Paused {
			return ErrPaused
		}

		if err := o.move(raffle.PaymentToken, creator, o.escrow, raffle.PrizeAmount); err != nil {
			return err
		}

		raffle.PrizeDeposited = true
		raffle.Status = StatusActive
		if err := o.save(raffle); err != nil {
			return err
		}

		emitTransition(o.emitter, raffleID, PrizeDeposited{
			RaffleID:  raffleID,
			Creator:   creator,
			Amount:    raffle.PrizeAmount,
			Token:     raffle.PaymentToken,
			Timestamp: o.now.Timestamp,
		}, StatusProposed, StatusActive, o.now.Timestamp)
		return nil
	})
}
