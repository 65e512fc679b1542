package raffle

import (
	"context"
	"fmt"

	"tikka/internal/ledger"
)

type InitParams struct {
	Admin    ledger.Address
	FeeBP    uint32
	Treasury *ledger.Address
	Oracle   *ledger.Address
}

// Init sets up the platform once.
func (c *Contract) Init(ctx context.Context, params InitParams) error {
	return c.update(ctx, "init", func(o *op) error {
		platform, err := o.tx.Platform()
		if err != nil {
			return err
		}
		switch {
		case platform.Initialized:
			return ErrAlreadyInitialized
		case params.Admin == "":
			return fmt.Errorf("%w: admin is empty", ErrInvalidParameters)
		case params.FeeBP > ledger.BasisPoints:
			return fmt.Errorf("%w: fee %d bp above %d", ErrInvalidParameters, params.FeeBP, ledger.BasisPoints)
		case params.Treasury != nil && *params.Treasury == "",
			params.Oracle != nil && *params.Oracle == "":
			return fmt.Errorf("%w: empty account", ErrInvalidParameters)
		case params.Treasury != nil && *params.Treasury == o.escrow:
			return fmt.Errorf("%w: escrow cannot be the treasury", ErrInvalidParameters)
		}

		admin := params.Admin
		platform.Initialized = true
		platform.Admin = &admin
		platform.FeeBP = params.FeeBP
		platform.Treasury = copyAddress(params.Treasury)
		platform.Oracle = copyAddress(params.Oracle)
		if err := o.tx.PutPlatform(platform); err != nil {
			return err
		}

		o.emit(0, AdminTransferAccepted{NewAdmin: admin, Timestamp: o.now.Timestamp})
		o.emit(0, FeeUpdated{NewFeeBP: params.FeeBP, UpdatedBy: admin, Timestamp: o.now.Timestamp})
		if params.Treasury != nil {
			o.emit(0, TreasuryUpdated{NewTreasury: *params.Treasury, UpdatedBy: admin, Timestamp: o.now.Timestamp})
		}
		if params.Oracle != nil {
			o.emit(0, OracleAddressUpdated{NewOracle: *params.Oracle, UpdatedBy: admin, Timestamp: o.now.Timestamp})
		}
		return nil
	})
}

func (c *Contract) SetOracle(ctx context.Context, admin, oracle ledger.Address) error {
	return c.admin(ctx, "set_oracle", admin, func(o *op, platform *Platform) (bool, error) {
		if oracle == "" {
			return false, fmt.Errorf("%w: oracle is empty", ErrInvalidParameters)
		}
		if platform.Oracle != nil && *platform.Oracle == oracle {
			return false, nil
		}
		old := platform.Oracle
		platform.Oracle = &oracle
		o.emit(0, OracleAddressUpdated{OldOracle: old, NewOracle: oracle, UpdatedBy: admin, Timestamp: o.now.Timestamp})
		return true, nil
	})
}

// SetFee changes the fee of raffles created from now on.
func (c *Contract) SetFee(ctx context.Context, admin ledger.Address, feeBP uint32) error {
	return c.admin(ctx, "set_fee", admin, func(o *op, platform *Platform) (bool, error) {
		if feeBP > ledger.BasisPoints {
			return false, fmt.Errorf("%w: fee %d bp above %d", ErrInvalidParameters, feeBP, ledger.BasisPoints)
		}
		if platform.FeeBP == feeBP {
			return false, nil
		}
		old := platform.FeeBP
		platform.FeeBP = feeBP
		o.emit(0, FeeUpdated{OldFeeBP: old, NewFeeBP: feeBP, UpdatedBy: admin, Timestamp: o.now.Timestamp})
		return true, nil
	})
}

func (c *Contract) SetTreasury(ctx context.Context, admin, treasury ledger.Address) error {
	return c.admin(ctx, "set_treasury", admin, func(o *op, platform *Platform) (bool, error) {
		if treasury == "" {
			return false, fmt.Errorf("%w: treasury is empty", ErrInvalidParameters)
		}
		if treasury == o.escrow {
			return false, fmt.Errorf("%w: escrow cannot be the treasury", ErrInvalidParameters)
		}
		if platform.Treasury != nil && *platform.Treasury == treasury {
			return false, nil
		}
		old := platform.Treasury
		platform.Treasury = &treasury
		o.emit(0, TreasuryUpdated{OldTreasury: old, NewTreasury: treasury, UpdatedBy: admin, Timestamp: o.now.Timestamp})
		return true, nil
	})
}

// WithdrawFees pays out the fees accrued in token while no treasury was set.
func (c *Contract) WithdrawFees(ctx context.Context, admin, token, recipient ledger.Address) (ledger.Amount, error) {
	var amount ledger.Amount
	err := c.admin(ctx, "withdraw_fees", admin, func(o *op, platform *Platform) (bool, error) {
		if recipient == "" {
			return false, fmt.Errorf("%w: recipient is empty", ErrInvalidParameters)
		}
		if recipient == o.escrow {
			return false, fmt.Errorf("%w: fees cannot be paid to escrow", ErrInvalidParameters)
		}
		amount = platform.AccruedFee(token)
		if !amount.IsPositive() {
			return false, fmt.Errorf("%w: no fees accrued in %s", ErrInvalidState, token)
		}
		if err := o.move(token, o.escrow, recipient, amount); err != nil {
			return false, err
		}
		platform.SetAccruedFee(token, ledger.ZeroAmount())
		o.emit(0, FeesWithdrawn{Recipient: recipient, Amount: amount, Token: token, Timestamp: o.now.Timestamp})
		return true, nil
	})
	if err != nil {
		return ledger.ZeroAmount(), err
	}
	return amount, nil
}

// Pause stops raffle creation, prize deposits and ticket sales. Draws, claims,
// cancellations and refunds keep working.
func (c *Contract) Pause(ctx context.Context, admin ledger.Address) error {
	return c.admin(ctx, "pause", admin, func(o *op, platform *Platform) (bool, error) {
		if platform.Paused {
			return false, nil
		}
		platform.Paused = true
		o.emit(0, ContractPaused{PausedBy: admin, Timestamp: o.now.Timestamp})
		return true, nil
	})
}

func (c *Contract) Unpause(ctx context.Context, admin ledger.Address) error {
	return c.admin(ctx, "unpause", admin, func(o *op, platform *Platform) (bool, error) {
		if !platform.Paused {
			return false, nil
		}
		platform.Paused = false
		o.emit(0, ContractUnpaused{UnpausedBy: admin, Timestamp: o.now.Timestamp})
		return true, nil
	})
}

// ProposeAdmin starts a two step admin handover; proposed completes it with
// AcceptAdmin.
func (c *Contract) ProposeAdmin(ctx context.Context, admin, proposed ledger.Address) error {
	return c.admin(ctx, "propose_admin", admin, func(o *op, platform *Platform) (bool, error) {
		if proposed == "" || proposed == admin {
			return false, fmt.Errorf("%w: cannot propose %q", ErrInvalidParameters, proposed)
		}
		if platform.PendingAdmin != nil && *platform.PendingAdmin == proposed {
			return false, nil
		}
		platform.PendingAdmin = &proposed
		o.emit(0, AdminTransferProposed{CurrentAdmin: admin, ProposedAdmin: proposed, Timestamp: o.now.Timestamp})
		return true, nil
	})
}

func (c *Contract) AcceptAdmin(ctx context.Context, caller ledger.Address) error {
	return c.update(ctx, "accept_admin", func(o *op) error {
		platform, err := o.tx.Platform()
		if err != nil {
			return err
		}
		if !platform.Initialized {
			return ErrNotInitialized
		}
		if platform.PendingAdmin == nil || *platform.PendingAdmin != caller {
			return ErrUnauthorized
		}

		var old ledger.Address
		if platform.Admin != nil {
			old = *platform.Admin
		}
		platform.Admin = &caller
		platform.PendingAdmin = nil
		if err := o.tx.PutPlatform(platform); err != nil {
			return err
		}
		o.emit(0, AdminTransferAccepted{OldAdmin: old, NewAdmin: caller, Timestamp: o.now.Timestamp})
		return nil
	})
}

// admin runs fn for the current admin and stores the platform when fn reports
// a change.
func (c *Contract) admin(ctx context.Context, operation string, caller ledger.Address, fn func(o *op, platform *Platform) (bool, error)) error {
	return c.update(ctx, operation, func(o *op) error {
		platform, err := o.tx.Platform()
		if err != nil {
			return err
		}
		if !platform.Initialized {
			return ErrNotInitialized
		}
		if platform.Admin == nil || *platform.Admin != caller {
			return ErrUnauthorized
		}
		changed, err := fn(o, platform)
		if err != nil || !changed {
			return err
		}
		return o.tx.PutPlatform(platform)
	})
}

func copyAddress(address *ledger.Address) *ledger.Address {
	if address == nil {
		return nil
	}
	value := *address
	return &value
}
