package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrSelfTransfer        = errors.New("ledger: transfer to the paying account")
)

// Transferer moves value of one asset between two accounts.
type Transferer interface {
	Transfer(token, from, to Address, amount Amount) error
}

// Balances is the persistence a Ledger needs. Raffle store transactions
// implement it, so transfers commit or roll back with the rest of an operation.
type Balances interface {
	Balance(token, account Address) (Amount, error)
	SetBalance(token, account Address, amount Amount) error
}

// Ledger is a token balance sheet over a Balances store.
type Ledger struct {
	balances Balances
}

func New(balances Balances) *Ledger {
	return &Ledger{balances: balances}
}

func (l *Ledger) Balance(token, account Address) (Amount, error) {
	return l.balances.Balance(token, account)
}

func (l *Ledger) Transfer(token, from, to Address, amount Amount) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: transfer of %s", ErrInvalidAmount, amount.String())
	}
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfTransfer, from)
	}

	fromBalance, err := l.balances.Balance(token, from)
	if err != nil {
		return err
	}
	if fromBalance.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from, fromBalance.String(), token, amount.String())
	}

	toBalance, err := l.balances.Balance(token, to)
	if err != nil {
		return err
	}
	credited := toBalance.Add(amount)
	if err := CheckAmount(credited); err != nil {
		return err
	}

	if err := l.balances.SetBalance(token, from, fromBalance.Sub(amount)); err != nil {
		return err
	}
	return l.balances.SetBalance(token, to, credited)
}

// Mint credits amount of token to account out of thin air. It exists for
// local networks and tests; the raffle core never calls it.
func (l *Ledger) Mint(token, to Address, amount Amount) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: mint of %s", ErrInvalidAmount, amount.String())
	}
	balance, err := l.balances.Balance(token, to)
	if err != nil {
		return err
	}
	credited := balance.Add(amount)
	if err := CheckAmount(credited); err != nil {
		return err
	}
	return l.balances.SetBalance(token, to, credited)
}
