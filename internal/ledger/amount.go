package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount is a quantity of a fungible asset. Values are whole numbers bounded by
// the signed 128-bit range.
type Amount = decimal.Decimal

const BasisPoints = 10_000

var (
	ErrInvalidAmount = errors.New("ledger: invalid amount")
	ErrAmountRange   = errors.New("ledger: amount outside signed 128-bit range")
)

var (
	maxAmount = decimal.NewFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1)), 0)
	minAmount = decimal.NewFromBigInt(new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127)), 0)
)

func NewAmount(value int64) Amount {
	return decimal.NewFromInt(value)
}

func ZeroAmount() Amount {
	return decimal.Zero
}

// ParseAmount parses a base-10 integer amount.
func ParseAmount(value string) (Amount, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if err := CheckAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// CheckAmount reports whether amount is integral and inside the i128 range.
func CheckAmount(amount Amount) error {
	if !amount.IsInteger() {
		return fmt.Errorf("%w: %s is not integral", ErrInvalidAmount, amount.String())
	}
	if amount.GreaterThan(maxAmount) || amount.LessThan(minAmount) {
		return fmt.Errorf("%w: %s", ErrAmountRange, amount.String())
	}
	return nil
}

// MulAmount returns amount·n, failing when the product leaves the i128 range.
func MulAmount(amount Amount, n uint64) (Amount, error) {
	product := amount.Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0))
	if err := CheckAmount(product); err != nil {
		return decimal.Zero, err
	}
	return product, nil
}

// Fee computes (amount·bp)/10000 with integer division truncating toward zero.
func Fee(amount Amount, bp uint32) Amount {
	if bp == 0 {
		return decimal.Zero
	}
	quotient, _ := amount.Mul(decimal.NewFromInt(int64(bp))).QuoRem(decimal.NewFromInt(BasisPoints), 0)
	return quotient
}
