package ledger

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tonkeeper/tongo/ton"
)

// Address identifies an account or an asset. The core treats it as opaque and
// compares it byte for byte.
type Address string

var ErrInvalidAddress = errors.New("ledger: invalid address")

func (a Address) String() string {
	return string(a)
}

// NormalizeAddress canonicalizes an account identifier. TON account ids in
// either raw or user-friendly form are reduced to raw form so both spellings
// refer to the same account; any other identifier is kept as given.
func NormalizeAddress(value string) (Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: %q contains whitespace", ErrInvalidAddress, value)
	}

	if accountID, err := ton.ParseAccountID(value); err == nil {
		return Address(accountID.ToRaw()), nil
	}

	return Address(value), nil
}

// MustAddress is NormalizeAddress for constants and tests.
func MustAddress(value string) Address {
	address, err := NormalizeAddress(value)
	if err != nil {
		panic(err)
	}
	return address
}

func OptionalAddress(value string) (*Address, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	address, err := NormalizeAddress(value)
	if err != nil {
		return nil, err
	}
	return &address, nil
}
