package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapBalances map[Address]map[Address]Amount

func (m mapBalances) Balance(token, account Address) (Amount, error) {
	if accounts, ok := m[token]; ok {
		if amount, ok := accounts[account]; ok {
			return amount, nil
		}
	}
	return ZeroAmount(), nil
}

func (m mapBalances) SetBalance(token, account Address, amount Amount) error {
	if _, ok := m[token]; !ok {
		m[token] = make(map[Address]Amount)
	}
	m[token][account] = amount
	return nil
}

type failingBalances struct {
	mapBalances
	failOn Address
}

func (f failingBalances) SetBalance(token, account Address, amount Amount) error {
	if account == f.failOn {
		return errors.New("disk full")
	}
	return f.mapBalances.SetBalance(token, account, amount)
}

const (
	token = Address("XLM")
	alice = Address("alice")
	bob   = Address("bob")
)

func balanceOf(t *testing.T, l *Ledger, account Address) string {
	t.Helper()
	amount, err := l.Balance(token, account)
	require.NoError(t, err)
	return amount.String()
}

func TestLedger(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, l *Ledger)
	}{
		{
			name: "mint_and_transfer",
			fn: func(t *testing.T, l *Ledger) {
				require.NoError(t, l.Mint(token, alice, NewAmount(100)))
				require.NoError(t, l.Transfer(token, alice, bob, NewAmount(40)))
				assert.Equal(t, "60", balanceOf(t, l, alice))
				assert.Equal(t, "40", balanceOf(t, l, bob))
			},
		},
		{
			name: "insufficient_balance",
			fn: func(t *testing.T, l *Ledger) {
				require.NoError(t, l.Mint(token, alice, NewAmount(10)))
				err := l.Transfer(token, alice, bob, NewAmount(11))
				assert.ErrorIs(t, err, ErrInsufficientBalance)
				assert.Equal(t, "10", balanceOf(t, l, alice))
				assert.Equal(t, "0", balanceOf(t, l, bob))
			},
		},
		{
			name: "non_positive_transfer",
			fn: func(t *testing.T, l *Ledger) {
				assert.ErrorIs(t, l.Transfer(token, alice, bob, ZeroAmount()), ErrInvalidAmount)
				assert.ErrorIs(t, l.Transfer(token, alice, bob, NewAmount(-5)), ErrInvalidAmount)
			},
		},
		{
			name: "self_transfer",
			fn: func(t *testing.T, l *Ledger) {
				require.NoError(t, l.Mint(token, alice, NewAmount(5)))
				assert.ErrorIs(t, l.Transfer(token, alice, alice, NewAmount(5)), ErrSelfTransfer)
				assert.Equal(t, "5", balanceOf(t, l, alice))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, New(mapBalances{}))
		})
	}
}

func TestLedgerPropagatesStoreErrors(t *testing.T) {
	balances := failingBalances{mapBalances: mapBalances{}, failOn: bob}
	l := New(balances)
	require.NoError(t, l.Mint(token, alice, NewAmount(10)))

	err := l.Transfer(token, alice, bob, NewAmount(1))
	assert.EqualError(t, err, "disk full")
}

func TestAmounts(t *testing.T) {
	amount, err := ParseAmount("170141183460469231731687303715884105727")
	require.NoError(t, err)
	assert.Equal(t, "170141183460469231731687303715884105727", amount.String())

	_, err = ParseAmount("170141183460469231731687303715884105728")
	assert.ErrorIs(t, err, ErrAmountRange)

	_, err = ParseAmount("1.5")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseAmount("ten")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = MulAmount(maxAmount, 2)
	assert.ErrorIs(t, err, ErrAmountRange)

	product, err := MulAmount(NewAmount(10), 3)
	require.NoError(t, err)
	assert.Equal(t, "30", product.String())
}

func TestFee(t *testing.T) {
	assert.Equal(t, "1", Fee(NewAmount(100), 100).String())
	assert.Equal(t, "5", Fee(NewAmount(100), 500).String())
	assert.Equal(t, "0", Fee(NewAmount(99), 100).String())
	assert.Equal(t, "0", Fee(NewAmount(100), 0).String())
	assert.Equal(t, "100", Fee(NewAmount(100), BasisPoints).String())
}

func TestNormalizeAddress(t *testing.T) {
	address, err := NormalizeAddress("  alice ")
	require.NoError(t, err)
	assert.Equal(t, alice, address)

	_, err = NormalizeAddress("")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = NormalizeAddress("al ice")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	raw := "0:584ee61b2dff0837116d0fcb5078d93964bcbe9c05fd6a141b1bfca5d6a43e18"
	address, err = NormalizeAddress("0:584EE61B2DFF0837116D0FCB5078D93964BCBE9C05FD6A141B1BFCA5D6A43E18")
	require.NoError(t, err)
	assert.Equal(t, Address(raw), address)

	optional, err := OptionalAddress("")
	require.NoError(t, err)
	assert.Nil(t, optional)
}

func TestManualClock(t *testing.T) {
	clock := NewManualClock(1_000)
	first := clock.Now()
	clock.Advance(50)
	second := clock.Now()

	assert.Equal(t, Tick{Timestamp: 1_000, Sequence: 1}, first)
	assert.Equal(t, Tick{Timestamp: 1_050, Sequence: 2}, second)

	system := NewSystemClock(41)
	assert.Equal(t, uint64(42), system.Now().Sequence)
	assert.Equal(t, uint64(43), system.Now().Sequence)
}
