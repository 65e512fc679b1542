package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tikka/internal/event"
	"tikka/internal/ledger"
	"tikka/internal/raffle"
)

var errRollback = errors.New("rollback")

func backends(t *testing.T) map[string]func(t *testing.T) Storage {
	return map[string]func(t *testing.T) Storage{
		"sqlite memory": func(t *testing.T) Storage {
			s, err := Open(SqliteDriver, MemoryPath)
			require.NoError(t, err)
			return s
		},
		"sqlite file": func(t *testing.T) Storage {
			s, err := Open(SqliteDriver, filepath.Join(t.TempDir(), "raffle.db"))
			require.NoError(t, err)
			return s
		},
		"pebble memory": func(t *testing.T) Storage {
			s, err := Open(PebbleDriver, MemoryPath)
			require.NoError(t, err)
			return s
		},
		"pebble dir": func(t *testing.T) Storage {
			s, err := Open(PebbleDriver, filepath.Join(t.TempDir(), "raffle"))
			require.NoError(t, err)
			return s
		},
	}
}

func sampleRaffle(id uint64) *raffle.Raffle {
	winner := ledger.Address("bob")
	seed := uint64(1<<63 + 5)
	return &raffle.Raffle{
		ID:               id,
		Creator:          "alice",
		Description:      "a bicycle",
		EndTime:          2000,
		MaxTickets:       10,
		AllowMultiple:    true,
		TicketPrice:      ledger.NewAmount(10),
		PaymentToken:     "usd",
		PrizeAmount:      ledger.NewAmount(100),
		TicketsSold:      3,
		Status:           raffle.StatusFinalized,
		PrizeDeposited:   true,
		Winner:           &winner,
		WinningTicket:    2,
		RandomnessSource: raffle.RandomnessExternal,
		PendingSeed: &raffle.SeedRequest{
			Oracle:      "oracle",
			RequestedAt: 1999,
			Seed:        &seed,
		},
		FeeBP:     250,
		CreatedAt: 1000,
	}
}

type payload struct {
	Value string `json:"value"`
}

func (payload) EventName() string { return "payload" }

func TestStorage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func(t *testing.T, s Storage)
	}{
		{
			name: "missing raffle",
			fn: func(t *testing.T, s Storage) {
				err := s.View(ctx, func(tx raffle.ReadTx) error {
					_, err := tx.Raffle(7)
					return err
				})
				assert.ErrorIs(t, err, raffle.ErrNotFound)
			},
		},
		{
			name: "raffle round trip",
			fn: func(t *testing.T, s Storage) {
				original := sampleRaffle(1)
				require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error {
					return tx.PutRaffle(original)
				}))

				var got *raffle.Raffle
				require.NoError(t, s.View(ctx, func(tx raffle.ReadTx) error {
					var err error
					got, err = tx.Raffle(1)
					return err
				}))
				assert.True(t, original.TicketPrice.Equal(got.TicketPrice))
				assert.True(t, original.PrizeAmount.Equal(got.PrizeAmount))
				got.TicketPrice, got.PrizeAmount = original.TicketPrice, original.PrizeAmount
				assert.Equal(t, original, got)
			},
		},
		{
			name: "raffle ids are allocated in order",
			fn: func(t *testing.T, s Storage) {
				var ids []uint64
				for range 3 {
					require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error {
						id, err := tx.NextRaffleID()
						ids = append(ids, id)
						return err
					}))
				}
				assert.Equal(t, []uint64{1, 2, 3}, ids)
			},
		},
		{
			name: "raffles page by id",
			fn: func(t *testing.T, s Storage) {
				require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error {
					for id := uint64(1); id <= 5; id++ {
						if err := tx.PutRaffle(sampleRaffle(id)); err != nil {
							return err
						}
					}
					return nil
				}))

				require.NoError(t, s.View(ctx, func(tx raffle.ReadTx) error {
					page, err := tx.Raffles(2, 2)
					require.NoError(t, err)
					require.Len(t, page, 2)
					assert.Equal(t, uint64(3), page[0].ID)
					assert.Equal(t, uint64(4), page[1].ID)

					all, err := tx.Raffles(0, 0)
					require.NoError(t, err)
					assert.Len(t, all, 5)
					return nil
				}))
			},
		},
		{
			name: "tickets are ordered and upserted",
			fn: func(t *testing.T, s Storage) {
				require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error {
					return tx.PutTickets([]raffle.Ticket{
						{RaffleID: 1, Index: 2, Buyer: "bob", PurchasedAt: 5},
						{RaffleID: 1, Index: 1, Buyer: "carol", PurchasedAt: 4},
						{RaffleID: 1, Index: 3, Buyer: "bob", PurchasedAt: 6},
						{RaffleID: 2, Index: 1, Buyer: "bob", PurchasedAt: 6},
					})
				}))
				require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error {
					return tx.PutTickets([]raffle.Ticket{{RaffleID: 1, Index: 2, Buyer: "bob", PurchasedAt: 5, Refunded: true}})
				}))

				require.NoError(t, s.View(ctx, func(tx raffle.ReadTx) error {
					tickets, err := tx.Tickets(1)
					require.NoError(t, err)
					require.Len(t, tickets, 3)
					for i, ticket := range tickets {
						assert.Equal(t, uint32(i+1), ticket.Index)
					}
					assert.True(t, tickets[1].Refunded)

					bobs, err := tx.TicketsOf(1, "bob")
					require.NoError(t, err)
					require.Len(t, bobs, 2)
					assert.Equal(t, uint32(2), bobs[0].Index)
					assert.Equal(t, uint32(3), bobs[1].Index)

					none, err := tx.Tickets(9)
					require.NoError(t, err)
					assert.Empty(t, none)
					return nil
				}))
			},
		},
		{
			name: "platform defaults and round trip",
			fn: func(t *testing.T, s Storage) {
				require.NoError(t, s.View(ctx, func(tx raffle.ReadTx) error {
					platform, err := tx.Platform()
					require.NoError(t, err)
					assert.False(t, platform.Initialized)
					assert.Nil(t, platform.Admin)
					return nil
				}))

				admin, oracle := ledger.Address("admin"), ledger.Address("oracle")
				platform := &raffle.Platform{Initialized: true, Admin: &admin, Oracle: &oracle, FeeBP: 300, Paused: true}
				platform.SetAccruedFee("usd", ledger.NewAmount(42))
				platform.SetAccruedFee("eur", ledger.NewAmount(7))
				require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error { return tx.PutPlatform(platform) }))

				platform.SetAccruedFee("eur", ledger.ZeroAmount())
				require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error { return tx.PutPlatform(platform) }))

				require.NoError(t, s.View(ctx, func(tx raffle.ReadTx) error {
					got, err := tx.Platform()
					require.NoError(t, err)
					assert.True(t, got.Initialized)
					assert.True(t, got.Paused)
					assert.Equal(t, uint32(300), got.FeeBP)
					assert.Equal(t, &admin, got.Admin)
					assert.Equal(t, &oracle, got.Oracle)
					assert.Nil(t, got.Treasury)
					assert.Equal(t, "42", got.AccruedFee("usd").String())
					assert.True(t, got.AccruedFee("eur").IsZero())
					assert.Len(t, got.AccruedFees, 1)
					return nil
				}))
			},
		},
		{
			name: "balances",
			fn: func(t *testing.T, s Storage) {
				big, err := ledger.ParseAmount("170141183460469231731687303715884105727")
				require.NoError(t, err)
				require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error {
					if err := tx.SetBalance("usd", "alice", big); err != nil {
						return err
					}
					return tx.SetBalance("usd", "bob", ledger.NewAmount(3))
				}))

				require.NoError(t, s.View(ctx, func(tx raffle.ReadTx) error {
					alice, err := tx.Balance("usd", "alice")
					require.NoError(t, err)
					assert.True(t, big.Equal(alice))

					missing, err := tx.Balance("eur", "alice")
					require.NoError(t, err)
					assert.True(t, missing.IsZero())
					return nil
				}))
			},
		},
		{
			name: "failed update leaves nothing behind",
			fn: func(t *testing.T, s Storage) {
				err := s.Update(ctx, func(tx raffle.Tx) error {
					if _, err := tx.NextRaffleID(); err != nil {
						return err
					}
					if err := tx.PutRaffle(sampleRaffle(1)); err != nil {
						return err
					}
					if err := tx.SetBalance("usd", "alice", ledger.NewAmount(5)); err != nil {
						return err
					}
					emitter := event.NewEmitter("raffle", ledger.Tick{Sequence: 3})
					emitter.Emit(1, payload{Value: "x"})
					if err := emitter.Flush(tx); err != nil {
						return err
					}
					return errRollback
				})
				require.ErrorIs(t, err, errRollback)

				require.NoError(t, s.View(ctx, func(tx raffle.ReadTx) error {
					_, err := tx.Raffle(1)
					assert.ErrorIs(t, err, raffle.ErrNotFound)
					balance, err := tx.Balance("usd", "alice")
					require.NoError(t, err)
					assert.True(t, balance.IsZero())
					return nil
				}))

				records, err := s.Events(ctx, 0, 0)
				require.NoError(t, err)
				assert.Empty(t, records)

				require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error {
					id, err := tx.NextRaffleID()
					assert.Equal(t, uint64(1), id)
					return err
				}))
			},
		},
		{
			name: "reads inside an update see its writes",
			fn: func(t *testing.T, s Storage) {
				require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error {
					require.NoError(t, tx.PutRaffle(sampleRaffle(4)))
					got, err := tx.Raffle(4)
					require.NoError(t, err)
					assert.Equal(t, uint64(4), got.ID)

					require.NoError(t, tx.SetBalance("usd", "alice", ledger.NewAmount(9)))
					balance, err := tx.Balance("usd", "alice")
					require.NoError(t, err)
					assert.Equal(t, "9", balance.String())
					return nil
				}))
			},
		},
		{
			name: "integers keep the whole uint64 range",
			fn: func(t *testing.T, s Storage) {
				original := sampleRaffle(1)
				original.EndTime = math.MaxUint64
				original.CreatedAt = 1 << 63
				original.PendingSeed.RequestedAt = math.MaxUint64 - 1
				ticket := raffle.Ticket{RaffleID: 1, Index: 1, Buyer: "bob", PurchasedAt: math.MaxUint64}

				require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error {
					if err := tx.PutRaffle(original); err != nil {
						return err
					}
					if err := tx.PutTickets([]raffle.Ticket{ticket}); err != nil {
						return err
					}
					emitter := event.NewEmitter("raffle", ledger.Tick{Timestamp: math.MaxUint64, Sequence: 1<<63 + 1})
					emitter.Emit(1, payload{Value: "late"})
					return emitter.Flush(tx)
				}))

				require.NoError(t, s.View(ctx, func(tx raffle.ReadTx) error {
					got, err := tx.Raffle(1)
					require.NoError(t, err)
					assert.Equal(t, uint64(math.MaxUint64), got.EndTime)
					assert.Equal(t, uint64(1<<63), got.CreatedAt)
					assert.Equal(t, uint64(math.MaxUint64-1), got.PendingSeed.RequestedAt)
					assert.Equal(t, *original.PendingSeed.Seed, *got.PendingSeed.Seed)

					tickets, err := tx.Tickets(1)
					require.NoError(t, err)
					assert.Equal(t, []raffle.Ticket{ticket}, tickets)
					return nil
				}))

				records, err := s.Events(ctx, 0, 0)
				require.NoError(t, err)
				require.Len(t, records, 1)
				assert.Equal(t, uint64(math.MaxUint64), records[0].Timestamp)
				assert.Equal(t, uint64(1<<63+1), records[0].Sequence)

				sequence, err := s.LatestSequence(ctx)
				require.NoError(t, err)
				assert.Equal(t, uint64(1<<63+1), sequence)
			},
		},
		{
			name: "event log",
			fn: func(t *testing.T, s Storage) {
				for i, value := range []string{"a", "b", "c"} {
					require.NoError(t, s.Update(ctx, func(tx raffle.Tx) error {
						emitter := event.NewEmitter("raffle", ledger.Tick{Timestamp: 100, Sequence: uint64(10 + i)})
						emitter.Emit(uint64(i+1), payload{Value: value})
						emitter.Emit(uint64(i+1), payload{Value: value + value})
						return emitter.Flush(tx)
					}))
				}

				records, err := s.Events(ctx, 0, 0)
				require.NoError(t, err)
				require.Len(t, records, 6)
				for i, record := range records {
					assert.Equal(t, uint64(i+1), record.ID)
					assert.Equal(t, event.Topic{Namespace: "raffle", Name: "payload"}, record.Topic)
				}
				assert.JSONEq(t, `{"value":"a"}`, string(records[0].Payload))
				assert.JSONEq(t, `{"value":"aa"}`, string(records[1].Payload))
				assert.Equal(t, records[0].TxID, records[1].TxID)
				assert.NotEqual(t, records[1].TxID, records[2].TxID)
				assert.Equal(t, uint64(12), records[5].Sequence)
				assert.Equal(t, uint64(3), records[5].RaffleID)

				page, err := s.Events(ctx, 2, 3)
				require.NoError(t, err)
				require.Len(t, page, 3)
				assert.Equal(t, uint64(3), page[0].ID)
				assert.Equal(t, uint64(5), page[2].ID)

				sequence, err := s.LatestSequence(ctx)
				require.NoError(t, err)
				assert.Equal(t, uint64(12), sequence)
			},
		},
	}

	for backend, open := range backends(t) {
		for _, tt := range tests {
			t.Run(backend+"/"+tt.name, func(t *testing.T) {
				s := open(t)
				defer func() {
					require.NoError(t, s.Close())
				}()
				tt.fn(t, s)
			})
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("bolt", MemoryPath)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestPebbleClosed(t *testing.T) {
	s, err := NewPebbleStorage(MemoryPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.Update(context.Background(), func(tx raffle.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("s"), prefixEnd([]byte("r")))
	assert.Equal(t, []byte("r0"), prefixEnd([]byte("r/")))
	assert.Equal(t, []byte{0x02}, prefixEnd([]byte{0x01, 0xff}))
	assert.Nil(t, prefixEnd([]byte{0xff, 0xff}))
}
