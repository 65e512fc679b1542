package indexer_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tikka/internal/event"
	"tikka/internal/indexer"
	"tikka/internal/ledger"
	"tikka/internal/raffle"
	"tikka/internal/storage"
)

const token ledger.Address = "usd"

const (
	alice  ledger.Address = "alice"
	bob    ledger.Address = "bob"
	carol  ledger.Address = "carol"
	dave   ledger.Address = "dave"
	admin  ledger.Address = "admin"
	oracle ledger.Address = "oracle"
)

type world struct {
	t        *testing.T
	ctx      context.Context
	store    storage.Storage
	clock    *ledger.ManualClock
	contract *raffle.Contract
}

func newWorld(t *testing.T) *world {
	t.Helper()
	s, err := storage.Open(storage.PebbleDriver, storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	clock := ledger.NewManualClock(1000)
	return &world{
		t:        t,
		ctx:      context.Background(),
		store:    s,
		clock:    clock,
		contract: raffle.New(s, clock),
	}
}

func newViews(t *testing.T, path string) *indexer.ViewStorage {
	t.Helper()
	views, err := indexer.NewViewStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, views.Close())
	})
	return views
}

func (w *world) mint(account ledger.Address, amount int64) {
	w.t.Helper()
	require.NoError(w.t, w.store.Update(w.ctx, func(tx raffle.Tx) error {
		return ledger.New(tx).Mint(token, account, ledger.NewAmount(amount))
	}))
}

func (w *world) activate(endTime uint64, source raffle.RandomnessSource) uint64 {
	w.t.Helper()
	w.mint(alice, 100)
	id, err := w.contract.Create(w.ctx, raffle.CreateParams{
		Creator:          alice,
		Description:      "a bicycle",
		EndTime:          endTime,
		MaxTickets:       10,
		TicketPrice:      ledger.NewAmount(10),
		PaymentToken:     token,
		PrizeAmount:      ledger.NewAmount(100),
		RandomnessSource: source,
	})
	require.NoError(w.t, err)
	require.NoError(w.t, w.contract.DepositPrize(w.ctx, id, alice))
	return id
}

func (w *world) buy(id uint64, buyers ...ledger.Address) {
	w.t.Helper()
	for _, buyer := range buyers {
		w.mint(buyer, 10)
		_, err := w.contract.BuyTicket(w.ctx, id, buyer)
		require.NoError(w.t, err)
	}
}

// play drives raffles through every lifecycle path and every admin event.
func (w *world) play() (external uint64) {
	t, ctx, c := w.t, w.ctx, w.contract
	oracleAddress := oracle
	require.NoError(t, c.Init(ctx, raffle.InitParams{Admin: admin, FeeBP: 500, Oracle: &oracleAddress}))

	drawn := w.activate(2000, raffle.RandomnessInternal)
	w.buy(drawn, bob, carol, dave)
	w.clock.Set(2000)
	winner, err := c.FinalizeRaffle(ctx, drawn, bob)
	require.NoError(t, err)
	require.NotNil(t, winner)
	_, err = c.ClaimPrize(ctx, drawn, *winner)
	require.NoError(t, err)
	_, err = c.WithdrawProceeds(ctx, drawn, alice)
	require.NoError(t, err)

	cancelled := w.activate(5000, raffle.RandomnessInternal)
	w.buy(cancelled, bob, carol)
	require.NoError(t, c.CancelRaffle(ctx, cancelled, alice, "venue closed"))
	_, err = c.RefundTickets(ctx, cancelled, bob)
	require.NoError(t, err)

	external = w.activate(5000, raffle.RandomnessExternal)
	w.buy(external, bob, dave)

	_, err = c.Create(ctx, raffle.CreateParams{
		Creator:      carol,
		EndTime:      9000,
		MaxTickets:   3,
		TicketPrice:  ledger.NewAmount(1),
		PaymentToken: token,
		PrizeAmount:  ledger.NewAmount(5),
	})
	require.NoError(t, err)

	empty := w.activate(5000, raffle.RandomnessInternal)

	w.clock.Set(5000)
	winner, err = c.FinalizeRaffle(ctx, external, carol)
	require.NoError(t, err)
	require.Nil(t, winner)
	_, err = c.FinalizeRaffle(ctx, empty, carol)
	require.NoError(t, err)

	require.NoError(t, c.Pause(ctx, admin))
	require.NoError(t, c.Unpause(ctx, admin))
	require.NoError(t, c.SetFee(ctx, admin, 250))
	require.NoError(t, c.SetTreasury(ctx, admin, dave))
	require.NoError(t, c.ProposeAdmin(ctx, admin, carol))
	require.NoError(t, c.AcceptAdmin(ctx, carol))
	_, err = c.WithdrawFees(ctx, carol, token, carol)
	require.NoError(t, err)
	return external
}

func asJSON(t *testing.T, value any) string {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	return string(data)
}

func platformJSON(t *testing.T, platform *raffle.Platform) string {
	t.Helper()
	copied := *platform
	if len(copied.AccruedFees) == 0 {
		copied.AccruedFees = nil
	}
	return asJSON(t, copied)
}

// assertMirrors checks that the views hold exactly what the store holds.
func (w *world) assertMirrors(views *indexer.ViewStorage) {
	t := w.t
	t.Helper()

	var (
		raffles  []*raffle.Raffle
		tickets  = make(map[uint64][]raffle.Ticket)
		platform *raffle.Platform
	)
	require.NoError(t, w.store.View(w.ctx, func(tx raffle.ReadTx) error {
		var err error
		if raffles, err = tx.Raffles(0, 0); err != nil {
			return err
		}
		for _, r := range raffles {
			if tickets[r.ID], err = tx.Tickets(r.ID); err != nil {
				return err
			}
		}
		platform, err = tx.Platform()
		return err
	}))

	indexed, err := views.Raffles()
	require.NoError(t, err)
	assert.Equal(t, asJSON(t, raffles), asJSON(t, indexed))

	for _, r := range raffles {
		got, err := views.Tickets(r.ID)
		require.NoError(t, err)
		assert.Equal(t, asJSON(t, tickets[r.ID]), asJSON(t, got), "tickets of raffle %d", r.ID)
	}

	indexedPlatform, err := views.Platform()
	require.NoError(t, err)
	assert.Equal(t, platformJSON(t, platform), platformJSON(t, indexedPlatform))
}

func TestIndexerRebuildsStateFromEvents(t *testing.T) {
	w := newWorld(t)
	external := w.play()

	views := newViews(t, indexer.MemoryPath)
	idx, err := indexer.NewIndexer(w.ctx, w.store, views, 4)
	require.NoError(t, err)

	records, err := w.store.Events(w.ctx, 0, 0)
	require.NoError(t, err)

	applied, err := idx.Run()
	require.NoError(t, err)
	assert.Equal(t, len(records), applied)
	assert.Equal(t, records[len(records)-1].ID, idx.Cursor())
	w.assertMirrors(views)

	pending, err := views.PendingRandomness(oracle)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, external, pending[0].ID)

	other, err := views.PendingRandomness(carol)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = w.contract.ProvideRandomness(w.ctx, external, oracle, 1<<63+7)
	require.NoError(t, err)

	applied, err = idx.Run()
	require.NoError(t, err)
	assert.Equal(t, 3, applied)
	w.assertMirrors(views)

	pending, err = views.PendingRandomness(oracle)
	require.NoError(t, err)
	assert.Empty(t, pending)

	applied, err = idx.Run()
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestIndexerResumesFromTouch(t *testing.T) {
	w := newWorld(t)
	external := w.play()

	path := filepath.Join(t.TempDir(), "views.db")
	views, err := indexer.NewViewStorage(path)
	require.NoError(t, err)
	first, err := indexer.NewIndexer(w.ctx, w.store, views, 0)
	require.NoError(t, err)
	_, err = first.Run()
	require.NoError(t, err)
	cursor := first.Cursor()
	require.NoError(t, views.Close())

	_, err = w.contract.ProvideRandomness(w.ctx, external, oracle, 42)
	require.NoError(t, err)

	reopened := newViews(t, path)
	second, err := indexer.NewIndexer(w.ctx, w.store, reopened, 0)
	require.NoError(t, err)
	assert.Equal(t, cursor, second.Cursor())

	applied, err := second.Run()
	require.NoError(t, err)
	assert.Equal(t, 3, applied)
	w.assertMirrors(reopened)
}

type brokenSource struct {
	records []event.Record
}

func (s brokenSource) Events(_ context.Context, afterID uint64, limit int) ([]event.Record, error) {
	var out []event.Record
	for _, record := range s.records {
		if record.ID > afterID && (limit <= 0 || len(out) < limit) {
			out = append(out, record)
		}
	}
	return out, nil
}

func TestIndexerStopsOnInconsistentLog(t *testing.T) {
	w := newWorld(t)
	w.play()

	records, err := w.store.Events(w.ctx, 0, 0)
	require.NoError(t, err)

	var dropped []event.Record
	for _, record := range records {
		if record.Topic.Name == "raffle_created" && record.RaffleID == 2 {
			continue
		}
		dropped = append(dropped, record)
	}

	views := newViews(t, indexer.MemoryPath)
	idx, err := indexer.NewIndexer(w.ctx, brokenSource{records: dropped}, views, 5)
	require.NoError(t, err)

	_, err = idx.Run()
	require.ErrorIs(t, err, indexer.ErrUnknownRaffle)

	_, err = views.Raffle(2)
	assert.ErrorIs(t, err, raffle.ErrNotFound)

	// every window before the broken one was kept
	stored, err := views.Raffle(1)
	require.NoError(t, err)
	assert.Equal(t, raffle.StatusClaimed, stored.Status)
	assert.Less(t, idx.Cursor(), records[len(records)-1].ID)
}

func TestStateRejectsStaleTransition(t *testing.T) {
	state := indexer.NewState()

	created, err := event.Encode(event.Event{
		Topic:    event.Topic{Namespace: raffle.Namespace, Name: "raffle_created"},
		RaffleID: 1,
		Payload:  raffle.RaffleCreated{RaffleID: 1, Creator: alice, MaxTickets: 1},
	})
	require.NoError(t, err)
	require.NoError(t, state.Apply(created))

	moved, err := event.Encode(event.Event{
		Topic:    event.Topic{Namespace: raffle.Namespace, Name: "status_changed"},
		RaffleID: 1,
		Payload:  raffle.StatusChanged{RaffleID: 1, OldStatus: raffle.StatusDrawing, NewStatus: raffle.StatusFinalized},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, state.Apply(moved), indexer.ErrOutOfOrder)

	foreign, err := event.Encode(event.Event{
		Topic:   event.Topic{Namespace: "other", Name: "whatever"},
		Payload: raffle.ContractPaused{},
	})
	require.NoError(t, err)
	assert.NoError(t, state.Apply(foreign))
	assert.False(t, state.Platform.Paused)
}
