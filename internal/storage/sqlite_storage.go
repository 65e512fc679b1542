package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tikka/internal/event"
	"tikka/internal/ledger"
	"tikka/internal/logger"
	"tikka/internal/raffle"
)

type SqliteStorage struct {
	db *gorm.DB
}

func NewSqliteStorage(path string) (*SqliteStorage, error) {
	logger.Debug("initializing database...", zap.String("driver", SqliteDriver), zap.String("path", path))

	dsn := path
	if path != MemoryPath {
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// one connection: sqlite has a single writer, and every connection to
	// :memory: would see its own database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&RaffleRecord{},
		&TicketRecord{},
		&BalanceRecord{},
		&PlatformRecord{},
		&FeeRecord{},
		&CounterRecord{},
		&EventRecord{},
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("initializing database... done")
	return &SqliteStorage{
		db: db,
	}, nil
}

func (s *SqliteStorage) View(ctx context.Context, fn func(tx raffle.ReadTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&sqliteTx{db: tx})
	})
}

func (s *SqliteStorage) Update(ctx context.Context, fn func(tx raffle.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&sqliteTx{db: tx})
	})
}

func (s *SqliteStorage) Events(ctx context.Context, afterID uint64, limit int) ([]event.Record, error) {
	query := s.db.WithContext(ctx).Where("id > ?", afterID).Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []EventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	events := make([]event.Record, 0, len(records))
	for i := range records {
		events = append(events, records[i].record())
	}
	return events, nil
}

// LatestSequence reads the newest event, sequences never decrease along the log.
func (s *SqliteStorage) LatestSequence(ctx context.Context) (uint64, error) {
	var sequence Uint64
	err := s.db.WithContext(ctx).Raw(`
		select sequence
		from event_records
		order by id desc
		limit 1
	`).Scan(&sequence).Error
	if err != nil {
		return 0, err
	}
	return uint64(sequence), nil
}

func (s *SqliteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type sqliteTx struct {
	db *gorm.DB
}

func (t *sqliteTx) Raffle(id uint64) (*raffle.Raffle, error) {
	var record RaffleRecord
	err := t.db.Where("id = ?", id).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, raffle.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.raffle()
}

func (t *sqliteTx) Raffles(afterID uint64, limit int) ([]*raffle.Raffle, error) {
	query := t.db.Where("id > ?", afterID).Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []RaffleRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	raffles := make([]*raffle.Raffle, 0, len(records))
	for i := range records {
		r, err := records[i].raffle()
		if err != nil {
			return nil, err
		}
		raffles = append(raffles, r)
	}
	return raffles, nil
}

func (t *sqliteTx) Tickets(raffleID uint64) ([]raffle.Ticket, error) {
	return t.tickets(t.db.Where("raffle_id = ?", raffleID))
}

func (t *sqliteTx) TicketsOf(raffleID uint64, buyer ledger.Address) ([]raffle.Ticket, error) {
	return t.tickets(t.db.Where("raffle_id = ? and buyer = ?", raffleID, buyer))
}

func (t *sqliteTx) tickets(query *gorm.DB) ([]raffle.Ticket, error) {
	var records []TicketRecord
	if err := query.Order("ticket_index").Find(&records).Error; err != nil {
		return nil, err
	}

	tickets := make([]raffle.Ticket, 0, len(records))
	for i := range records {
		tickets = append(tickets, records[i].ticket())
	}
	return tickets, nil
}

func (t *sqliteTx) Platform() (*raffle.Platform, error) {
	var record PlatformRecord
	err := t.db.Where("id = ?", platformRecordID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &raffle.Platform{}, nil
	}
	if err != nil {
		return nil, err
	}

	platform := &raffle.Platform{
		Initialized:  record.Initialized,
		Admin:        record.Admin,
		PendingAdmin: record.PendingAdmin,
		FeeBP:        record.FeeBP,
		Treasury:     record.Treasury,
		Oracle:       record.Oracle,
		Paused:       record.Paused,
	}

	var fees []FeeRecord
	if err := t.db.Find(&fees).Error; err != nil {
		return nil, err
	}
	for _, fee := range fees {
		platform.SetAccruedFee(fee.Token, fee.Amount)
	}
	return platform, nil
}

func (t *sqliteTx) Balance(token, account ledger.Address) (ledger.Amount, error) {
	var record BalanceRecord
	err := t.db.Where("token = ? and account = ?", token, account).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.ZeroAmount(), nil
	}
	if err != nil {
		return ledger.ZeroAmount(), err
	}
	return record.Amount, nil
}

func (t *sqliteTx) NextRaffleID() (uint64, error) {
	var counter CounterRecord
	err := t.db.Where("name = ?", raffleCounter).Take(&counter).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	counter.Name = raffleCounter
	counter.Value++
	err = t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&counter).Error
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (t *sqliteTx) PutRaffle(r *raffle.Raffle) error {
	record := newRaffleRecord(r)
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&record).Error
}

func (t *sqliteTx) PutTickets(tickets []raffle.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	records := make([]TicketRecord, 0, len(tickets))
	for _, ticket := range tickets {
		records = append(records, newTicketRecord(ticket))
	}
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "raffle_id"}, {Name: "ticket_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"buyer", "purchased_at", "refunded"}),
	}).CreateInBatches(records, 100).Error
}

func (t *sqliteTx) PutPlatform(platform *raffle.Platform) error {
	record := PlatformRecord{
		ID:           platformRecordID,
		Initialized:  platform.Initialized,
		Admin:        platform.Admin,
		PendingAdmin: platform.PendingAdmin,
		FeeBP:        platform.FeeBP,
		Treasury:     platform.Treasury,
		Oracle:       platform.Oracle,
		Paused:       platform.Paused,
	}
	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&record).Error
	if err != nil {
		return err
	}

	if err := t.db.Where("1 = 1").Delete(&FeeRecord{}).Error; err != nil {
		return err
	}
	if len(platform.AccruedFees) == 0 {
		return nil
	}
	fees := make([]FeeRecord, 0, len(platform.AccruedFees))
	for token, amount := range platform.AccruedFees {
		fees = append(fees, FeeRecord{Token: token, Amount: amount})
	}
	return t.db.Create(&fees).Error
}

func (t *sqliteTx) SetBalance(token, account ledger.Address, amount ledger.Amount) error {
	record := BalanceRecord{Token: token, Account: account, Amount: amount}
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}, {Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount"}),
	}).Create(&record).Error
}

func (t *sqliteTx) Publish(events []event.Event) error {
	records := make([]EventRecord, 0, len(events))
	for _, evt := range events {
		record, err := newEventRecord(evt)
		if err != nil {
			return err
		}
		records = append(records, record)
	}
	return t.db.CreateInBatches(records, 100).Error
}
