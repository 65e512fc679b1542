package indexer

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tikka/internal/ledger"
	"tikka/internal/logger"
	"tikka/internal/raffle"
)

const MemoryPath = ":memory:"

// ViewStorage is the queryable projection of the event log.
type ViewStorage struct {
	db *gorm.DB
}

func NewViewStorage(path string) (*ViewStorage, error) {
	logger.Debug("initializing view database...", zap.String("path", path))

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
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&RaffleView{},
		&TicketView{},
		&PlatformView{},
		&IndexerTouch{},
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("initializing view database... done")
	return &ViewStorage{
		db: db,
	}, nil
}

func (s *ViewStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// touch

func (s *ViewStorage) GetTouch(name string) (uint64, error) {
	var touch IndexerTouch
	err := s.db.Where("name = ?", name).Take(&touch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return touch.EventID, nil
}

// Save writes changed views and moves the touch forward in one transaction.
func (s *ViewStorage) Save(name string, eventID uint64, raffles []*raffle.Raffle, tickets []raffle.Ticket, platform *raffle.Platform) error {
	logger.Debug("saving views...", zap.Int("raffles", len(raffles)), zap.Int("tickets", len(tickets)), zap.Uint64("event id", eventID))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if len(raffles) > 0 {
			views := make([]*RaffleView, 0, len(raffles))
			for _, r := range raffles {
				view, err := newRaffleView(r)
				if err != nil {
					return err
				}
				views = append(views, view)
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).CreateInBatches(views, 100).Error
			if err != nil {
				return err
			}
		}

		if len(tickets) > 0 {
			views := make([]*TicketView, 0, len(tickets))
			for _, ticket := range tickets {
				views = append(views, newTicketView(ticket))
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "raffle_id"}, {Name: "ticket_index"}},
				DoUpdates: clause.AssignmentColumns([]string{"refunded"}),
			}).CreateInBatches(views, 100).Error
			if err != nil {
				return err
			}
		}

		if platform != nil {
			snapshot, err := json.Marshal(platform)
			if err != nil {
				return err
			}
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"snapshot"}),
			}).Create(&PlatformView{ID: platformViewID, Snapshot: datatypes.JSON(snapshot)}).Error
			if err != nil {
				return err
			}
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"event_id"}),
		}).Create(&IndexerTouch{Name: name, EventID: eventID}).Error
	})
	if err != nil {
		return err
	}

	logger.Debug("saving views... done")
	return nil
}

// queries

func (s *ViewStorage) Raffle(id uint64) (*raffle.Raffle, error) {
	var view RaffleView
	err := s.db.Where("id = ?", id).Take(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, raffle.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return view.raffle()
}

func (s *ViewStorage) Raffles() ([]*raffle.Raffle, error) {
	return s.raffles(s.db.Order("id"))
}

func (s *ViewStorage) RafflesByStatus(status raffle.Status) ([]*raffle.Raffle, error) {
	return s.raffles(s.db.Where("status = ?", status.String()).Order("id"))
}

// PendingRandomness lists Drawing raffles whose seed request to oracle is
// still unanswered.
func (s *ViewStorage) PendingRandomness(oracle ledger.Address) ([]*raffle.Raffle, error) {
	logger.Debug("getting pending randomness requests...", zap.String("oracle", string(oracle)))

	raffles, err := s.raffles(s.db.Where("awaiting_seed = ? and seed_oracle = ?", true, string(oracle)).Order("id"))
	if err != nil {
		return nil, err
	}

	logger.Debug("getting pending randomness requests... done", zap.Int("count", len(raffles)))
	return raffles, nil
}

func (s *ViewStorage) raffles(query *gorm.DB) ([]*raffle.Raffle, error) {
	var views []*RaffleView
	if err := query.Find(&views).Error; err != nil {
		return nil, err
	}
	raffles := make([]*raffle.Raffle, 0, len(views))
	for _, view := range views {
		r, err := view.raffle()
		if err != nil {
			return nil, err
		}
		raffles = append(raffles, r)
	}
	return raffles, nil
}

func (s *ViewStorage) Tickets(raffleID uint64) ([]raffle.Ticket, error) {
	var views []*TicketView
	if err := s.db.Where("raffle_id = ?", raffleID).Order("ticket_index").Find(&views).Error; err != nil {
		return nil, err
	}
	tickets := make([]raffle.Ticket, 0, len(views))
	for _, view := range views {
		tickets = append(tickets, view.ticket())
	}
	return tickets, nil
}

func (s *ViewStorage) Platform() (*raffle.Platform, error) {
	var view PlatformView
	err := s.db.Where("id = ?", platformViewID).Take(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &raffle.Platform{}, nil
	}
	if err != nil {
		return nil, err
	}
	var platform raffle.Platform
	if err := json.Unmarshal(view.Snapshot, &platform); err != nil {
		return nil, err
	}
	return &platform, nil
}

// Load rebuilds the in-memory state from the stored views.
func (s *ViewStorage) Load() (*State, error) {
	logger.Debug("loading views...")

	state := NewState()
	raffles, err := s.Raffles()
	if err != nil {
		return nil, err
	}
	for _, r := range raffles {
		state.Raffles[r.ID] = r
		if state.Tickets[r.ID], err = s.Tickets(r.ID); err != nil {
			return nil, err
		}
	}
	platform, err := s.Platform()
	if err != nil {
		return nil, err
	}
	state.Platform = *platform

	logger.Debug("loading views... done", zap.Int("raffles", len(raffles)))
	return state, nil
}
