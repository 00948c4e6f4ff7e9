package repository

import (
	"context"
	"errors"
	"fmt"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	pkgpg "CoveredCall/pkg/postgres"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PGDeviations implements DeviationStore on the stock_deviations table.
type PGDeviations struct {
	db *gorm.DB
}

func NewPGDeviations(pg *pkgpg.Client) domrepo.DeviationStore {
	return &PGDeviations{db: pg.DB()}
}

func (s *PGDeviations) Upsert(ctx context.Context, d models.TickerDeviation) error {
	rec := DeviationRecord{Ticker: d.Ticker, Deviation: d.Deviation, UpdatedAt: d.UpdatedAt}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}},
			DoUpdates: clause.AssignmentColumns([]string{"deviation", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert deviation %s: %w", d.Ticker, err)
	}
	return nil
}

func (s *PGDeviations) Get(ctx context.Context, ticker string) (models.TickerDeviation, error) {
	var rec DeviationRecord
	err := s.db.WithContext(ctx).Where("ticker = ?", ticker).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TickerDeviation{}, fmt.Errorf("deviation %s: %w", ticker, models.ErrNotFound)
	}
	if err != nil {
		return models.TickerDeviation{}, fmt.Errorf("deviation %s: %w", ticker, err)
	}
	return models.TickerDeviation{Ticker: rec.Ticker, Deviation: rec.Deviation, UpdatedAt: rec.UpdatedAt}, nil
}
