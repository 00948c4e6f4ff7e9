package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	pkgpg "CoveredCall/pkg/postgres"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PGOptionQuotes implements OptionQuoteStore on the options_data table.
type PGOptionQuotes struct {
	db        *gorm.DB
	batchSize int
}

func NewPGOptionQuotes(pg *pkgpg.Client, batchSize int) domrepo.OptionQuoteStore {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &PGOptionQuotes{db: pg.DB(), batchSize: batchSize}
}

func (s *PGOptionQuotes) GetBar(ctx context.Context, ticker string, date time.Time, strike float64, optionType models.OptionType, expiration time.Time) (models.OptionBar, bool, error) {
	var rec OptionRecord
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND date = ? AND strike_price = ? AND option_type = ? AND expiration_date = ?",
			ticker, models.DateOnly(date), strike, string(optionType), models.DateOnly(expiration)).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.OptionBar{}, false, nil
	}
	if err != nil {
		return models.OptionBar{}, false, fmt.Errorf("option bar %s: %w", ticker, err)
	}
	return rec.bar(), true, nil
}

func (s *PGOptionQuotes) SaveBars(ctx context.Context, bars []models.OptionBar) error {
	if len(bars) == 0 {
		return nil
	}
	recs := make([]OptionRecord, len(bars))
	for i, b := range bars {
		recs[i] = toOptionRecord(b)
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "ticker"}, {Name: "date"}, {Name: "strike_price"}, {Name: "option_type"}, {Name: "expiration_date"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"symbol", "open", "high", "low", "close"}),
		}).
		CreateInBatches(recs, s.batchSize).Error
	if err != nil {
		return fmt.Errorf("save option bars: %w", err)
	}
	return nil
}

func (s *PGOptionQuotes) LatestDate(ctx context.Context, ticker string) (time.Time, error) {
	var rec OptionRecord
	err := s.db.WithContext(ctx).Select("date").Where("ticker = ?", ticker).Order("date DESC").Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, fmt.Errorf("options data %s: %w", ticker, models.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("options date %s: %w", ticker, err)
	}
	return models.DateOnly(rec.Date), nil
}
