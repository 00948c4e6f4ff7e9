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

const defaultBatchSize = 500

// PGPriceHistory implements PriceHistory on the stock_data table.
type PGPriceHistory struct {
	db        *gorm.DB
	batchSize int
}

func NewPGPriceHistory(pg *pkgpg.Client, batchSize int) domrepo.PriceHistory {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &PGPriceHistory{db: pg.DB(), batchSize: batchSize}
}

func (s *PGPriceHistory) ReadRecent(ctx context.Context, ticker string, limit int) ([]models.IndicatorRow, error) {
	var recs []StockRecord
	err := s.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("date DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("read recent %s: %w", ticker, err)
	}
	return toRows(recs), nil
}

func (s *PGPriceHistory) ReadRange(ctx context.Context, ticker string, start, end time.Time) ([]models.IndicatorRow, error) {
	var recs []StockRecord
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND date BETWEEN ? AND ?", ticker, models.DateOnly(start), models.DateOnly(end)).
		Order("date ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", ticker, err)
	}
	return toRows(recs), nil
}

func (s *PGPriceHistory) ReadAll(ctx context.Context, ticker string) ([]models.IndicatorRow, error) {
	var recs []StockRecord
	if err := s.db.WithContext(ctx).Where("ticker = ?", ticker).Order("date ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("read all %s: %w", ticker, err)
	}
	return toRows(recs), nil
}

// WriteUpsert inserts rows in batches and overwrites existing (ticker, date) rows.
func (s *PGPriceHistory) WriteUpsert(ctx context.Context, ticker string, rows []models.IndicatorRow) error {
	if len(rows) == 0 {
		return nil
	}
	recs := make([]StockRecord, len(rows))
	for i, r := range rows {
		recs[i] = toStockRecord(ticker, r)
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}, {Name: "date"}},
			UpdateAll: true,
		}).
		CreateInBatches(recs, s.batchSize).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", ticker, err)
	}
	return nil
}

func (s *PGPriceHistory) LatestDate(ctx context.Context, ticker string) (time.Time, error) {
	return s.edgeDate(ctx, ticker, "date DESC")
}

func (s *PGPriceHistory) EarliestDate(ctx context.Context, ticker string) (time.Time, error) {
	return s.edgeDate(ctx, ticker, "date ASC")
}

func (s *PGPriceHistory) edgeDate(ctx context.Context, ticker, order string) (time.Time, error) {
	var rec StockRecord
	err := s.db.WithContext(ctx).Select("date").Where("ticker = ?", ticker).Order(order).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, fmt.Errorf("stock data %s: %w", ticker, models.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("stock date %s: %w", ticker, err)
	}
	return models.DateOnly(rec.Date), nil
}

func (s *PGPriceHistory) OpenPrice(ctx context.Context, ticker string, date time.Time) (float64, error) {
	var rec StockRecord
	err := s.db.WithContext(ctx).
		Select("open_price").
		Where("ticker = ? AND date = ?", ticker, models.DateOnly(date)).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("open price %s %s: %w", ticker, date.Format("2006-01-02"), models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("open price %s: %w", ticker, err)
	}
	return rec.OpenPrice, nil
}

// toRows converts records and sorts them ascending by date.
func toRows(recs []StockRecord) []models.IndicatorRow {
	out := make([]models.IndicatorRow, len(recs))
	for i := range recs {
		out[i] = recs[i].row()
	}
	models.SortRows(out)
	return out
}
