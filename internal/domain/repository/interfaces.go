package repository

import (
	"context"
	"time"

	"CoveredCall/internal/domain/models"
	"CoveredCall/pkg/queue"
)

// PriceSource fetches daily bars from a market-data provider.
type PriceSource interface {
	// FetchDailyBars returns bars in [start, end]; empty when start equals end.
	FetchDailyBars(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceBar, error)
}

// OptionSource fetches the daily open/close of a single option contract.
type OptionSource interface {
	// FetchOptionBar returns ok=false when the provider has no data for the contract.
	FetchOptionBar(ctx context.Context, contract models.OptionContract, date time.Time) (models.OptionBar, bool, error)
}

// PriceHistory persists indicator rows keyed by (ticker, date).
type PriceHistory interface {
	// ReadRecent returns the latest limit rows in ascending date order.
	ReadRecent(ctx context.Context, ticker string, limit int) ([]models.IndicatorRow, error)
	ReadRange(ctx context.Context, ticker string, start, end time.Time) ([]models.IndicatorRow, error)
	ReadAll(ctx context.Context, ticker string) ([]models.IndicatorRow, error)
	// WriteUpsert is idempotent on (ticker, date).
	WriteUpsert(ctx context.Context, ticker string, rows []models.IndicatorRow) error
	// LatestDate returns ErrNotFound when the ticker has no rows.
	LatestDate(ctx context.Context, ticker string) (time.Time, error)
	EarliestDate(ctx context.Context, ticker string) (time.Time, error)
	OpenPrice(ctx context.Context, ticker string, date time.Time) (float64, error)
}

// ModelStore persists the winning model per ticker.
type ModelStore interface {
	Save(ctx context.Context, ticker string, model *models.TrainedModel) error
	// Load returns ErrNotFound when no model was saved.
	Load(ctx context.Context, ticker string) (*models.TrainedModel, error)
}

// OptionQuoteSource serves stored option bars to the backtest.
type OptionQuoteSource interface {
	// GetBar returns ok=false when no bar exists for the contract on date.
	GetBar(ctx context.Context, ticker string, date time.Time, strike float64, optionType models.OptionType, expiration time.Time) (models.OptionBar, bool, error)
}

// OptionQuoteStore is the write side of the option bar table.
type OptionQuoteStore interface {
	OptionQuoteSource
	SaveBars(ctx context.Context, bars []models.OptionBar) error
	// LatestDate returns ErrNotFound when the ticker has no stored options.
	LatestDate(ctx context.Context, ticker string) (time.Time, error)
}

// DeviationStore persists the average daily move per ticker.
type DeviationStore interface {
	Upsert(ctx context.Context, d models.TickerDeviation) error
	// Get returns ErrNotFound when the ticker has no stored deviation.
	Get(ctx context.Context, ticker string) (models.TickerDeviation, error)
}

// Journal appends backtest trades and predictions for offline analysis.
type Journal interface {
	RecordTrades(ctx context.Context, runID string, trades []models.BacktestTradeRecord) error
	RecordPrediction(ctx context.Context, p *models.PredictionResult) error
}

// EventPublisher emits domain events keyed by ticker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, ticker string, payload interface{}) error
	Close() error
}

// PredictionCache memoizes predictions until the next model update.
type PredictionCache interface {
	Get(ctx context.Context, ticker string, optionType models.OptionType) (*models.PredictionResult, bool)
	Set(ctx context.Context, p *models.PredictionResult) error
	Invalidate(ctx context.Context, ticker string) error
}

type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordAccuracy(ticker string, accuracy float64)
	RecordBacktest(ticker string, profit float64, trades int)
	RecordPrediction(ticker, optionType string, probUp float64)
}

// Locker guards per-ticker work. cache.Service satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// JobQueue hands batch work to background workers and reports on its backlog.
type JobQueue interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
	Stats(ctx context.Context) (queue.Stats, error)
	DeadLetters(ctx context.Context, n int64) ([]queue.Message, error)
}
