package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	"CoveredCall/internal/repository"
	"CoveredCall/internal/services/indicators"
	"CoveredCall/internal/services/training"
	pkgcache "CoveredCall/pkg/cache"
	"CoveredCall/pkg/config"
	"CoveredCall/pkg/metrics"

	"github.com/stretchr/testify/require"
)

var fixtureStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// weekdayBars produces n weekday bars with an oscillating, slowly rising close.
func weekdayBars(ticker string, start time.Time, n int) []models.PriceBar {
	var out []models.PriceBar
	for d := start; len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		i := float64(len(out))
		c := 100 + 10*math.Sin(i/3) + 0.1*i + float64(len(out)*7%5)*0.3
		out = append(out, models.PriceBar{
			Ticker: ticker,
			Date:   d,
			Open:   c - 0.4,
			Close:  c,
			High:   c + 1,
			Low:    c - 1,
		})
	}
	return out
}

func testStrategy() config.Strategy {
	return config.Strategy{
		Tickers:         []string{"QQQ"},
		OptionsTickers:  []string{"QQQ"},
		BaseDeviation:   5,
		DeviationBuffer: 1,
		UpperThreshold:  0.6,
		LowerThreshold:  0.35,
		StopLoss:        200,
		BeginningDate:   "2024-01-02",
		RecentWindow:    30,
		SMAPeriod:       20,
		ChainWidth:      2,
		ChainStep:       1,
	}
}

func fastTrainer() *training.Trainer {
	return training.NewTrainer(training.Config{TestFraction: 0.2, Seed: 42, Repeats: 2, Trees: 7})
}

// seededHistory stores indicator rows for ticker computed from n fixture bars.
func seededHistory(t *testing.T, ticker string, n int) *repository.MemoryPriceHistory {
	t.Helper()
	h := repository.NewMemoryPriceHistory()
	rows := indicators.Compute(weekdayBars(ticker, fixtureStart, n))
	require.NoError(t, h.WriteUpsert(context.Background(), ticker, rows))
	return h
}

type env struct {
	cfg        config.Strategy
	history    *repository.MemoryPriceHistory
	cache      *pkgcache.MemoryCache
	store      domrepo.ModelStore
	deviations *repository.MemoryDeviations
	events     *recordingEvents
	journal    *recordingJournal
}

func newEnv(t *testing.T, n int) *env {
	t.Helper()
	mc := pkgcache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })
	return &env{
		cfg:        testStrategy(),
		history:    seededHistory(t, "QQQ", n),
		cache:      mc,
		store:      repository.NewCacheModelStore(mc),
		deviations: repository.NewMemoryDeviations(),
		events:     &recordingEvents{},
		journal:    &recordingJournal{},
	}
}

func (e *env) models() *ModelsUseCase {
	return NewModelsUseCase(e.history, e.store, repository.NewCachePredictions(e.cache, time.Hour, nil),
		e.events, e.cache, metrics.Nop{}, fastTrainer(), e.cfg, nil)
}

type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingEvents) PublishEvent(_ context.Context, eventType, _ string, _ interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	return nil
}

func (r *recordingEvents) Close() error { return nil }

type recordingJournal struct {
	runs        map[string]int
	predictions int
}

func (r *recordingJournal) RecordTrades(_ context.Context, runID string, trades []models.BacktestTradeRecord) error {
	if r.runs == nil {
		r.runs = map[string]int{}
	}
	r.runs[runID] = len(trades)
	return nil
}

func (r *recordingJournal) RecordPrediction(context.Context, *models.PredictionResult) error {
	r.predictions++
	return nil
}

// anyStrikeQuotes answers every lookup with the same option bar.
type anyStrikeQuotes struct {
	open, high, close float64
	calls             int
}

func (q *anyStrikeQuotes) GetBar(_ context.Context, ticker string, date time.Time, strike float64, ot models.OptionType, exp time.Time) (models.OptionBar, bool, error) {
	q.calls++
	return models.OptionBar{
		Ticker:      ticker,
		Date:        date,
		StrikePrice: strike,
		OptionType:  ot,
		Expiration:  exp,
		Open:        q.open,
		High:        q.high,
		Low:         q.close,
		Close:       q.close,
	}, true, nil
}

type fakePrices struct {
	bars  []models.PriceBar
	calls [][2]time.Time
}

func (f *fakePrices) FetchDailyBars(_ context.Context, _ string, start, end time.Time) ([]models.PriceBar, error) {
	f.calls = append(f.calls, [2]time.Time{start, end})
	var out []models.PriceBar
	for _, b := range f.bars {
		if !b.Date.Before(start) && !b.Date.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// callsOnly quotes every call contract and no puts.
type callsOnly struct{ calls int }

func (c *callsOnly) FetchOptionBar(_ context.Context, contract models.OptionContract, date time.Time) (models.OptionBar, bool, error) {
	c.calls++
	if contract.OptionType != models.OptionCall {
		return models.OptionBar{}, false, nil
	}
	return models.OptionBar{
		Ticker:      contract.Ticker,
		Date:        date,
		Symbol:      contract.Symbol,
		StrikePrice: contract.StrikePrice,
		OptionType:  contract.OptionType,
		Expiration:  contract.Expiration,
		Open:        1.2,
		High:        1.5,
		Low:         0.3,
		Close:       0.4,
	}, true, nil
}
