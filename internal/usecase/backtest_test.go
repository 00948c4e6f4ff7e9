package usecase

import (
	"context"
	"testing"
	"time"

	"CoveredCall/internal/domain/models"
	"CoveredCall/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) backtest(q *anyStrikeQuotes) *BacktestUseCase {
	return NewBacktestUseCase(e.history, e.store, q, e.deviations, e.journal, e.events, metrics.Nop{}, e.cfg, nil)
}

func lastDays(t *testing.T, e *env, n int) (time.Time, time.Time) {
	t.Helper()
	rows, err := e.history.ReadRecent(context.Background(), "QQQ", n)
	require.NoError(t, err)
	require.Len(t, rows, n)
	return rows[0].Date, rows[n-1].Date
}

func TestRunBacktest(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)
	require.True(t, e.models().UpdateModels(ctx, nil, nil).Success)

	start, end := lastDays(t, e, 10)
	q := &anyStrikeQuotes{open: 1.00, high: 1.10, close: 0.50}
	sum, err := e.backtest(q).RunBacktest(ctx, BacktestParams{
		Ticker:        "QQQ",
		Start:         start,
		End:           end,
		BaseDeviation: 5,
		OptionType:    models.OptionCall,
		StopLoss:      20,
		WithTrades:    true,
	})
	require.NoError(t, err)
	require.NotNil(t, sum)

	assert.Equal(t, 10, q.calls)
	assert.Equal(t, 10, sum.TotalTrades)
	assert.Equal(t, 10, sum.SuccessfulTrades)
	assert.InDelta(t, 500.0, sum.TotalProfit, 1e-9)
	assert.InDelta(t, 100.0, sum.SuccessRate, 1e-9)
	require.Len(t, sum.Trades, 10)
	assert.Equal(t, start, sum.Trades[0].Date)

	require.Len(t, e.journal.runs, 1)
	for _, n := range e.journal.runs {
		assert.Equal(t, 10, n)
	}
	assert.Contains(t, e.events.types, models.EventBacktestCompleted)
}

func TestRunBacktestStopLoss(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)
	require.True(t, e.models().UpdateModels(ctx, nil, nil).Success)

	start, end := lastDays(t, e, 4)
	sum, err := e.backtest(&anyStrikeQuotes{open: 1.00, high: 1.30, close: 0.50}).RunBacktest(ctx, BacktestParams{
		Ticker: "QQQ", Start: start, End: end, OptionType: models.OptionPut, StopLoss: 20,
	})
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 4, sum.StopLossesHit)
	assert.InDelta(t, -80.0, sum.TotalProfit, 1e-9)
	assert.Nil(t, sum.Trades)
}

func TestRunBacktestNoModel(t *testing.T) {
	e := newEnv(t, 140)
	start, end := lastDays(t, e, 5)
	sum, err := e.backtest(&anyStrikeQuotes{}).RunBacktest(context.Background(), BacktestParams{
		Ticker: "QQQ", Start: start, End: end, OptionType: models.OptionCall,
	})
	require.NoError(t, err)
	assert.Nil(t, sum)
}

func TestRunBacktestInvalidInput(t *testing.T) {
	e := newEnv(t, 140)
	uc := e.backtest(&anyStrikeQuotes{})
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := uc.RunBacktest(context.Background(), BacktestParams{
		Ticker: "QQQ", Start: day, End: day.AddDate(0, 0, -1), OptionType: models.OptionCall,
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = uc.RunBacktest(context.Background(), BacktestParams{
		Ticker: "QQQ", Start: day, End: day, OptionType: "straddle",
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRunBacktestEmptyRange(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)
	require.True(t, e.models().UpdateModels(ctx, nil, nil).Success)

	far := time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
	sum, err := e.backtest(&anyStrikeQuotes{open: 1, high: 1, close: 1}).RunBacktest(ctx, BacktestParams{
		Ticker: "QQQ", Start: far, End: far.AddDate(0, 0, 5), OptionType: models.OptionCall,
	})
	require.NoError(t, err)
	assert.Nil(t, sum)
}

// noQuotes has no option bars at all.
type noQuotes struct{ calls int }

func (q *noQuotes) GetBar(context.Context, string, time.Time, float64, models.OptionType, time.Time) (models.OptionBar, bool, error) {
	q.calls++
	return models.OptionBar{}, false, nil
}

func TestRunBacktestWithoutOptionBars(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)
	require.True(t, e.models().UpdateModels(ctx, nil, nil).Success)

	start, end := lastDays(t, e, 5)
	q := &noQuotes{}
	uc := NewBacktestUseCase(e.history, e.store, q, e.deviations, e.journal, e.events, metrics.Nop{}, e.cfg, nil)
	sum, err := uc.RunBacktest(ctx, BacktestParams{
		Ticker: "QQQ", Start: start, End: end, BaseDeviation: 5, OptionType: models.OptionCall, WithTrades: true,
	})
	require.NoError(t, err)
	require.NotNil(t, sum)

	assert.Equal(t, 5, q.calls)
	assert.Equal(t, 0, sum.TotalTrades)
	assert.Zero(t, sum.TotalProfit)
	assert.Zero(t, sum.SuccessRate)
	assert.Zero(t, sum.AvgGainPerSuccessfulTrade)
	assert.Empty(t, sum.Trades)
}
