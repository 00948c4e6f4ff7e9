package usecase

import (
	"context"
	"testing"
	"time"

	"CoveredCall/internal/domain/models"
	"CoveredCall/internal/repository"
	"CoveredCall/internal/services/strategy"
	"CoveredCall/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) predictor(now time.Time) *PredictUseCase {
	uc := NewPredictUseCase(e.history, e.store, e.deviations, repository.NewCachePredictions(e.cache, time.Hour, nil),
		e.journal, e.events, metrics.Nop{}, e.cfg, nil)
	uc.now = func() time.Time { return now }
	return uc
}

// Good Friday 2025 is a holiday, so the next session after it is Monday.
var goodFriday = time.Date(2025, 4, 18, 15, 0, 0, 0, time.UTC)

func TestPredictOption(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)
	require.True(t, e.models().UpdateModels(ctx, nil, nil).Success)

	r, err := e.predictor(goodFriday).PredictOption(ctx, PredictParams{Ticker: "QQQ", OptionType: "CALL"})
	require.NoError(t, err)
	require.NotNil(t, r)

	rows, err := e.history.ReadRecent(ctx, "QQQ", 1)
	require.NoError(t, err)
	assert.Equal(t, rows[0].Close, r.ReferencePrice)
	assert.Equal(t, "call", r.OptionType)
	assert.Equal(t, 5.0, r.BaseDeviation)
	assert.Equal(t, "2025-04-21", r.Date)
	assert.InDelta(t, 1.0, r.Probabilities[0]+r.Probabilities[1], 1e-9)

	th := strategy.Thresholds{Upper: 0.6, Lower: 0.35}
	assert.InDelta(t, strategy.Deviation(r.Probabilities[1], 5, th), r.Deviation, 1e-12)
	want, err := strategy.Strike(r.ReferencePrice, r.Deviation, models.OptionCall)
	require.NoError(t, err)
	assert.Equal(t, want, r.StrikePrice)

	assert.Equal(t, 1, e.journal.predictions)
	assert.Contains(t, e.events.types, models.EventPredictionCreated)
}

func TestPredictOptionUsesCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)
	require.True(t, e.models().UpdateModels(ctx, nil, nil).Success)
	uc := e.predictor(goodFriday)

	first, err := uc.PredictOption(ctx, PredictParams{Ticker: "QQQ", OptionType: models.OptionPut})
	require.NoError(t, err)
	second, err := uc.PredictOption(ctx, PredictParams{Ticker: "QQQ", OptionType: models.OptionPut})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, e.journal.predictions)

	// Retraining invalidates the cached prediction.
	require.True(t, e.models().UpdateModels(ctx, nil, nil).Success)
	_, err = uc.PredictOption(ctx, PredictParams{Ticker: "QQQ", OptionType: models.OptionPut})
	require.NoError(t, err)
	assert.Equal(t, 2, e.journal.predictions)
}

func TestPredictOptionStoredDeviation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)
	require.True(t, e.models().UpdateModels(ctx, nil, nil).Success)
	require.NoError(t, e.deviations.Upsert(ctx, models.TickerDeviation{Ticker: "QQQ", Deviation: 3}))

	r, err := e.predictor(goodFriday).PredictOption(ctx, PredictParams{Ticker: "QQQ", OptionType: models.OptionCall})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 3.0, r.BaseDeviation)

	r, err = e.predictor(goodFriday).PredictOption(ctx, PredictParams{Ticker: "QQQ", OptionType: models.OptionCall, BaseDeviation: 8})
	require.NoError(t, err)
	assert.Equal(t, 8.0, r.BaseDeviation)
}

func TestPredictOptionWithoutModel(t *testing.T) {
	e := newEnv(t, 140)
	r, err := e.predictor(goodFriday).PredictOption(context.Background(), PredictParams{Ticker: "QQQ", OptionType: models.OptionCall})
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = e.predictor(goodFriday).PredictOption(context.Background(), PredictParams{Ticker: "QQQ", OptionType: "strangle"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestPredictDaily(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)
	e.cfg.OptionsTickers = []string{"QQQ", "SPY"}
	require.True(t, e.models().UpdateModels(ctx, []string{"QQQ"}, nil).Success)

	out, err := e.predictor(goodFriday).PredictDaily(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "call", out[0].OptionType)
	assert.Equal(t, "put", out[1].OptionType)
	for _, r := range out {
		assert.Equal(t, "QQQ", r.Ticker)
		assert.Equal(t, "2025-04-21", r.Date)
	}
}
