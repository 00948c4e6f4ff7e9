package repository

import (
	"context"
	"testing"
	"time"

	"CoveredCall/internal/domain/models"
	pkgcache "CoveredCall/pkg/cache"
	"CoveredCall/pkg/forest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyModel(t *testing.T) *models.TrainedModel {
	x := [][]float64{{0}, {1}, {2}, {3}, {4}, {5}}
	y := []int{0, 0, 0, 1, 1, 1}
	cfg := forest.DefaultConfig(1)
	cfg.NTrees = 5
	f, err := forest.Train(x, y, cfg)
	require.NoError(t, err)
	return &models.TrainedModel{Ticker: "QQQ", Classifier: f, Features: []string{models.FeatureRSI}, TrainAccuracy: 1, TrainedAt: time.Now().UTC()}
}

func TestCacheModelStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := pkgcache.NewMemoryCache()
	defer mc.Close()
	s := NewCacheModelStore(mc)

	_, err := s.Load(ctx, "QQQ")
	assert.ErrorIs(t, err, models.ErrNotFound)

	m := tinyModel(t)
	require.NoError(t, s.Save(ctx, "QQQ", m))

	got, err := s.Load(ctx, "QQQ")
	require.NoError(t, err)
	assert.Equal(t, m.Features, got.Features)
	assert.Equal(t, m.Classifier.PredictProba([]float64{5}), got.Classifier.PredictProba([]float64{5}))

	assert.ErrorIs(t, s.Save(ctx, "SPY", &models.TrainedModel{}), models.ErrInvalidInput)
}

func TestCachePredictionsInvalidate(t *testing.T) {
	ctx := context.Background()
	mc := pkgcache.NewMemoryCache()
	defer mc.Close()
	p := NewCachePredictions(mc, time.Hour, nil)

	require.NoError(t, p.Set(ctx, &models.PredictionResult{Ticker: "QQQ", OptionType: "call", StrikePrice: 460}))
	require.NoError(t, p.Set(ctx, &models.PredictionResult{Ticker: "SPY", OptionType: "call", StrikePrice: 520}))

	got, ok := p.Get(ctx, "QQQ", models.OptionCall)
	require.True(t, ok)
	assert.Equal(t, 460, got.StrikePrice)

	require.NoError(t, p.Invalidate(ctx, "QQQ"))
	_, ok = p.Get(ctx, "QQQ", models.OptionCall)
	assert.False(t, ok)
	_, ok = p.Get(ctx, "SPY", models.OptionCall)
	assert.True(t, ok)
}
