package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"CoveredCall/internal/domain/models"
	"CoveredCall/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventBytes(t *testing.T, typ, ticker string) []byte {
	t.Helper()
	b, err := json.Marshal(models.Event{Type: typ, Ticker: ticker, OccurredAt: time.Now(), Payload: map[string]int{"rows": 1}})
	require.NoError(t, err)
	return b
}

func TestCacheInvalidatorDropsPredictionsOnModelUpdate(t *testing.T) {
	e := newEnv(t, 60)
	preds := repository.NewCachePredictions(e.cache, time.Hour, nil)
	ctx := context.Background()
	for _, ticker := range []string{"QQQ", "SPY"} {
		require.NoError(t, preds.Set(ctx, &models.PredictionResult{Ticker: ticker, OptionType: "call", StrikePrice: 400}))
	}

	h := NewCacheInvalidator(preds, nil)

	require.NoError(t, h.Handle(ctx, eventBytes(t, models.EventPredictionCreated, "QQQ")))
	_, ok := preds.Get(ctx, "QQQ", models.OptionCall)
	assert.True(t, ok, "other event types leave the cache alone")

	require.NoError(t, h.Handle(ctx, eventBytes(t, models.EventModelUpdated, "QQQ")))
	_, ok = preds.Get(ctx, "QQQ", models.OptionCall)
	assert.False(t, ok)
	_, ok = preds.Get(ctx, "SPY", models.OptionCall)
	assert.True(t, ok)
}

func TestCacheInvalidatorRejectsGarbage(t *testing.T) {
	h := NewCacheInvalidator(repository.NoopPredictions{}, nil)
	assert.Error(t, h.Handle(context.Background(), []byte("{not json")))
}
