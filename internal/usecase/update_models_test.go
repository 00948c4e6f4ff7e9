package usecase

import (
	"context"
	"strings"
	"testing"

	"CoveredCall/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateModelsSavesModel(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)

	st := e.models().UpdateModels(ctx, nil, nil)
	require.True(t, st.Success, st.Message)
	assert.Equal(t, msgModelsUpdated, st.Message)
	assert.Empty(t, st.Failures)

	m, err := e.store.Load(ctx, "QQQ")
	require.NoError(t, err)
	assert.Equal(t, "QQQ", m.Ticker)
	assert.NotEmpty(t, m.Features)
	assert.False(t, m.TrainedAt.IsZero())
	assert.Equal(t, []string{models.EventModelUpdated}, e.events.types)
}

func TestUpdateModelsIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)

	st := e.models().UpdateModels(ctx, []string{"EMPTY", "QQQ"}, []string{models.FeatureRSI, models.FeatureMACD})
	assert.False(t, st.Success)
	assert.True(t, strings.HasPrefix(st.Message, msgModelsFailed), st.Message)
	assert.Contains(t, st.Failures, "EMPTY")
	assert.NotContains(t, st.Failures, "QQQ")

	m, err := e.store.Load(ctx, "QQQ")
	require.NoError(t, err)
	assert.Subset(t, []string{models.FeatureRSI, models.FeatureMACD}, m.Features)
}

func TestUpdateModelsRejectsUnknownFeature(t *testing.T) {
	e := newEnv(t, 140)
	st := e.models().UpdateModels(context.Background(), nil, []string{"volume"})
	assert.False(t, st.Success)
	assert.Contains(t, st.Message, "volume")
}

func TestUpdateModelsSkipsLockedTicker(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 140)
	ok, err := e.cache.TryLock(ctx, "locks:train:QQQ", trainLockTTL)
	require.NoError(t, err)
	require.True(t, ok)

	st := e.models().UpdateModels(ctx, nil, nil)
	assert.False(t, st.Success)
	assert.Contains(t, st.Failures["QQQ"], "already in progress")
}

func TestBatchStatusOrdersFailures(t *testing.T) {
	st := batchStatus(map[string]string{"SPY": "b", "AAPL": "a"}, "ok", "failed: ")
	assert.Equal(t, "failed: AAPL: a; SPY: b", st.Message)
	assert.Equal(t, models.Status{Success: true, Message: "ok"}, batchStatus(nil, "ok", "failed: "))
}
