package repository

import (
	"context"
	"math"
	"testing"
	"time"

	"CoveredCall/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2025, 4, d, 0, 0, 0, 0, time.UTC) }

func row(d int, close float64) models.IndicatorRow {
	return models.IndicatorRow{PriceBar: models.PriceBar{Ticker: "QQQ", Date: day(d), Open: close - 1, Close: close, High: close + 1, Low: close - 2}, RSI: 50}
}

func TestMemoryPriceHistoryUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryPriceHistory()
	rows := []models.IndicatorRow{row(7, 100), row(8, 101), row(9, 102)}

	require.NoError(t, h.WriteUpsert(ctx, "QQQ", rows))
	first, err := h.ReadRecent(ctx, "QQQ", 30)
	require.NoError(t, err)

	require.NoError(t, h.WriteUpsert(ctx, "QQQ", rows))
	second, err := h.ReadRecent(ctx, "QQQ", 30)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, second, 3)
}

func TestMemoryPriceHistoryQueries(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryPriceHistory()

	_, err := h.LatestDate(ctx, "QQQ")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, h.WriteUpsert(ctx, "QQQ", []models.IndicatorRow{row(9, 102), row(7, 100), row(8, 101)}))
	require.NoError(t, h.WriteUpsert(ctx, "QQQ", []models.IndicatorRow{row(8, 111)}))

	recent, _ := h.ReadRecent(ctx, "QQQ", 2)
	require.Len(t, recent, 2)
	assert.Equal(t, day(8), recent[0].Date)
	assert.Equal(t, 111.0, recent[0].Close)

	rng, _ := h.ReadRange(ctx, "QQQ", day(7), day(8))
	assert.Len(t, rng, 2)

	latest, err := h.LatestDate(ctx, "QQQ")
	require.NoError(t, err)
	assert.Equal(t, day(9), latest)
	earliest, _ := h.EarliestDate(ctx, "QQQ")
	assert.Equal(t, day(7), earliest)

	open, err := h.OpenPrice(ctx, "QQQ", day(9).Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 101.0, open)
}

func TestMemoryOptionQuotes(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryOptionQuotes()
	bar := models.OptionBar{Ticker: "SPY", Date: day(11), StrikePrice: 510, OptionType: models.OptionPut, Expiration: day(11), Open: 1.2, Close: 0.4, High: 1.5, Low: math.NaN()}
	require.NoError(t, q.SaveBars(ctx, []models.OptionBar{bar}))

	got, ok, err := q.GetBar(ctx, "SPY", day(11), 510, models.OptionPut, day(11))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.2, got.Open)

	_, ok, _ = q.GetBar(ctx, "SPY", day(11), 510, models.OptionCall, day(11))
	assert.False(t, ok)

	latest, err := q.LatestDate(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, day(11), latest)
}

func TestMemoryDeviations(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDeviations()
	_, err := d.Get(ctx, "QQQ")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, d.Upsert(ctx, models.TickerDeviation{Ticker: "QQQ", Deviation: 6}))
	require.NoError(t, d.Upsert(ctx, models.TickerDeviation{Ticker: "QQQ", Deviation: 7}))
	got, err := d.Get(ctx, "QQQ")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Deviation)
}

func TestRecordConversionMapsNaNToNull(t *testing.T) {
	r := row(7, 100)
	r.RSI = math.NaN()
	rec := toStockRecord("QQQ", r)
	assert.Nil(t, rec.RSI)
	assert.NotNil(t, rec.MACD)

	back := rec.row()
	assert.True(t, math.IsNaN(back.RSI))
	assert.Equal(t, 100.0, back.Close)
}

func TestJournalRows(t *testing.T) {
	trades := []models.BacktestTradeRecord{
		{Ticker: "QQQ", Date: day(7), OptionType: models.OptionCall, Outcome: models.OutcomeSuccessful},
		{Ticker: "QQQ", Date: day(8), OptionType: models.OptionCall, Outcome: models.OutcomeStopLoss},
	}
	rows := tradeRows("run-1", day(9), trades)
	require.Len(t, rows, 2)
	assert.Len(t, rows[1], len(tradeColumns))
	assert.Equal(t, "run-1", rows[1][0])
	assert.Equal(t, "stop_loss_hit", rows[1][9])

	p := predictionRow(day(9), &models.PredictionResult{Ticker: "QQQ", PredictedClass: 1, Probabilities: [2]float64{0.3, 0.7}, StrikePrice: 458})
	assert.Len(t, p, len(predictionColumns))
	assert.Equal(t, uint8(1), p[4])
	assert.Equal(t, int32(458), p[10])
}
