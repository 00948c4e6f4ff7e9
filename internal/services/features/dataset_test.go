package features

import (
	"math"
	"testing"
	"time"

	"CoveredCall/internal/domain/models"
	"CoveredCall/internal/services/indicators"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zigzagRows(n int) []models.IndicatorRow {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	v := 100.0
	for i := range bars {
		if i%2 == 0 {
			v += 2
		} else {
			v--
		}
		bars[i] = models.PriceBar{Ticker: "SPY", Date: start.AddDate(0, 0, i), Open: v, Close: v, High: v + 1, Low: v - 1}
	}
	return indicators.Compute(bars)
}

func TestBuildDropsIncompleteRows(t *testing.T) {
	rows := zigzagRows(60)
	require.Len(t, rows, 34)

	out := Build(rows)
	// The first 19 rows have no full sma window.
	require.Len(t, out, 34-(DefaultSMAPeriod-1))
	for _, r := range out {
		assert.True(t, r.Date.IsZero())
		assert.InDelta(t, math.Abs(r.RSI-30), r.RSI30Diff, 1e-12)
		assert.InDelta(t, math.Abs(r.RSI-70), r.RSI70Diff, 1e-12)
	}
}

func TestBuildLabelsNextDayDirection(t *testing.T) {
	rows := zigzagRows(60)
	out := Build(rows, WithDates())
	byDate := Index(out)

	for i := 0; i < len(rows)-1; i++ {
		fr, ok := byDate[rows[i].Date]
		if !ok {
			continue
		}
		want := 0
		if rows[i+1].Close > rows[i].Close {
			want = 1
		}
		assert.Equal(t, want, fr.PriceDirection, "date %v", rows[i].Date)
		assert.InDelta(t, rows[i].Close-rows[i-1].Close, fr.PriceDiff, 1e-12)
	}

	last := out[len(out)-1]
	assert.Equal(t, rows[len(rows)-1].Date, last.Date)
	assert.Equal(t, 0, last.PriceDirection)
}

func TestBuildSMAPeriod(t *testing.T) {
	rows := zigzagRows(60)
	out := Build(rows, WithSMAPeriod(5))
	assert.Len(t, out, 34-4)
}

func TestBuildSkipsNonFiniteRSI(t *testing.T) {
	rows := zigzagRows(60)
	rows[30].RSI = math.NaN()
	withNaN := Build(rows, WithDates())
	_, ok := Index(withNaN)[rows[30].Date]
	assert.False(t, ok)
	assert.Len(t, withNaN, 34-(DefaultSMAPeriod-1)-1)
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil))
}

func TestAverageDeviation(t *testing.T) {
	bars := func(closes ...float64) []models.PriceBar {
		out := make([]models.PriceBar, len(closes))
		for i, c := range closes {
			out[i] = models.PriceBar{Close: c}
		}
		return out
	}

	d, ok := AverageDeviation(bars(10, 12, 11, 14), 1)
	require.True(t, ok)
	assert.Equal(t, 3, d)

	d, ok = AverageDeviation(bars(0, 1.5), 1)
	require.True(t, ok)
	assert.Equal(t, 2, d)

	_, ok = AverageDeviation(bars(5), 1)
	assert.False(t, ok)
}
