package features

import (
	"math"
	"time"

	"CoveredCall/internal/domain/models"
	"CoveredCall/internal/services/indicators"
)

// DefaultSMAPeriod is the window of the sma feature.
const DefaultSMAPeriod = 20

type buildConfig struct {
	smaPeriod int
	keepDates bool
}

// Option configures Build.
type Option func(*buildConfig)

// WithSMAPeriod overrides the sma feature window.
func WithSMAPeriod(n int) Option {
	return func(c *buildConfig) {
		if n > 0 {
			c.smaPeriod = n
		}
	}
}

// WithDates keeps the row date, needed to align features with backtest days.
func WithDates() Option {
	return func(c *buildConfig) { c.keepDates = true }
}

// Build turns stored indicator rows (ascending by date) into labeled feature rows.
// price_direction is 1 when the next close is strictly higher; the last row has
// no next close and is labeled 0. Rows with a non-finite feature are dropped.
func Build(rows []models.IndicatorRow, opts ...Option) []models.FeatureRow {
	cfg := buildConfig{smaPeriod: DefaultSMAPeriod}
	for _, o := range opts {
		o(&cfg)
	}
	if len(rows) == 0 {
		return []models.FeatureRow{}
	}

	closes := models.Closes(models.Bars(rows))
	next := indicators.Shift(closes, -1)
	prev := indicators.Shift(closes, 1)
	sma := indicators.RollingMean(closes, cfg.smaPeriod)
	ema12 := indicators.EMA(closes, indicators.FastSpan)
	ema26 := indicators.EMA(closes, indicators.SlowSpan)

	out := make([]models.FeatureRow, 0, len(rows))
	for i, r := range rows {
		fr := models.FeatureRow{
			RSI30Diff:      math.Abs(r.RSI - 30),
			RSI70Diff:      math.Abs(r.RSI - 70),
			MACD:           r.MACD,
			PriceDiff:      closes[i] - prev[i],
			Histogram:      r.Histogram,
			Signal:         r.Signal,
			RSI:            r.RSI,
			BollingerUpper: r.BollingerUpper,
			BollingerLower: r.BollingerLower,
			SMA:            sma[i],
			EMA12:          ema12[i],
			EMA26:          ema26[i],
		}
		if next[i]-closes[i] > 0 {
			fr.PriceDirection = 1
		}
		if !models.Finite(fr.RSI30Diff, fr.RSI70Diff, fr.MACD, fr.PriceDiff, fr.Histogram,
			fr.Signal, fr.RSI, fr.BollingerUpper, fr.BollingerLower, fr.SMA, fr.EMA12, fr.EMA26) {
			continue
		}
		if cfg.keepDates {
			fr.Date = models.DateOnly(r.Date)
		}
		out = append(out, fr)
	}
	return out
}

// Index maps each row date to its feature row. Rows must have been built WithDates.
func Index(rows []models.FeatureRow) map[time.Time]models.FeatureRow {
	m := make(map[time.Time]models.FeatureRow, len(rows))
	for _, r := range rows {
		m[models.DateOnly(r.Date)] = r
	}
	return m
}
