package indicators

import "CoveredCall/internal/domain/models"

const (
	FastSpan        = 12
	SlowSpan        = 26
	SignalSpan      = 9
	RSIWindow       = 14
	BollingerWindow = 20
	BollingerWidth  = 2.0
	// Warmup rows are dropped from every computed window.
	Warmup = 26
)

// Compute derives MACD, signal, histogram, RSI, Bollinger bands and moving averages
// for bars ordered by date ascending. The first Warmup rows are dropped, so fewer
// than Warmup+1 bars yield an empty result.
func Compute(bars []models.PriceBar) []models.IndicatorRow {
	if len(bars) <= Warmup {
		return []models.IndicatorRow{}
	}
	closes := models.Closes(bars)

	ema12 := EMA(closes, FastSpan)
	ema26 := EMA(closes, SlowSpan)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := EMA(macd, SignalSpan)
	rsi := RSI(closes, RSIWindow)
	sma := RollingMean(closes, BollingerWindow)
	std := RollingStd(closes, BollingerWindow)

	out := make([]models.IndicatorRow, 0, len(bars)-Warmup)
	for i := Warmup; i < len(bars); i++ {
		out = append(out, models.IndicatorRow{
			PriceBar:       bars[i],
			MACD:           macd[i],
			Signal:         signal[i],
			Histogram:      macd[i] - signal[i],
			RSI:            rsi[i],
			BollingerUpper: sma[i] + BollingerWidth*std[i],
			BollingerLower: sma[i] - BollingerWidth*std[i],
			SMA:            sma[i],
			EMA12:          ema12[i],
			EMA26:          ema26[i],
		})
	}
	return out
}

// RSI uses plain rolling means of gains and losses, not Wilder smoothing.
// The undefined first delta counts as zero movement. A window with no
// losses gives 100; a window with no movement at all gives NaN.
func RSI(closes []float64, window int) []float64 {
	delta := Diff(closes)
	gain := make([]float64, len(delta))
	loss := make([]float64, len(delta))
	for i, d := range delta {
		if d > 0 {
			gain[i] = d
		} else if d < 0 {
			loss[i] = -d
		}
	}
	avgGain := RollingMean(gain, window)
	avgLoss := RollingMean(loss, window)
	out := make([]float64, len(delta))
	for i := range out {
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
