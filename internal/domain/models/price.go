package models

import (
	"math"
	"sort"
	"time"
)

// PriceBar is one daily OHLC observation for a ticker.
type PriceBar struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open_price"`
	Close  float64   `json:"close_price"`
	High   float64   `json:"high_price"`
	Low    float64   `json:"low_price"`
}

// IndicatorRow is a PriceBar enriched with technical indicators.
type IndicatorRow struct {
	PriceBar
	MACD           float64 `json:"macd"`
	Signal         float64 `json:"signal"`
	Histogram      float64 `json:"histogram"`
	RSI            float64 `json:"rsi"`
	BollingerUpper float64 `json:"bollinger_upper"`
	BollingerLower float64 `json:"bollinger_lower"`
	SMA            float64 `json:"sma"`
	EMA12          float64 `json:"ema_12"`
	EMA26          float64 `json:"ema_26"`
}

// Bars strips indicator columns, keeping the raw OHLC values.
func Bars(rows []IndicatorRow) []PriceBar {
	out := make([]PriceBar, len(rows))
	for i := range rows {
		out[i] = rows[i].PriceBar
	}
	return out
}

// Closes returns the close column.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// SortBars orders bars by date ascending, in place.
func SortBars(bars []PriceBar) {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}

// SortRows orders rows by date ascending, in place.
func SortRows(rows []IndicatorRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
}

// MergeBars concatenates history and fresh bars, keeping the latest value per date.
func MergeBars(history, fresh []PriceBar) []PriceBar {
	byDate := make(map[time.Time]int, len(history)+len(fresh))
	out := make([]PriceBar, 0, len(history)+len(fresh))
	for _, b := range append(append([]PriceBar{}, history...), fresh...) {
		d := DateOnly(b.Date)
		b.Date = d
		if i, ok := byDate[d]; ok {
			out[i] = b
			continue
		}
		byDate[d] = len(out)
		out = append(out, b)
	}
	SortBars(out)
	return out
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
