package models

import (
	"fmt"
	"time"
)

// Canonical feature names, in the order the models are configured with by default.
const (
	FeatureRSI30Diff      = "rsi_30_diff"
	FeatureRSI70Diff      = "rsi_70_diff"
	FeatureMACD           = "macd"
	FeaturePriceDiff      = "price_diff"
	FeatureHistogram      = "histogram"
	FeatureSignal         = "signal"
	FeatureRSI            = "rsi"
	FeatureBollingerUpper = "bollinger_upper"
	FeatureBollingerLower = "bollinger_lower"
	FeatureSMA            = "sma"
	FeatureEMA12          = "ema_12"
	FeatureEMA26          = "ema_26"
)

// DefaultFeatures lists every feature the dataset builder produces.
var DefaultFeatures = []string{
	FeatureRSI30Diff, FeatureRSI70Diff, FeatureMACD, FeaturePriceDiff,
	FeatureHistogram, FeatureSignal, FeatureRSI, FeatureBollingerUpper,
	FeatureBollingerLower, FeatureSMA, FeatureEMA12, FeatureEMA26,
}

// FeatureRow is one labeled training/inference example.
type FeatureRow struct {
	Date           time.Time `json:"date,omitempty"`
	RSI30Diff      float64   `json:"rsi_30_diff"`
	RSI70Diff      float64   `json:"rsi_70_diff"`
	MACD           float64   `json:"macd"`
	PriceDiff      float64   `json:"price_diff"`
	Histogram      float64   `json:"histogram"`
	Signal         float64   `json:"signal"`
	RSI            float64   `json:"rsi"`
	BollingerUpper float64   `json:"bollinger_upper"`
	BollingerLower float64   `json:"bollinger_lower"`
	SMA            float64   `json:"sma"`
	EMA12          float64   `json:"ema_12"`
	EMA26          float64   `json:"ema_26"`
	PriceDirection int       `json:"price_direction"`
}

// Value returns the named feature.
func (r FeatureRow) Value(name string) (float64, error) {
	switch name {
	case FeatureRSI30Diff:
		return r.RSI30Diff, nil
	case FeatureRSI70Diff:
		return r.RSI70Diff, nil
	case FeatureMACD:
		return r.MACD, nil
	case FeaturePriceDiff:
		return r.PriceDiff, nil
	case FeatureHistogram:
		return r.Histogram, nil
	case FeatureSignal:
		return r.Signal, nil
	case FeatureRSI:
		return r.RSI, nil
	case FeatureBollingerUpper:
		return r.BollingerUpper, nil
	case FeatureBollingerLower:
		return r.BollingerLower, nil
	case FeatureSMA:
		return r.SMA, nil
	case FeatureEMA12:
		return r.EMA12, nil
	case FeatureEMA26:
		return r.EMA26, nil
	}
	return 0, fmt.Errorf("unknown feature %q: %w", name, ErrInvalidInput)
}

// Vector returns the named features in order.
func (r FeatureRow) Vector(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, err := r.Value(n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Matrix extracts the feature matrix and label vector from rows.
func Matrix(rows []FeatureRow, names []string) ([][]float64, []int, error) {
	x := make([][]float64, len(rows))
	y := make([]int, len(rows))
	for i, r := range rows {
		v, err := r.Vector(names)
		if err != nil {
			return nil, nil, err
		}
		x[i] = v
		y[i] = r.PriceDirection
	}
	return x, y, nil
}

// ValidateFeatures checks that every name is a known feature.
func ValidateFeatures(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("empty feature list: %w", ErrInvalidInput)
	}
	var probe FeatureRow
	for _, n := range names {
		if _, err := probe.Value(n); err != nil {
			return err
		}
	}
	return nil
}
