package strategy

import (
	"math"
	"time"

	"CoveredCall/internal/domain/models"
	"CoveredCall/internal/services/training"
)

// Thresholds split the up-probability into bullish, bearish and neutral regimes.
type Thresholds struct {
	Upper float64
	Lower float64
}

// DefaultThresholds are 0.6 and 0.35.
func DefaultThresholds() Thresholds {
	return Thresholds{Upper: 0.6, Lower: 0.35}
}

// Deviation converts the probability of an up move into a strike offset.
// Bullish pushes the strike further out, bearish pulls it towards the money.
func Deviation(probUp, base float64, th Thresholds) float64 {
	confidence := math.Max(probUp, 1-probUp)
	switch {
	case probUp >= th.Upper:
		return base * 1.25 * confidence
	case probUp <= th.Lower:
		return base * probUp
	default:
		return base * confidence
	}
}

// DeviationForDate scores the feature row dated date. ok is false when no such row exists.
func DeviationForDate(date time.Time, rows map[time.Time]models.FeatureRow, m *models.TrainedModel, base float64, th Thresholds) (float64, bool, error) {
	row, found := rows[models.DateOnly(date)]
	if !found {
		return 0, false, nil
	}
	probs, _, err := training.Predict(m, row)
	if err != nil {
		return 0, false, err
	}
	return Deviation(probs[1], base, th), true, nil
}
