package features

import (
	"math"

	"CoveredCall/internal/domain/models"
)

// AverageDeviation is the mean absolute close-to-close move plus buffer, rounded half to even.
// ok is false when fewer than two bars are given.
func AverageDeviation(bars []models.PriceBar, buffer float64) (int, bool) {
	if len(bars) < 2 {
		return 0, false
	}
	sum := 0.0
	for i := 1; i < len(bars); i++ {
		sum += math.Abs(bars[i].Close - bars[i-1].Close)
	}
	avg := sum/float64(len(bars)-1) + buffer
	return int(math.RoundToEven(avg)), true
}
