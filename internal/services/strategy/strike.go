package strategy

import (
	"fmt"
	"math"

	"CoveredCall/internal/domain/models"
)

// Strike rounds away from the money: calls up, puts down.
func Strike(reference, deviation float64, optionType models.OptionType) (int, error) {
	switch optionType {
	case models.OptionCall:
		return int(math.Ceil(reference + deviation)), nil
	case models.OptionPut:
		return int(math.Floor(reference - deviation)), nil
	}
	return 0, fmt.Errorf("option type %q: %w", optionType, models.ErrInvalidInput)
}
