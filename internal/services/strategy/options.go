package strategy

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"CoveredCall/internal/domain/models"
)

var occSymbol = regexp.MustCompile(`^O:([A-Z.]+)(\d{6})([CP])(\d{8})$`)

// OptionSymbol formats an OCC-style symbol, e.g. O:QQQ250411C00458000.
func OptionSymbol(ticker string, expiration time.Time, strike float64, optionType models.OptionType) string {
	return fmt.Sprintf("O:%s%s%s%08d", ticker, expiration.Format("060102"), optionType.Letter(), int64(math.Round(strike*1000)))
}

// ParseOptionSymbol is the inverse of OptionSymbol.
func ParseOptionSymbol(symbol string) (models.OptionContract, error) {
	m := occSymbol.FindStringSubmatch(symbol)
	if m == nil {
		return models.OptionContract{}, fmt.Errorf("option symbol %q: %w", symbol, models.ErrInvalidInput)
	}
	exp, err := time.Parse("060102", m[2])
	if err != nil {
		return models.OptionContract{}, fmt.Errorf("option symbol %q expiration: %w", symbol, models.ErrInvalidInput)
	}
	milli, _ := strconv.ParseInt(m[4], 10, 64)
	ot := models.OptionCall
	if m[3] == "P" {
		ot = models.OptionPut
	}
	return models.OptionContract{
		Symbol:      symbol,
		Ticker:      m[1],
		StrikePrice: float64(milli) / 1000,
		OptionType:  ot,
		Expiration:  exp,
	}, nil
}

// OptionChain lists call and put contracts with strikes from center-width to center+width by step.
func OptionChain(ticker string, expiration time.Time, center, width, step float64) []models.OptionContract {
	if step <= 0 {
		step = 1
	}
	var strikes []float64
	for i := 0; ; i++ {
		s := math.Round((center-width+float64(i)*step)*100) / 100
		if s > center+width+1e-9 {
			break
		}
		strikes = append(strikes, s)
	}
	out := make([]models.OptionContract, 0, 2*len(strikes))
	for _, ot := range []models.OptionType{models.OptionCall, models.OptionPut} {
		for _, s := range strikes {
			out = append(out, models.OptionContract{
				Symbol:      OptionSymbol(ticker, expiration, s, ot),
				Ticker:      ticker,
				StrikePrice: s,
				OptionType:  ot,
				Expiration:  expiration,
			})
		}
	}
	return out
}
