package strategy

import (
	"math"

	"CoveredCall/internal/domain/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Simulator replays a short-option strategy: sell at the open, buy back at the close,
// unless the intraday high reaches open + stop loss first. All money is in cents.
type Simulator struct {
	stopLoss decimal.Decimal
}

func NewSimulator(stopLossCents float64) *Simulator {
	return &Simulator{stopLoss: decimal.NewFromFloat(stopLossCents)}
}

// Run consumes quotes in chronological order. Days with a missing open, close or high are skipped.
func (s *Simulator) Run(quotes []models.StrikeQuote) models.BacktestSummary {
	var (
		sum           models.BacktestSummary
		profit        = decimal.Zero
		successProfit = decimal.Zero
	)
	for _, q := range quotes {
		b := q.Bar
		if math.IsNaN(b.Open) || math.IsNaN(b.Close) || math.IsNaN(b.High) {
			continue
		}
		opening := decimal.NewFromFloat(b.Open).Mul(hundred)
		closing := decimal.NewFromFloat(b.Close).Mul(hundred)
		high := decimal.NewFromFloat(b.High).Mul(hundred)

		rec := models.BacktestTradeRecord{
			Ticker:            b.Ticker,
			Date:              b.Date,
			OptionType:        b.OptionType,
			StrikePrice:       float64(q.Strike),
			OpeningPriceCents: opening.InexactFloat64(),
			ClosingPriceCents: closing.InexactFloat64(),
			HighPriceCents:    high.InexactFloat64(),
		}
		sum.TotalTrades++

		if high.GreaterThanOrEqual(opening.Add(s.stopLoss)) {
			loss := s.stopLoss.Neg()
			profit = profit.Add(loss)
			sum.StopLossesHit++
			rec.Outcome = models.OutcomeStopLoss
			rec.TradeProfit = loss.InexactFloat64()
			sum.Trades = append(sum.Trades, rec)
			continue
		}

		tp := opening.Sub(closing)
		profit = profit.Add(tp)
		rec.TradeProfit = tp.InexactFloat64()
		switch {
		case closing.LessThan(opening):
			sum.SuccessfulTrades++
			successProfit = successProfit.Add(tp)
			rec.Outcome = models.OutcomeSuccessful
		case closing.GreaterThan(opening):
			sum.NegativeTrades++
			rec.Outcome = models.OutcomeNegative
		default:
			sum.NeutralTrades++
			rec.Outcome = models.OutcomeNeutral
		}
		sum.Trades = append(sum.Trades, rec)
	}

	sum.TotalProfit = profit.InexactFloat64()
	if sum.TotalTrades > 0 {
		sum.SuccessRate = float64(sum.SuccessfulTrades) / float64(sum.TotalTrades) * 100
	}
	if sum.SuccessfulTrades > 0 {
		sum.AvgGainPerSuccessfulTrade = successProfit.Div(decimal.NewFromInt(int64(sum.SuccessfulTrades))).InexactFloat64()
	}
	return sum
}
