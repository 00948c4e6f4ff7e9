package models

import "time"

// TradeOutcome classifies one simulated day.
type TradeOutcome string

const (
	OutcomeStopLoss   TradeOutcome = "stop_loss_hit"
	OutcomeSuccessful TradeOutcome = "successful"
	OutcomeNegative   TradeOutcome = "negative"
	OutcomeNeutral    TradeOutcome = "neutral"
)

// BacktestTradeRecord is the result of selling one contract at the open.
type BacktestTradeRecord struct {
	Ticker            string       `json:"ticker"`
	Date              time.Time    `json:"date"`
	OptionType        OptionType   `json:"option_type"`
	StrikePrice       float64      `json:"strike_price"`
	OpeningPriceCents float64      `json:"opening_price"`
	ClosingPriceCents float64      `json:"closing_price"`
	HighPriceCents    float64      `json:"high_price"`
	Outcome           TradeOutcome `json:"outcome"`
	TradeProfit       float64      `json:"trade_profit"`
}

// BacktestSummary aggregates a backtest run. Money is in cents.
type BacktestSummary struct {
	Ticker                    string                `json:"ticker,omitempty"`
	TotalProfit               float64               `json:"total_profit"`
	TotalTrades               int                   `json:"total_trades"`
	SuccessfulTrades          int                   `json:"successful_trades"`
	StopLossesHit             int                   `json:"stop_losses_hit"`
	NegativeTrades            int                   `json:"negative_trades"`
	NeutralTrades             int                   `json:"neutral_trades"`
	SuccessRate               float64               `json:"success_rate"`
	AvgGainPerSuccessfulTrade float64               `json:"avg_gain_per_successful_trade"`
	Trades                    []BacktestTradeRecord `json:"trades,omitempty"`
}

// StrikeQuote pairs a chosen strike with the option bar observed for it.
type StrikeQuote struct {
	Strike int
	Bar    OptionBar
}
