package models

import "CoveredCall/pkg/queue"

// Request bodies and query strings of the strategy endpoints.

type BacktestRequest struct {
	Ticker        string  `query:"ticker" json:"ticker" validate:"required,ticker"`
	StartDate     string  `query:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string  `query:"end_date" json:"end_date" validate:"required,datetime=2006-01-02"`
	BaseDeviation float64 `query:"base_deviation" json:"base_deviation" validate:"gte=0"`
	OptionType    string  `query:"option_type" json:"option_type" default:"call" validate:"oneof=call put CALL PUT"`
	StopLoss      float64 `query:"stop_loss" json:"stop_loss" default:"200" validate:"gt=0"`
	WithTrades    bool    `query:"with_trades" json:"with_trades"`
}

type PredictRequest struct {
	Ticker        string  `query:"ticker" json:"ticker" validate:"required,ticker"`
	OptionType    string  `query:"option_type" json:"option_type" default:"call" validate:"oneof=call put CALL PUT"`
	BaseDeviation float64 `query:"base_deviation" json:"base_deviation" validate:"gte=0"`
}

type UpdateModelsRequest struct {
	Tickers  []string `json:"tickers" validate:"max=50,dive,ticker"`
	Features []string `json:"features"`
}

// TickersRequest selects tickers for a batch; empty means the configured list.
type TickersRequest struct {
	Tickers []string `json:"tickers" validate:"max=50,dive,ticker"`
}

type JobsRequest struct {
	DeadLetters int `query:"dead_letters" default:"20" validate:"gte=0,lte=500"`
}

// JobsReport is the queue backlog with the most recent dead letters.
type JobsReport struct {
	queue.Stats
	DeadLetters []queue.Message `json:"dead_letters"`
}
