package models

import (
	"encoding/json"
	"time"
)

// Event types emitted on the events topic.
const (
	EventModelUpdated      = "model.updated"
	EventPredictionCreated = "prediction.created"
	EventBacktestCompleted = "backtest.completed"
)

// ModelUpdatedEvent is the payload of EventModelUpdated.
type ModelUpdatedEvent struct {
	Features      []string        `json:"features"`
	TrainAccuracy float64         `json:"train_accuracy"`
	Pruning       []PruningResult `json:"pruning"`
	Rows          int             `json:"rows"`
}

// BacktestCompletedEvent is the payload of EventBacktestCompleted.
type BacktestCompletedEvent struct {
	RunID      string          `json:"run_id"`
	StartDate  string          `json:"start_date"`
	EndDate    string          `json:"end_date"`
	OptionType OptionType      `json:"option_type"`
	StopLoss   float64         `json:"stop_loss"`
	Summary    BacktestSummary `json:"summary"`
}

// Event is the JSON envelope written to the events topic.
type Event struct {
	Type       string      `json:"type"`
	Ticker     string      `json:"ticker,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// EventHeader is the envelope without its payload, used by consumers that only route on type.
type EventHeader struct {
	Type       string          `json:"type"`
	Ticker     string          `json:"ticker,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}
