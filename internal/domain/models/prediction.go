package models

import (
	"time"

	"CoveredCall/pkg/forest"
)

// TrainedModel is the winning classifier for a ticker plus the features it was trained on.
type TrainedModel struct {
	Ticker        string         `json:"ticker"`
	Classifier    *forest.Forest `json:"classifier"`
	Features      []string       `json:"features"`
	TrainAccuracy float64        `json:"train_accuracy"`
	TrainedAt     time.Time      `json:"trained_at"`
}

// PruningResult is one step of the feature elimination loop.
type PruningResult struct {
	FeatureCount int      `json:"num_features"`
	Features     []string `json:"features"`
	Accuracy     float64  `json:"accuracy"`
}

// FeatureImportance is the permutation importance of one feature on the held-out split.
type FeatureImportance struct {
	Feature        string  `json:"feature"`
	ImportanceMean float64 `json:"importance_mean"`
	ImportanceStd  float64 `json:"importance_std"`
}

// PredictionResult is the strike recommendation for one ticker and option side.
type PredictionResult struct {
	Ticker         string     `json:"ticker"`
	OptionType     string     `json:"option_type"`
	PredictedClass int        `json:"prediction"`
	Probabilities  [2]float64 `json:"probabilities"`
	Deviation      float64    `json:"deviation"`
	BaseDeviation  float64    `json:"base_deviation"`
	ReferencePrice float64    `json:"reference_price"`
	StrikePrice    int        `json:"option_strike_price"`
	Date           string     `json:"date,omitempty"`
}

// Status is the outcome of a multi-ticker batch.
type Status struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Failures map[string]string `json:"failures,omitempty"`
}
