package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	accuracy       *prometheus.GaugeVec
	backtestProfit *prometheus.GaugeVec
	backtestTrades *prometheus.GaugeVec
	predictions    *prometheus.CounterVec
	probUp         *prometheus.GaugeVec
}

// New creates a recorder registered on reg (prometheus.DefaultRegisterer in production).
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coveredcall_errors_total",
				Help: "Total number of errors encountered, by kind",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coveredcall_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"operation"},
		),
		accuracy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coveredcall_model_accuracy",
				Help: "Held-out accuracy of the last trained model",
			},
			[]string{"ticker"},
		),
		backtestProfit: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coveredcall_backtest_profit_cents",
				Help: "Total profit of the last backtest run",
			},
			[]string{"ticker"},
		),
		backtestTrades: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coveredcall_backtest_trades",
				Help: "Number of trades in the last backtest run",
			},
			[]string{"ticker"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coveredcall_predictions_total",
				Help: "Predictions served",
			},
			[]string{"ticker", "option_type"},
		),
		probUp: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coveredcall_prediction_prob_up",
				Help: "Probability of an up move in the latest prediction",
			},
			[]string{"ticker"},
		),
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordAccuracy(ticker string, accuracy float64) {
	r.accuracy.WithLabelValues(ticker).Set(accuracy)
}

func (r *Recorder) RecordBacktest(ticker string, profit float64, trades int) {
	r.backtestProfit.WithLabelValues(ticker).Set(profit)
	r.backtestTrades.WithLabelValues(ticker).Set(float64(trades))
}

func (r *Recorder) RecordPrediction(ticker, optionType string, probUp float64) {
	r.predictions.WithLabelValues(ticker, optionType).Inc()
	r.probUp.WithLabelValues(ticker).Set(probUp)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordAccuracy(string, float64) {}
func (Nop) RecordBacktest(string, float64, int) {}
func (Nop) RecordPrediction(string, string, float64) {}
