package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordError("collaborator")
	r.RecordError("collaborator")
	r.RecordAccuracy("QQQ", 0.61)
	r.RecordBacktest("QQQ", 1250, 40)
	r.RecordPrediction("QQQ", "call", 0.7)
	r.RecordLatency("backtest", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("collaborator")))
	assert.Equal(t, 0.61, testutil.ToFloat64(r.accuracy.WithLabelValues("QQQ")))
	assert.Equal(t, 1250.0, testutil.ToFloat64(r.backtestProfit.WithLabelValues("QQQ")))
	assert.Equal(t, 40.0, testutil.ToFloat64(r.backtestTrades.WithLabelValues("QQQ")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("QQQ", "call")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}
