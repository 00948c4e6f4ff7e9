package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "postgres", c.Storage.Backend)
	assert.Equal(t, []string{"QQQ", "SPY"}, c.Strategy.OptionsTickers)
	assert.Len(t, c.Strategy.Tickers, 9)
	assert.Equal(t, 5.0, c.Strategy.BaseDeviation)
	assert.Equal(t, 0.6, c.Strategy.UpperThreshold)
	assert.Equal(t, 0.35, c.Strategy.LowerThreshold)
	assert.Equal(t, 200.0, c.Strategy.StopLoss)
	assert.Equal(t, 5, c.Polygon.RequestsPerMinute)
	assert.Equal(t, "CoveredCall/1.0", c.Polygon.UserAgent)
	assert.Equal(t, time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC), c.Strategy.Beginning())
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: prod
storage:
  backend: memory
strategy:
  tickers: [SPY]
  stop_loss: 150
`))
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Storage.Backend)
	assert.Equal(t, []string{"SPY"}, c.Strategy.Tickers)
	assert.Equal(t, 150.0, c.Strategy.StopLoss)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"backend":    "storage:\n  backend: sqlite\n",
		"thresholds": "strategy:\n  upper_threshold: 0.3\n  lower_threshold: 0.5\n",
		"date":       "strategy:\n  beginning_date: 10/05/2023\n",
		"queue":      "queue:\n  enabled: true\n",
		"stop":       "strategy:\n  stop_loss: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)

	env := map[string]string{
		"POLYGON_API_KEY": "k",
		"TICKERS":         "aapl, msft,,",
		"REDIS_ADDR":      "redis:6379",
		"DB_PORT":         "6543",
		"KAFKA_BROKERS":   "a:9092,b:9092",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "k", c.Polygon.APIKey)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Strategy.Tickers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, 6543, c.Postgres.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("environment: ci\n"), 0o600))
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "ci", c.Environment)
}
