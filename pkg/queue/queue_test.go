package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"CoveredCall/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickersPayload struct {
	Tickers []string `json:"tickers"`
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[tickersPayload](json.RawMessage(`{"tickers":["AAPL"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, p.Tickers)

	p, err = ParsePayload[tickersPayload](json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, p.Tickers)

	p, err = ParsePayload[tickersPayload](map[string]interface{}{"tickers": []interface{}{"QQQ", "SPY"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"QQQ", "SPY"}, p.Tickers)

	direct := tickersPayload{Tickers: []string{"MSFT"}}
	p, err = ParsePayload[tickersPayload](direct)
	require.NoError(t, err)
	assert.Equal(t, direct, *p)

	_, err = ParsePayload[tickersPayload](42)
	assert.Error(t, err)
}

func TestConfigDefaultsAndBackoff(t *testing.T) {
	cfg := Config{RetryDelay: 30 * time.Second}
	cfg.setDefaults()
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 30*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 1000, cfg.DeadLetterCap)

	assert.Equal(t, 30*time.Second, cfg.retryDelay(1))
	assert.Equal(t, time.Minute, cfg.retryDelay(2))
	assert.Equal(t, 2*time.Minute, cfg.retryDelay(3))
	assert.Equal(t, time.Hour, cfg.retryDelay(40))
}

type scriptedJob struct {
	calls int
	err   error
	panic bool
	seen  interface{}
}

func (j *scriptedJob) Name() string { return "scripted" }
func (j *scriptedJob) Type() string { return "scripted" }
func (j *scriptedJob) Handle(_ context.Context, payload interface{}) error {
	j.calls++
	j.seen = payload
	if j.panic {
		panic("boom")
	}
	return j.err
}

func newTestQueue(t *testing.T, jobs ...Job) *RedisQueue {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { client.Close() })
	q := NewRedisQueue(logger.Nop(), Config{RetryLimit: 2}, client, WithKeyPrefix("test:queue"), WithConsumerID("w1"))
	q.RegisterJobs(jobs...)
	return q
}

func TestKeys(t *testing.T) {
	q := newTestQueue(t)
	assert.Equal(t, "test:queue:messages", q.messagesKey())
	assert.Equal(t, "test:queue:processing:w1", q.processingKey())
	assert.Equal(t, "test:queue:retry", q.retryKey())
	assert.Equal(t, "test:queue:dlq", q.deadLetterKey())
}

func TestRunPassesRawPayload(t *testing.T) {
	job := &scriptedJob{}
	q := newTestQueue(t, job)

	require.NoError(t, q.run(context.Background(), Message{Type: "scripted", Payload: json.RawMessage(`{"tickers":["QQQ"]}`)}))
	assert.Equal(t, 1, job.calls)
	p, err := ParsePayload[tickersPayload](job.seen)
	require.NoError(t, err)
	assert.Equal(t, []string{"QQQ"}, p.Tickers)
}

func TestRunRecoversPanics(t *testing.T) {
	q := newTestQueue(t, &scriptedJob{panic: true})
	err := q.run(context.Background(), Message{Type: "scripted"})
	assert.ErrorContains(t, err, "panicked")
}

func TestRunUnknownType(t *testing.T) {
	q := newTestQueue(t)
	assert.Error(t, q.run(context.Background(), Message{Type: "nope"}))
}

func TestFailedDeadLettersAfterRetryLimit(t *testing.T) {
	q := newTestQueue(t)
	msg := Message{ID: "m1", Type: "scripted"}
	cause := errors.New("polygon unavailable")

	msg, dead := q.failed(msg, cause)
	assert.False(t, dead)
	assert.Equal(t, 1, msg.Attempts)
	assert.Equal(t, "polygon unavailable", msg.LastError)

	msg, dead = q.failed(msg, cause)
	assert.False(t, dead)
	_, dead = q.failed(msg, cause)
	assert.True(t, dead)
}

func TestEnqueueRejectsUnknownType(t *testing.T) {
	q := newTestQueue(t, &scriptedJob{})
	assert.ErrorContains(t, q.Enqueue(context.Background(), "update_everything", nil), "no job registered")
}

func TestRegisterKeepsFirstJob(t *testing.T) {
	first, second := &scriptedJob{}, &scriptedJob{}
	q := newTestQueue(t, first, second)
	j, ok := q.job("scripted")
	require.True(t, ok)
	assert.Same(t, first, j)
}

func TestDeadLettersZero(t *testing.T) {
	q := newTestQueue(t)
	out, err := q.DeadLetters(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, out)
}
