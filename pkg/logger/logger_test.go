package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	digests []Digest
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.digests = append(p.digests, payload.(Digest))
	return nil
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestDigestFoldsRepeatedErrors(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.EnableDigests(DigestConfig{Interval: time.Hour, MaxEntries: 10, Publisher: pub})

	// children created before or after enabling share the collector
	tl := l.With(String("ticker", "QQQ"))
	for i := 0; i < 3; i++ {
		tl.Error("fetch failed", Int("status", 500))
	}
	tl.Warn("no quote", Float64("strike", 451))
	l.Info("ignored")
	l.DisableDigests()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.digests, 1)
	assert.Equal(t, []string{"log.digest"}, pub.topics)

	d := pub.digests[0]
	require.Len(t, d.Entries, 2)
	assert.Equal(t, 3, d.Entries[0].Count)
	assert.Equal(t, "QQQ", d.Entries[0].Fields["ticker"])
	assert.Equal(t, int64(500), d.Entries[0].Fields["status"])
	assert.Contains(t, d.Entries[0].Caller, "logger/logger_test.go:")
	assert.Equal(t, "warn", d.Entries[1].Level)
	assert.False(t, d.To.Before(d.From))
}

func TestDigestFlushesAtMaxEntries(t *testing.T) {
	pub := &capturePublisher{}
	c := NewCollector(DigestConfig{Interval: time.Hour, MaxEntries: 2, Publisher: pub})
	c.Add("error", "a", nil, "x.go:1")
	c.Add("error", "b", nil, "x.go:2")
	c.Add("error", "c", nil, "x.go:3")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.digests, 2)
	assert.Len(t, pub.digests[0].Entries, 2)
	assert.Len(t, pub.digests[1].Entries, 1)
}

func TestDigestKeyIgnoresFieldOrder(t *testing.T) {
	a := digestKey("warn", "m", map[string]interface{}{"a": 1, "b": "x"}, "c.go:1")
	b := digestKey("warn", "m", map[string]interface{}{"b": "x", "a": 1}, "c.go:1")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, digestKey("warn", "m", map[string]interface{}{"a": 2, "b": "x"}, "c.go:1"))
}

func TestFieldValues(t *testing.T) {
	assert.Equal(t, "2025-04-11", Date("date", time.Date(2025, 4, 11, 9, 30, 0, 0, time.UTC)).Value())
	assert.Equal(t, int64(1500), Duration("took", 1500*time.Millisecond).Value())
	assert.Equal(t, "QQQ,SPY", Strings("tickers", []string{"QQQ", "SPY"}).Value())
	assert.Equal(t, "boom", Error(errors.New("boom")).Value())
	assert.Equal(t, "", Error(nil).Value())
	assert.Equal(t, "error", Error(nil).Key)
}
