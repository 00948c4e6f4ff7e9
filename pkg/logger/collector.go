package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// DigestConfig controls how repeated warnings and errors are folded into digests.
type DigestConfig struct {
	Interval time.Duration // flush period, 30s when zero
	// MaxEntries flushes early once this many distinct entries are pending.
	MaxEntries int
	Topic      string // digest event type, "log.digest" when empty
	Publisher  Publisher
}

// DigestEntry is one distinct log line with how often it occurred in the window.
type DigestEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Digest is what gets published: entries sorted by count, most frequent first.
type Digest struct {
	From    time.Time     `json:"from"`
	To      time.Time     `json:"to"`
	Entries []DigestEntry `json:"entries"`
	// Dropped counts digests lost because the publisher fell behind.
	Dropped int `json:"dropped,omitempty"`
}

// Collector folds log lines by level, caller, message and fields. A single goroutine
// publishes digests; when it falls behind, new digests are dropped and counted.
type Collector struct {
	cfg DigestConfig

	mu      sync.Mutex
	pending map[string]*DigestEntry
	since   time.Time
	dropped int

	out    chan Digest
	stop   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

func NewCollector(cfg DigestConfig) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}
	if cfg.Topic == "" {
		cfg.Topic = "log.digest"
	}
	c := &Collector{
		cfg:     cfg,
		pending: make(map[string]*DigestEntry),
		since:   time.Now(),
		out:     make(chan Digest, 4),
		stop:    make(chan struct{}),
	}
	c.wg.Add(2)
	go c.tick()
	go c.publish()
	return c
}

func (c *Collector) Add(level, msg string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := digestKey(level, msg, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.pending[key] = &DigestEntry{
			Level:     level,
			Message:   msg,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	if len(c.pending) >= c.cfg.MaxEntries {
		c.flushLocked(now)
	}
}

func digestKey(level, msg string, fields map[string]interface{}, caller string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte('|')
	b.WriteString(caller)
	b.WriteByte('|')
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, fields[k])
	}
	return b.String()
}

// flushLocked hands the pending entries to the publisher. c.mu must be held.
func (c *Collector) flushLocked(now time.Time) {
	if len(c.pending) == 0 {
		return
	}
	d := Digest{From: c.since, To: now, Entries: make([]DigestEntry, 0, len(c.pending)), Dropped: c.dropped}
	for _, e := range c.pending {
		d.Entries = append(d.Entries, *e)
	}
	sort.Slice(d.Entries, func(i, j int) bool {
		if d.Entries[i].Count != d.Entries[j].Count {
			return d.Entries[i].Count > d.Entries[j].Count
		}
		return d.Entries[i].FirstSeen.Before(d.Entries[j].FirstSeen)
	})
	c.pending = make(map[string]*DigestEntry)
	c.since = now

	select {
	case c.out <- d:
		c.dropped = 0
	default:
		c.dropped++
	}
}

func (c *Collector) tick() {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			c.mu.Lock()
			c.flushLocked(now)
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			c.flushLocked(time.Now())
			c.mu.Unlock()
			close(c.out)
			return
		}
	}
}

func (c *Collector) publish() {
	defer c.wg.Done()
	for d := range c.out {
		if c.cfg.Publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, d); err != nil {
			// the logger cannot log its own delivery failures
			fmt.Fprintf(os.Stderr, "publish log digest: %v\n", err)
		}
		cancel()
	}
}

// Close flushes what is pending and waits until it has been published.
func (c *Collector) Close() {
	c.closed.Do(func() { close(c.stop) })
	c.wg.Wait()
}
