package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Job handles every message of one Type.
type Job interface {
	Name() string
	Type() string
	// Handle processes one payload. A returned error schedules a retry.
	Handle(ctx context.Context, payload interface{}) error
}

type Config struct {
	Workers    int
	RetryLimit int
	// RetryDelay is the first retry delay; it doubles on every further attempt.
	RetryDelay time.Duration
	JobTimeout time.Duration
	// DeadLetterCap bounds the dead-letter list; older entries are trimmed.
	DeadLetterCap int
	PollInterval  time.Duration
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Minute
	}
	if c.DeadLetterCap <= 0 {
		c.DeadLetterCap = 1000
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
}

// retryDelay is the wait before the given retry attempt (1-based).
func (c *Config) retryDelay(attempt int) time.Duration {
	d := c.RetryDelay
	for i := 1; i < attempt && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

// Message is the stored form of an enqueued job.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// Stats counts messages per state.
type Stats struct {
	Queued     int64 `json:"queued"`
	InFlight   int64 `json:"in_flight"`
	Retrying   int64 `json:"retrying"`
	DeadLetter int64 `json:"dead_letter"`
}

// ParsePayload converts a handler payload into T. Payloads read back from Redis arrive
// as json.RawMessage; in-process callers may pass T or *T directly.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var result T

	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		if len(p) == 0 || string(p) == "null" {
			return &result, nil
		}
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &result, nil
	case map[string]interface{}:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload map: %w", err)
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &result, nil
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
}
