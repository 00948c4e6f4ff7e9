package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "CoveredCall/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// EventTypeHeader carries the event type set by the producer side; the consumer routes on it.
const EventTypeHeader = "event_type"

// Record is a fetched message as handlers see it.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
}

type HandlerFunc func(ctx context.Context, rec Record) error

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// StartOffset is "earliest" or "latest" and applies to groups without committed offsets.
	StartOffset string
	// Workers process partitions in parallel; one partition always maps to the same worker.
	Workers    int
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	// DLQTopic receives records whose handler kept failing. Without it they are
	// logged and committed anyway so one bad record cannot wedge the partition.
	DLQTopic string
}

func (c *ConsumerConfig) setDefaults() {
	if c.GroupID == "" {
		c.GroupID = "coveredcall"
	}
	if c.StartOffset == "" {
		c.StartOffset = "latest"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 50 * time.Millisecond
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = c.BackoffMin
	}
}

// Consumer reads one topic in a consumer group and dispatches each record to the
// handler registered for its event type.
type Consumer struct {
	cfg      ConsumerConfig
	l        *applogger.Logger
	handlers map[string]HandlerFunc

	reader *kafka.Reader
	dlq    *kafka.Writer
	shards []chan kafka.Message

	ctx      context.Context
	cancel   context.CancelFunc
	fetchWg  sync.WaitGroup
	workWg   sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(cfg ConsumerConfig, l *applogger.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka consumer: topic is required")
	}
	cfg.setDefaults()
	if l == nil {
		l = applogger.Nop()
	}
	initConsumerMetricsOnce()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:      cfg,
		l:        l.With(applogger.String("topic", cfg.Topic), applogger.String("group", cfg.GroupID)),
		handlers: make(map[string]HandlerFunc),
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.Hash{}}
	}
	return c, nil
}

// On registers fn for records whose event type header equals eventType. The first
// registration for a type wins.
func (c *Consumer) On(eventType string, fn HandlerFunc) {
	if _, ok := c.handlers[eventType]; ok {
		c.l.Warn("kafka handler already registered", applogger.String("event_type", eventType))
		return
	}
	c.handlers[eventType] = fn
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	start := kafka.LastOffset
	if c.cfg.StartOffset == "earliest" {
		start = kafka.FirstOffset
	}
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		Topic:       c.cfg.Topic,
		GroupID:     c.cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: start,
	})

	c.shards = make([]chan kafka.Message, c.cfg.Workers)
	for i := range c.shards {
		c.shards[i] = make(chan kafka.Message, 16)
		c.workWg.Add(1)
		go c.work(c.shards[i])
	}
	c.fetchWg.Add(1)
	go c.fetch()

	c.l.Info("kafka consumer started", applogger.Int("workers", c.cfg.Workers))
	return nil
}

// Stop stops fetching, lets workers finish what they hold and closes the reader.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.cancel()
		c.fetchWg.Wait()
		for _, ch := range c.shards {
			close(ch)
		}

		done := make(chan struct{})
		go func() {
			c.workWg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		case <-done:
		}

		if c.reader != nil {
			if cerr := c.reader.Close(); cerr != nil {
				c.l.Warn("kafka reader close error", applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.l.Warn("kafka dlq close error", applogger.Error(cerr))
			}
		}
		c.l.Info("kafka consumer stopped")
	})
	return err
}

func (c *Consumer) fetch() {
	defer c.fetchWg.Done()
	for {
		msg, err := c.reader.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.l.Warn("kafka fetch error", applogger.Error(err))
			select {
			case <-time.After(time.Second):
				continue
			case <-c.ctx.Done():
				return
			}
		}
		select {
		case c.shards[msg.Partition%len(c.shards)] <- msg:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(in <-chan kafka.Message) {
	defer c.workWg.Done()
	for msg := range in {
		c.process(msg)
	}
}

func (c *Consumer) process(msg kafka.Message) {
	rec := toRecord(msg)
	eventType := rec.Headers[EventTypeHeader]
	fn, ok := c.handlers[eventType]
	if !ok {
		c.commit(msg)
		consumerHandled.WithLabelValues(eventType, "skipped").Inc()
		return
	}

	start := time.Now()
	err := c.handle(fn, rec)
	result := "ok"
	if err != nil {
		result = "error"
		c.l.Error("kafka handler failed",
			applogger.String("event_type", eventType),
			applogger.Int("partition", rec.Partition),
			applogger.Int64("offset", rec.Offset),
			applogger.Error(err))
		c.deadLetter(msg, err)
	}
	c.commit(msg)
	consumerHandled.WithLabelValues(eventType, result).Inc()
	consumerHandleLatency.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
}

// handle runs fn with retries. Panics become errors.
func (c *Consumer) handle(fn HandlerFunc, rec Record) (err error) {
	for attempt := 1; ; attempt++ {
		err = safeCall(c.ctx, fn, rec)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		select {
		case <-time.After(backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.ctx.Done():
			return err
		}
	}
}

func safeCall(ctx context.Context, fn HandlerFunc, rec Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, rec)
}

func (c *Consumer) deadLetter(msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	headers := append(msg.Headers,
		kafka.Header{Key: "source_topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.dlq.WriteMessages(ctx, kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}); err != nil {
		c.l.Error("kafka dlq write error", applogger.String("dlq", c.cfg.DLQTopic), applogger.Error(err))
	}
}

func (c *Consumer) commit(msg kafka.Message) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = c.reader.CommitMessages(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.l.Warn("kafka commit error", applogger.Int64("offset", msg.Offset), applogger.Error(err))
}

func toRecord(msg kafka.Message) Record {
	rec := Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   make(map[string]string, len(msg.Headers)),
	}
	for _, h := range msg.Headers {
		rec.Headers[h.Key] = string(h.Value)
	}
	return rec
}

// backoff doubles min per attempt up to max, minus up to half as jitter.
func backoff(min, max time.Duration, attempt int) time.Duration {
	d := max
	if attempt < 32 {
		if exp := min << uint(attempt-1); exp > 0 && exp < max {
			d = exp
		}
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

var (
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerHandled = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coveredcall_kafka_consumer_records_total",
				Help: "Records consumed by event type and result (ok, error, skipped)",
			},
			[]string{"event_type", "result"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coveredcall_kafka_consumer_handle_seconds",
				Help:    "Handling time per record including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		)
	})
}
