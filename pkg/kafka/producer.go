package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one outgoing record. Value is JSON encoded unless it is already bytes.
type Message struct {
	Key       string
	EventType string // stamped as the EventTypeHeader
	Value     interface{}
}

// Producer writes JSON events through a shared kafka.Writer.
type Producer struct {
	writer      *kafka.Writer
	compression string
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var bal kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	producerMetricsOnce.Do(registerProducerMetrics)
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     bal,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  compressionCodecs[cfg.Compression],
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.BatchTimeout,
			Async:        cfg.Async,
		},
		compression: cfg.Compression,
	}, nil
}

// Write encodes msgs and sends them to topic in one call.
func (p *Producer) Write(ctx context.Context, topic string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	start := time.Now()
	out := make([]kafka.Message, len(msgs))
	var size int
	for i, m := range msgs {
		km, err := m.encode(topic, start)
		if err != nil {
			return err
		}
		out[i] = km
		size += len(km.Value)
	}

	err := p.writer.WriteMessages(ctx, out...)
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerRecords.WithLabelValues(topic, result).Add(float64(len(msgs)))
	producerBytes.WithLabelValues(topic, p.compression).Add(float64(size))
	producerLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

func (m Message) encode(topic string, at time.Time) (kafka.Message, error) {
	km := kafka.Message{Topic: topic, Time: at}
	if m.Key != "" {
		km.Key = []byte(m.Key)
	}
	if m.EventType != "" {
		km.Headers = []kafka.Header{{Key: EventTypeHeader, Value: []byte(m.EventType)}}
	}
	switch v := m.Value.(type) {
	case []byte:
		km.Value = v
	case json.RawMessage:
		km.Value = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return km, fmt.Errorf("encode %s: %w", m.EventType, err)
		}
		km.Value = b
	}
	return km, nil
}

// Close flushes pending async writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}

var (
	producerRecords     *prometheus.CounterVec
	producerBytes       *prometheus.CounterVec
	producerLatency     *prometheus.HistogramVec
	producerMetricsOnce sync.Once
)

func registerProducerMetrics() {
	producerRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coveredcall_kafka_producer_records_total",
		Help: "Records written to Kafka by result",
	}, []string{"topic", "result"})
	producerBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coveredcall_kafka_producer_bytes_total",
		Help: "Uncompressed payload bytes written",
	}, []string{"topic", "compression"})
	producerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coveredcall_kafka_producer_write_seconds",
		Help:    "WriteMessages latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
}
