package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"CoveredCall/pkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is an at-least-once job queue on Redis lists.
//
// Keys under the prefix:
//
//	messages            pending messages, LPUSH in, popped from the right
//	processing:<id>     messages a consumer has taken but not settled
//	retry               sorted set of failed messages scored by due time (unix ms)
//	dlq                 messages that exhausted their retries, newest first
//
// A consumer moves its own processing list back to messages on Start, so work taken by
// a crashed process is picked up again after restart.
type RedisQueue struct {
	l          *logger.Logger
	cfg        Config
	client     *redis.Client
	prefix     string
	consumerID string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type RedisQueueOption func(*RedisQueue)

func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithConsumerID names this process's processing list. It defaults to the hostname.
func WithConsumerID(id string) RedisQueueOption {
	return func(r *RedisQueue) {
		if id != "" {
			r.consumerID = id
		}
	}
}

func NewRedisQueue(l *logger.Logger, cfg Config, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if l == nil {
		l = logger.Nop()
	}
	cfg.setDefaults()
	host, _ := os.Hostname()
	if host == "" {
		host = "local"
	}
	r := &RedisQueue{
		l:          l,
		cfg:        cfg,
		client:     client,
		prefix:     "coveredcall:queue",
		consumerID: host,
		jobs:       make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	initQueueMetricsOnce()
	return r
}

// RegisterJobs adds handlers by message type. The first job registered for a type wins.
func (r *RedisQueue) RegisterJobs(jobs ...Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range jobs {
		if _, exists := r.jobs[job.Type()]; exists {
			r.l.Warn("job already registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
			continue
		}
		r.jobs[job.Type()] = job
		r.l.Debug("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
	}
}

func (r *RedisQueue) job(msgType string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[msgType]
	return j, ok
}

// Start recovers this consumer's unsettled messages and starts the workers and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	recovered, err := r.recover(pingCtx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	r.wg.Add(1)
	go r.promoter(ctx)

	r.l.Info("job queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.Int("jobs", len(r.jobs)),
		logger.Int("recovered", recovered),
		logger.String("consumer", r.consumerID),
		logger.String("addr", r.client.Options().Addr))
	return nil
}

func (r *RedisQueue) recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := r.client.LMove(ctx, r.processingKey(), r.messagesKey(), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover in-flight: %w", err)
		}
		n++
	}
}

// Stop cancels the workers and waits for them. Messages interrupted mid-run stay in the
// processing list and are recovered on the next Start.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait for queue workers: %w", ctx.Err())
	case <-done:
		r.l.Info("job queue stopped")
		return nil
	}
}

// Enqueue stores a message for a registered job type.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	if _, ok := r.job(msgType); !ok {
		return fmt.Errorf("no job registered for type %q", msgType)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.messagesKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		raw, err := r.client.BLMove(ctx, r.messagesKey(), r.processingKey(), "RIGHT", "LEFT", r.cfg.PollInterval).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return
		case err != nil:
			r.l.Error("queue poll failed", logger.Int("worker", id), logger.Error(err))
			sleep(ctx, r.cfg.PollInterval)
			continue
		}
		r.settle(ctx, raw)
	}
}

// settle runs one taken message and records its outcome.
func (r *RedisQueue) settle(ctx context.Context, raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.l.Error("malformed queue message", logger.Error(err))
		r.finish(ctx, raw, func(ctx context.Context, p redis.Pipeliner) { r.pushDead(ctx, p, raw) })
		return
	}

	start := time.Now()
	err := r.run(ctx, msg)
	elapsed := time.Since(start)
	queueJobSeconds.WithLabelValues(msg.Type).Observe(elapsed.Seconds())

	if err != nil && ctx.Err() != nil {
		r.l.Warn("job interrupted by shutdown", logger.String("id", msg.ID), logger.String("type", msg.Type))
		return
	}
	if err == nil {
		queueJobsTotal.WithLabelValues(msg.Type, "ok").Inc()
		r.l.Info("job done",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Int("attempt", msg.Attempts+1),
			logger.Duration("elapsed", elapsed))
		r.finish(ctx, raw, nil)
		return
	}

	next, dead := r.failed(msg, err)
	data, mErr := json.Marshal(next)
	if mErr != nil {
		r.l.Error("marshal failed message", logger.Error(mErr))
		return
	}
	if dead {
		queueJobsTotal.WithLabelValues(msg.Type, "dead").Inc()
		r.l.Error("job dead-lettered",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Int("attempts", next.Attempts),
			logger.Error(err))
		r.finish(ctx, raw, func(ctx context.Context, p redis.Pipeliner) { r.pushDead(ctx, p, string(data)) })
		return
	}

	due := time.Now().Add(r.cfg.retryDelay(next.Attempts))
	queueJobsTotal.WithLabelValues(msg.Type, "retry").Inc()
	r.l.Warn("job failed, retry scheduled",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", next.Attempts),
		logger.String("retry_at", due.Format(time.RFC3339)),
		logger.Error(err))
	r.finish(ctx, raw, func(ctx context.Context, p redis.Pipeliner) {
		p.ZAdd(ctx, r.retryKey(), redis.Z{Score: float64(due.UnixMilli()), Member: data})
	})
}

// run invokes the job with a timeout. Panics are returned as errors.
func (r *RedisQueue) run(ctx context.Context, msg Message) (err error) {
	job, ok := r.job(msg.Type)
	if !ok {
		return fmt.Errorf("no job registered for type %q", msg.Type)
	}
	jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), rec)
		}
	}()
	return job.Handle(jobCtx, msg.Payload)
}

// failed returns the message to store after err and whether it goes to the dead-letter list.
func (r *RedisQueue) failed(msg Message, err error) (Message, bool) {
	msg.Attempts++
	msg.LastError = err.Error()
	return msg, msg.Attempts > r.cfg.RetryLimit
}

// finish removes raw from the processing list together with the extra writes in one transaction.
func (r *RedisQueue) finish(ctx context.Context, raw string, extra func(context.Context, redis.Pipeliner)) {
	// settle must complete even when shutdown races it
	ctx = context.WithoutCancel(ctx)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if extra != nil {
			extra(ctx, p)
		}
		p.LRem(ctx, r.processingKey(), 1, raw)
		return nil
	})
	if err != nil {
		r.l.Error("settle message failed", logger.Error(err))
	}
}

func (r *RedisQueue) pushDead(ctx context.Context, p redis.Pipeliner, data string) {
	p.LPush(ctx, r.deadLetterKey(), data)
	p.LTrim(ctx, r.deadLetterKey(), 0, int64(r.cfg.DeadLetterCap-1))
}

// promoter moves due retries back onto the pending list.
func (r *RedisQueue) promoter(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(r.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.promoteDue(ctx, time.Now()); err != nil && ctx.Err() == nil {
				r.l.Error("promote retries failed", logger.Error(err))
			}
		}
	}
}

func (r *RedisQueue) promoteDue(ctx context.Context, now time.Time) error {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("zrangebyscore: %w", err)
	}
	for _, m := range due {
		// only the replica that removes the entry requeues it
		removed, err := r.client.ZRem(ctx, r.retryKey(), m).Result()
		if err != nil {
			return fmt.Errorf("zrem: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.messagesKey(), m).Err(); err != nil {
			return fmt.Errorf("lpush retry: %w", err)
		}
	}
	return nil
}

// Stats counts pending, in-flight (this consumer), retrying and dead-lettered messages.
func (r *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	var queued, inFlight, retrying, dead *redis.IntCmd
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		queued = p.LLen(ctx, r.messagesKey())
		inFlight = p.LLen(ctx, r.processingKey())
		retrying = p.ZCard(ctx, r.retryKey())
		dead = p.LLen(ctx, r.deadLetterKey())
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{
		Queued:     queued.Val(),
		InFlight:   inFlight.Val(),
		Retrying:   retrying.Val(),
		DeadLetter: dead.Val(),
	}, nil
}

// DeadLetters returns up to n messages that exhausted their retries, newest first.
func (r *RedisQueue) DeadLetters(ctx context.Context, n int64) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, r.deadLetterKey(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange dlq: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, s := range raw {
		var m Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			r.l.Warn("skip malformed dead letter", logger.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *RedisQueue) messagesKey() string   { return r.prefix + ":messages" }
func (r *RedisQueue) processingKey() string { return r.prefix + ":processing:" + r.consumerID }
func (r *RedisQueue) retryKey() string      { return r.prefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.prefix + ":dlq" }

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

var (
	queueJobsTotal  *prometheus.CounterVec
	queueJobSeconds *prometheus.HistogramVec
	queueOnce       sync.Once
)

func initQueueMetricsOnce() {
	queueOnce.Do(func() {
		queueJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coveredcall_queue_jobs_total",
			Help: "Job runs by type and outcome (ok, retry, dead)",
		}, []string{"type", "result"})
		queueJobSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coveredcall_queue_job_seconds",
			Help:    "Job run duration",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
		}, []string{"type"})
	})
}
