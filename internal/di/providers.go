package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"CoveredCall/internal/domain/models"
	"CoveredCall/internal/domain/repository"
	"CoveredCall/internal/handler/api"
	internalrepo "CoveredCall/internal/repository"
	"CoveredCall/internal/service/polygon"
	"CoveredCall/internal/service/ratelimit"
	"CoveredCall/internal/services/training"
	"CoveredCall/internal/usecase"
	pkgcache "CoveredCall/pkg/cache"
	pkgch "CoveredCall/pkg/clickhouse"
	"CoveredCall/pkg/config"
	xhttp "CoveredCall/pkg/http"
	pkgkafka "CoveredCall/pkg/kafka"
	applogger "CoveredCall/pkg/logger"
	"CoveredCall/pkg/metrics"
	pkgpg "CoveredCall/pkg/postgres"
	"CoveredCall/pkg/queue"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideEventPublisher falls back to a no-op publisher without Kafka.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideLogger builds the application logger. Repeated warnings and errors are
// shipped as digests on the events topic when Kafka is configured.
func ProvideLogger(cfg *config.Config, events repository.EventPublisher) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "coveredcall"})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if kp, ok := events.(*internalrepo.KafkaPublisher); ok {
		l.EnableDigests(applogger.DigestConfig{
			Interval:   time.Minute,
			MaxEntries: 100,
			Publisher:  kp,
		})
	}
	return l, l.DisableDigests, nil
}

func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideRedis connects to Redis, or returns nil when it is disabled.
func ProvideRedis(cfg *config.Config) (*pkgcache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache layers an in-process LRU over Redis, or uses memory alone.
func ProvideCache(cfg *config.Config, rc *pkgcache.RedisCache) (pkgcache.Service, func()) {
	if rc == nil {
		mc := pkgcache.NewMemoryCache()
		return mc, func() { _ = mc.Close() }
	}
	lc := pkgcache.NewLayeredCache(rc, pkgcache.WithL1Size(cfg.Redis.L1Size), pkgcache.WithL1TTL(cfg.Redis.L1TTL))
	return lc, func() { _ = lc.CloseL1() }
}

func ProvideLocker(c pkgcache.Service) repository.Locker {
	return c
}

// ProvideModelStore keeps models in Redis when enabled. Without Redis they get their own
// unbounded memory cache so prediction entries cannot evict them.
func ProvideModelStore(c pkgcache.Service, rc *pkgcache.RedisCache) (repository.ModelStore, func()) {
	if rc != nil {
		return internalrepo.NewCacheModelStore(c), func() {}
	}
	mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryUnbounded())
	return internalrepo.NewCacheModelStore(mc), func() { _ = mc.Close() }
}

func ProvidePredictionCache(c pkgcache.Service, cfg *config.Config, l *applogger.Logger) repository.PredictionCache {
	return internalrepo.NewCachePredictions(c, cfg.Redis.PredictionTTL, l)
}

// ProvidePostgres opens and migrates the database, or returns nil for the memory backend.
func ProvidePostgres(cfg *config.Config) (*pkgpg.Client, func(), error) {
	if cfg.Storage.Backend != "postgres" {
		return nil, func() {}, nil
	}
	pc := cfg.Postgres
	client, err := pkgpg.NewClient(
		pkgpg.WithHost(pc.Host),
		pkgpg.WithPort(pc.Port),
		pkgpg.WithDatabase(pc.Database),
		pkgpg.WithCredentials(pc.User, pc.Password),
		pkgpg.WithSSLMode(pc.SSLMode),
		pkgpg.WithPool(pc.MaxOpenConns, pc.MaxIdleConns, pc.ConnMaxLifetime),
		pkgpg.WithDebug(cfg.Log.Level == "debug"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Migrate(ctx, internalrepo.PostgresModels()...); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvidePriceHistory(pg *pkgpg.Client, cfg *config.Config) repository.PriceHistory {
	if pg == nil {
		return internalrepo.NewMemoryPriceHistory()
	}
	return internalrepo.NewPGPriceHistory(pg, cfg.Postgres.BatchSize)
}

func ProvideOptionQuotes(pg *pkgpg.Client, cfg *config.Config) repository.OptionQuoteStore {
	if pg == nil {
		return internalrepo.NewMemoryOptionQuotes()
	}
	return internalrepo.NewPGOptionQuotes(pg, cfg.Postgres.BatchSize)
}

func ProvideDeviations(pg *pkgpg.Client) repository.DeviationStore {
	if pg == nil {
		return internalrepo.NewMemoryDeviations()
	}
	return internalrepo.NewPGDeviations(pg)
}

// ProvideClickHouseClient connects and creates the journal schema, or returns nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	chc := cfg.ClickHouse
	client, err := pkgch.Open(pkgch.Config{
		Host:             chc.Host,
		Port:             chc.Port,
		Database:         chc.Database,
		User:             chc.User,
		Password:         chc.Password,
		UseHTTP:          chc.UseHTTP,
		AsyncInsert:      chc.AsyncInsert,
		WaitForAsync:     chc.WaitForAsync,
		DialTimeout:      chc.DialTimeout,
		ReadTimeout:      chc.ReadTimeout,
		MaxExecutionTime: chc.MaxExecutionTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Migrate(ctx, internalrepo.JournalSchema(chc.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvideJournal(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.Journal {
	if ch == nil {
		return internalrepo.NoopJournal{}
	}
	j := internalrepo.NewCHJournal(ch)
	j.SetLogger(l)
	return j
}

// ProvidePolygon shares one limiter between the stock and options clients so the
// per-minute budget holds across both.
func ProvidePolygon(cfg *config.Config, l *applogger.Logger) *polygon.Client {
	return polygon.New(cfg.Polygon.APIKey,
		polygon.WithBaseURL(cfg.Polygon.BaseURL),
		polygon.WithHTTPClient(xhttp.NewClient(
			xhttp.WithTimeout(cfg.Polygon.Timeout),
			xhttp.WithRetry(cfg.Polygon.Retries, 2*time.Second),
			xhttp.WithUserAgent(cfg.Polygon.UserAgent),
		)),
		polygon.WithRateLimit(ratelimit.New(), cfg.Polygon.RequestsPerMinute),
		polygon.WithLogger(l),
	)
}

func ProvidePriceSource(c *polygon.Client) repository.PriceSource   { return c }
func ProvideOptionSource(c *polygon.Client) repository.OptionSource { return c }

func ProvideTrainer() *training.Trainer {
	return training.NewTrainer(training.DefaultConfig())
}

func ProvideModelsUseCase(
	history repository.PriceHistory,
	store repository.ModelStore,
	preds repository.PredictionCache,
	events repository.EventPublisher,
	locker repository.Locker,
	m repository.Metrics,
	trainer *training.Trainer,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.ModelsUseCase {
	return usecase.NewModelsUseCase(history, store, preds, events, locker, m, trainer, cfg.Strategy, l)
}

func ProvideBacktestUseCase(
	history repository.PriceHistory,
	store repository.ModelStore,
	quotes repository.OptionQuoteStore,
	deviations repository.DeviationStore,
	journal repository.Journal,
	events repository.EventPublisher,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(history, store, quotes, deviations, journal, events, m, cfg.Strategy, l)
}

func ProvidePredictUseCase(
	history repository.PriceHistory,
	store repository.ModelStore,
	deviations repository.DeviationStore,
	preds repository.PredictionCache,
	journal repository.Journal,
	events repository.EventPublisher,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.PredictUseCase {
	return usecase.NewPredictUseCase(history, store, deviations, preds, journal, events, m, cfg.Strategy, l)
}

func ProvideStocksUseCase(source repository.PriceSource, history repository.PriceHistory, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.StocksUseCase {
	return usecase.NewStocksUseCase(source, history, m, cfg.Strategy, l)
}

func ProvideOptionsUseCase(source repository.OptionSource, history repository.PriceHistory, quotes repository.OptionQuoteStore, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.OptionsUseCase {
	return usecase.NewOptionsUseCase(source, history, quotes, m, cfg.Strategy, l)
}

func ProvideDeviationsUseCase(history repository.PriceHistory, deviations repository.DeviationStore, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.DeviationsUseCase {
	return usecase.NewDeviationsUseCase(history, deviations, m, cfg.Strategy, l)
}

// ProvideJobQueue builds the Redis queue with every batch job registered. It is nil when
// the queue is disabled; the caller starts it.
func ProvideJobQueue(
	cfg *config.Config,
	rc *pkgcache.RedisCache,
	l *applogger.Logger,
	models *usecase.ModelsUseCase,
	stocks *usecase.StocksUseCase,
	options *usecase.OptionsUseCase,
	deviations *usecase.DeviationsUseCase,
) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	qc := cfg.Queue
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:       qc.Workers,
		RetryLimit:    qc.RetryLimit,
		RetryDelay:    qc.RetryDelay,
		JobTimeout:    qc.JobTimeout,
		DeadLetterCap: qc.DeadLetterCap,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	q.RegisterJobs(
		usecase.NewUpdateModelsJob(models),
		usecase.NewUpdateStockDataJob(stocks),
		usecase.NewUpdateOptionsDataJob(options),
		usecase.NewUpdateDeviationsJob(deviations),
	)
	return q
}

func ProvideHandler(
	l *applogger.Logger,
	models *usecase.ModelsUseCase,
	backtest *usecase.BacktestUseCase,
	predict *usecase.PredictUseCase,
	stocks *usecase.StocksUseCase,
	options *usecase.OptionsUseCase,
	deviations *usecase.DeviationsUseCase,
	q *queue.RedisQueue,
) *api.StrategyEchoHandler {
	h := api.NewStrategyEchoHandler(l, models, backtest, predict, stocks, options, deviations)
	if q != nil {
		h.SetQueue(q)
	}
	return h
}

// ProvideKafkaConsumer listens for model.updated events from every replica. It is nil
// without brokers or when the consumer is disabled; the caller starts it.
func ProvideKafkaConsumer(cfg *config.Config, preds repository.PredictionCache, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	kc := cfg.Kafka.Consumer
	if len(cfg.Kafka.Brokers) == 0 || !kc.Enabled {
		return nil, nil
	}
	group := kc.GroupID
	if group == "" {
		host, _ := os.Hostname()
		group = "coveredcall-cache-" + host
	}
	consumer, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupID:     group,
		StartOffset: kc.AutoOffsetReset,
		Workers:     kc.Workers,
		RetryMax:    kc.RetryMax,
		BackoffMin:  kc.BackoffMin,
		BackoffMax:  kc.BackoffMax,
		DLQTopic:    kc.DLQTopic,
	}, l)
	if err != nil {
		return nil, err
	}
	inv := usecase.NewCacheInvalidator(preds, l)
	consumer.On(models.EventModelUpdated, func(ctx context.Context, rec pkgkafka.Record) error {
		return inv.Handle(ctx, rec.Value)
	})
	return consumer, nil
}
