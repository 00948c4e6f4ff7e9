package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"CoveredCall/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors" default:"true"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	} `yaml:"log"`
	Storage struct {
		Backend string `yaml:"backend" default:"postgres" validate:"oneof=postgres memory"`
	} `yaml:"storage"`
	Postgres struct {
		Host            string        `yaml:"host" default:"localhost"`
		Port            int           `yaml:"port" default:"5432"`
		Database        string        `yaml:"database" default:"coveredcall"`
		User            string        `yaml:"user" default:"postgres"`
		Password        string        `yaml:"password"`
		SSLMode         string        `yaml:"ssl_mode" default:"disable"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"1h"`
		BatchSize       int           `yaml:"batch_size" default:"500"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"coveredcall"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"10s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled       bool          `yaml:"enabled"`
		Addr          string        `yaml:"addr" default:"localhost:6379"`
		Password      string        `yaml:"password"`
		DB            int           `yaml:"db"`
		Prefix        string        `yaml:"prefix" default:"coveredcall"`
		PoolSize      int           `yaml:"pool_size" default:"10" validate:"gte=1"`
		PredictionTTL time.Duration `yaml:"prediction_ttl" default:"1h"`
		// L1 bounds the in-process layer in front of Redis.
		L1Size int           `yaml:"l1_size" default:"256"`
		L1TTL  time.Duration `yaml:"l1_ttl" default:"5m"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"coveredcall.events"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			// Enabled starts the prediction cache invalidation listener in serve mode.
			Enabled bool `yaml:"enabled" default:"true"`
			// GroupID defaults to a per-host group so every replica sees every event.
			GroupID         string        `yaml:"group_id"`
			AutoOffsetReset string        `yaml:"auto_offset_reset" default:"latest" validate:"oneof=earliest latest"`
			Workers         int           `yaml:"workers" default:"1" validate:"gt=0"`
			RetryMax        int           `yaml:"retry_max" default:"3"`
			BackoffMin      time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax      time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic        string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Queue struct {
		Enabled       bool          `yaml:"enabled"`
		Workers       int           `yaml:"workers" default:"2" validate:"gt=0"`
		RetryLimit    int           `yaml:"retry_limit" default:"3" validate:"gte=0"`
		RetryDelay    time.Duration `yaml:"retry_delay" default:"30s"`
		JobTimeout    time.Duration `yaml:"job_timeout" default:"30m"`
		DeadLetterCap int           `yaml:"dead_letter_cap" default:"1000"`
	} `yaml:"queue"`
	Polygon struct {
		APIKey            string        `yaml:"api_key"`
		BaseURL           string        `yaml:"base_url" default:"https://api.polygon.io" validate:"url"`
		RequestsPerMinute int           `yaml:"requests_per_minute" default:"5" validate:"gt=0"`
		Timeout           time.Duration `yaml:"timeout" default:"30s"`
		// Retries counts attempts on 429 and gateway errors.
		Retries   int    `yaml:"retries" default:"3" validate:"gte=1,lte=10"`
		UserAgent string `yaml:"user_agent" default:"CoveredCall/1.0"`
	} `yaml:"polygon"`
	Strategy Strategy `yaml:"strategy"`
}

// Strategy holds the trading parameters shared by every use case.
type Strategy struct {
	Tickers         []string `yaml:"tickers" default:"[\"AMZN\",\"MSFT\",\"TSLA\",\"GOOG\",\"NVDA\",\"META\",\"AAPL\",\"QQQ\",\"SPY\"]" validate:"min=1,dive,required"`
	OptionsTickers  []string `yaml:"options_tickers" default:"[\"QQQ\",\"SPY\"]" validate:"dive,required"`
	Features        []string `yaml:"features"`
	BaseDeviation   float64  `yaml:"base_deviation" default:"5" validate:"gte=0"`
	DeviationBuffer int      `yaml:"deviation_buffer" default:"1" validate:"gte=0"`
	UpperThreshold  float64  `yaml:"upper_threshold" default:"0.6" validate:"gte=0,lte=1"`
	LowerThreshold  float64  `yaml:"lower_threshold" default:"0.35" validate:"gte=0,lte=1"`
	StopLoss        float64  `yaml:"stop_loss" default:"200" validate:"gt=0"`
	BeginningDate   string   `yaml:"beginning_date" default:"2023-05-10" validate:"datetime=2006-01-02"`
	RecentWindow    int      `yaml:"recent_window" default:"30" validate:"gt=0"`
	SMAPeriod       int      `yaml:"sma_period" default:"20" validate:"gt=1"`
	ChainWidth      float64  `yaml:"chain_width" default:"6" validate:"gt=0"`
	ChainStep       float64  `yaml:"chain_step" default:"1" validate:"gt=0"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, decodes YAML on top and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("POLYGON_API_KEY"); v != "" {
		c.Polygon.APIKey = v
	}
	if v := getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := getenv("DB_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Postgres.Port = p
		}
	}
	if v := getenv("DB_NAME"); v != "" {
		c.Postgres.Database = v
	}
	if v := getenv("DB_USER"); v != "" {
		c.Postgres.User = v
	}
	if v := getenv("DB_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("TICKERS"); v != "" {
		c.Strategy.Tickers = util.SplitList(v)
	}
	if v := getenv("OPTIONS_TICKERS"); v != "" {
		c.Strategy.OptionsTickers = util.SplitList(v)
	}
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Strategy.LowerThreshold > c.Strategy.UpperThreshold {
		return fmt.Errorf("strategy.lower_threshold %.2f exceeds upper_threshold %.2f", c.Strategy.LowerThreshold, c.Strategy.UpperThreshold)
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	return nil
}

// Beginning returns the parsed beginning_date.
func (s Strategy) Beginning() time.Time {
	t, _ := time.Parse("2006-01-02", s.BeginningDate)
	return t
}
