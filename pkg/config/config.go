// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Search, Feedback, etc.).
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest  string `yaml:"documentIngest"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls the indexing engine's memory threshold and flush
// interval.
type IndexerConfig struct {
	DataDir        string        `yaml:"dataDir"`
	SegmentMaxSize int64         `yaml:"segmentMaxSize"`
	FlushInterval  time.Duration `yaml:"flushInterval"`
}

// SearchConfig controls request-level limits.
type SearchConfig struct {
	// Timeout bounds one feedback search at the collaborator boundary.
	Timeout          time.Duration `yaml:"timeout"`
	WatchSegments    bool          `yaml:"watchSegments"`
	AnalyticsBuffer  int           `yaml:"analyticsBuffer"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	// RateLimit is the number of searches a client may issue per
	// RateWindow; zero disables limiting.
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
}

// FeedbackConfig holds the pseudo-relevance feedback parameters. Mu is the
// Dirichlet prior shared by the baseline model, the feedback model and the
// reranker.
type FeedbackConfig struct {
	Mu           float64 `yaml:"mu"`
	DefaultTopN  int     `yaml:"defaultTopN"`
	DefaultTopK  int     `yaml:"defaultTopK"`
	DefaultAlpha float64 `yaml:"defaultAlpha"`
	MaxTopN      int     `yaml:"maxTopN"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values, and fails if the result does not validate.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks the feedback parameters and limits that the search path
// relies on.
func (c *Config) Validate() error {
	f := c.Feedback
	if f.Mu <= 0 || math.IsNaN(f.Mu) || math.IsInf(f.Mu, 0) {
		return fmt.Errorf("feedback.mu must be a positive finite number, got %v", f.Mu)
	}
	if f.DefaultAlpha < 0 || f.DefaultAlpha > 1 || math.IsNaN(f.DefaultAlpha) {
		return fmt.Errorf("feedback.defaultAlpha must be in [0,1], got %v", f.DefaultAlpha)
	}
	if f.DefaultTopN <= 0 {
		return fmt.Errorf("feedback.defaultTopN must be positive, got %d", f.DefaultTopN)
	}
	if f.DefaultTopK <= 0 {
		return fmt.Errorf("feedback.defaultTopK must be positive, got %d", f.DefaultTopK)
	}
	if f.MaxTopN < f.DefaultTopN {
		return fmt.Errorf("feedback.maxTopN (%d) must be >= defaultTopN (%d)", f.MaxTopN, f.DefaultTopN)
	}
	if c.Search.RateLimit > 0 && c.Search.RateWindow <= 0 {
		return fmt.Errorf("search.rateWindow must be positive when search.rateLimit is set")
	}
	if c.Indexer.DataDir == "" {
		return fmt.Errorf("indexer.dataDir is required")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "prfsearch",
			User:            "prfsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "prfsearch-group",
			Topics: KafkaTopics{
				DocumentIngest:  "document-ingest",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			DataDir:        "data/index",
			SegmentMaxSize: 64 * 1024 * 1024,
			FlushInterval:  30 * time.Second,
		},
		Search: SearchConfig{
			Timeout:          5 * time.Second,
			WatchSegments:    true,
			AnalyticsBuffer:  10000,
			SnapshotInterval: time.Minute,
			RateLimit:        600,
			RateWindow:       time.Minute,
		},
		Feedback: FeedbackConfig{
			Mu:           2000,
			DefaultTopN:  10,
			DefaultTopK:  5,
			DefaultAlpha: 0.5,
			MaxTopN:      1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// applyEnvOverrides reads PRF_* environment variables and overrides the
// corresponding config fields. Unparseable numeric values are ignored.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRF_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PRF_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PRF_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PRF_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PRF_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PRF_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PRF_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PRF_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PRF_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PRF_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("PRF_FEEDBACK_MU"); v != "" {
		if mu, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Feedback.Mu = mu
		}
	}
	if v := os.Getenv("PRF_FEEDBACK_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Feedback.DefaultTopK = k
		}
	}
	if v := os.Getenv("PRF_FEEDBACK_ALPHA"); v != "" {
		if alpha, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Feedback.DefaultAlpha = alpha
		}
	}
	if v := os.Getenv("PRF_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PRF_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
