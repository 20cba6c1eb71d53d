// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, DocStore, Ranking, Search, Redis, Postgres, Kafka).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Index    IndexConfig    `yaml:"index"`
	DocStore DocStoreConfig `yaml:"docStore"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Search   SearchConfig   `yaml:"search"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the searcher service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// IndexConfig controls where dictionary and postings files live and which
// variant the indexer builds.
type IndexConfig struct {
	DataDir  string `yaml:"dataDir"`
	Stemming bool   `yaml:"stemming"`
}

// DocStoreConfig controls the partitioned document store. Partitions must
// match the count the corpus was sharded into at index-build time; it is a
// deployment constant, never derived from the corpus at query time.
type DocStoreConfig struct {
	Dir        string `yaml:"dir"`
	Partitions int    `yaml:"partitions"`
	Preload    bool   `yaml:"preload"`
}

// RankingConfig holds the scoring constants and blend weights. The defaults
// reflect the reference corpus snapshot; they are tunable per deployment but
// never recomputed from the corpus at runtime.
type RankingConfig struct {
	K1           float64 `yaml:"k1"`
	B            float64 `yaml:"b"`
	CorpusSize   int     `yaml:"corpusSize"`
	AvgDocLength float64 `yaml:"avgDocLength"`
	WeightBM25   float64 `yaml:"weightBM25"`
	WeightHeader float64 `yaml:"weightHeader"`
	WeightQuery  float64 `yaml:"weightQuery"`
}

// Validate rejects constants that cannot form a convex score blend.
func (r RankingConfig) Validate() error {
	if r.K1 <= 0 {
		return fmt.Errorf("ranking: k1 must be positive, got %v", r.K1)
	}
	if r.B < 0 || r.B > 1 {
		return fmt.Errorf("ranking: b must be in [0,1], got %v", r.B)
	}
	if r.WeightBM25 < 0 || r.WeightHeader < 0 || r.WeightBM25+r.WeightHeader > 1 {
		return fmt.Errorf("ranking: weightBM25=%v weightHeader=%v do not leave a valid cosine weight", r.WeightBM25, r.WeightHeader)
	}
	if r.WeightQuery < 0 || r.WeightQuery > 1 {
		return fmt.Errorf("ranking: weightQuery must be in [0,1], got %v", r.WeightQuery)
	}
	if r.CorpusSize <= 0 {
		return fmt.Errorf("ranking: corpusSize must be positive, got %v", r.CorpusSize)
	}
	if r.AvgDocLength <= 0 {
		return fmt.Errorf("ranking: avgDocLength must be positive, got %v", r.AvgDocLength)
	}
	return nil
}

// SearchConfig controls query execution limits and the optional semantic
// expansion source.
type SearchConfig struct {
	DefaultLimit       int    `yaml:"defaultLimit"`
	MaxResults         int    `yaml:"maxResults"`
	ScoringConcurrency int    `yaml:"scoringConcurrency"`
	StopWordsFile      string `yaml:"stopWordsFile"`
	ExpansionFile      string `yaml:"expansionFile"`
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// PostgresConfig holds PostgreSQL connection parameters for the query
// analytics sink.
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
	CorpusTokens    string `yaml:"corpusTokens"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Ranking.Validate(); err != nil {
		return nil, err
	}
	if cfg.DocStore.Partitions <= 0 {
		return nil, fmt.Errorf("docStore: partitions must be positive, got %d", cfg.DocStore.Partitions)
	}
	return cfg, nil
}

// defaultConfig returns a Config with defaults matching the reference corpus
// deployment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			DataDir:  "data/index",
			Stemming: false,
		},
		DocStore: DocStoreConfig{
			Dir:        "data/docs",
			Partitions: 6,
			Preload:    false,
		},
		Ranking: RankingConfig{
			K1:           1.2,
			B:            0.865,
			CorpusSize:   472522,
			AvgDocLength: 250,
			WeightBM25:   0.6,
			WeightHeader: 0.05,
			WeightQuery:  0.85,
		},
		Search: SearchConfig{
			DefaultLimit:       50,
			MaxResults:         1000,
			ScoringConcurrency: 8,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searchengine",
			User:            "searchengine",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "searchengine-group",
			Topics: KafkaTopics{
				CorpusTokens:    "corpus-tokens",
				AnalyticsEvents: "analytics-events",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SE_INDEX_DATA_DIR"); v != "" {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("SE_INDEX_STEMMING"); v != "" {
		cfg.Index.Stemming = v == "true" || v == "1"
	}
	if v := os.Getenv("SE_DOCSTORE_DIR"); v != "" {
		cfg.DocStore.Dir = v
	}
	if v := os.Getenv("SE_DOCSTORE_PARTITIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DocStore.Partitions = n
		}
	}
	if v := os.Getenv("SE_DOCSTORE_PRELOAD"); v != "" {
		cfg.DocStore.Preload = v == "true" || v == "1"
	}
	if v := os.Getenv("SE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
