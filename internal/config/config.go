// Package config loads and validates wikichron configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chronicleworks/wikichron/internal/logging"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Wiki    WikiConfig     `mapstructure:"wiki"`
	Crawl   CrawlConfig    `mapstructure:"crawl"`
	HTTP    HTTPConfig     `mapstructure:"http"`
	AI      AIConfig       `mapstructure:"ai"`
	Media   MediaConfig    `mapstructure:"media"`
	Storage StorageConfig  `mapstructure:"storage"`
	DB      DBConfig       `mapstructure:"db"`
	PubSub  PubSubConfig   `mapstructure:"pubsub"`
	Server  ServerConfig   `mapstructure:"server"`
	Logging logging.Config `mapstructure:"logging"`
}

// WikiConfig identifies the target wiki.
type WikiConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Subject   string `mapstructure:"subject"`
	UserAgent string `mapstructure:"user_agent"`
}

// CrawlConfig governs page discovery and scraping.
type CrawlConfig struct {
	MaxPages        int `mapstructure:"max_pages"`
	CheckpointEvery int `mapstructure:"checkpoint_every"`
	FrontierCap     int `mapstructure:"frontier_cap"`
	DelayMs         int `mapstructure:"delay_ms"`
}

// HTTPConfig configures HTTP client timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
	BackoffBaseMs  int `mapstructure:"backoff_base_ms"`
}

// AIConfig configures the analysis phase and its Bedrock invoker.
type AIConfig struct {
	ModelID            string `mapstructure:"model_id"`
	Region             string `mapstructure:"region"`
	MaxRetries         int    `mapstructure:"max_retries"`
	BackoffBaseSeconds int    `mapstructure:"backoff_base_seconds"`
	BatchSize          int    `mapstructure:"batch_size"`
	MaxBatchChars      int    `mapstructure:"max_batch_chars"`
	CheckpointEvery    int    `mapstructure:"checkpoint_every"`
}

// MediaConfig governs image download and media indexing.
type MediaConfig struct {
	MaxImageBytes   int64 `mapstructure:"max_image_bytes"`
	DelayMs         int   `mapstructure:"delay_ms"`
	CheckpointEvery int   `mapstructure:"checkpoint_every"`
}

// StorageConfig selects the artifact store backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // "local" or "gcs"
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// DBConfig enables the Postgres checkpoint store.
type DBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// PubSubConfig holds metadata for phase-completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the artifact/metrics HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WIKICHRON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("wiki.user_agent", "wikichron/1.0 (research; +https://github.com/chronicleworks/wikichron)")
	v.SetDefault("crawl.max_pages", 3000)
	v.SetDefault("crawl.checkpoint_every", 50)
	v.SetDefault("crawl.frontier_cap", 500)
	v.SetDefault("crawl.delay_ms", 1000)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base_ms", 5000)
	v.SetDefault("ai.model_id", "anthropic.claude-sonnet-4-20250514-v1:0")
	v.SetDefault("ai.region", "us-east-1")
	v.SetDefault("ai.max_retries", 5)
	v.SetDefault("ai.backoff_base_seconds", 3)
	v.SetDefault("ai.batch_size", 5)
	v.SetDefault("ai.max_batch_chars", 700000)
	v.SetDefault("ai.checkpoint_every", 5)
	v.SetDefault("media.max_image_bytes", 10*1024*1024)
	v.SetDefault("media.delay_ms", 200)
	v.SetDefault("media.checkpoint_every", 50)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("server.port", 8000)
	v.SetDefault("logging.file", "wikichron.log")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Wiki.BaseURL == "" {
		return fmt.Errorf("wiki.base_url must be set")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.AI.BatchSize <= 0 {
		return fmt.Errorf("ai.batch_size must be > 0")
	}
	if c.AI.MaxBatchChars <= 0 {
		return fmt.Errorf("ai.max_batch_chars must be > 0")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for local storage")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for gcs storage")
		}
	default:
		return fmt.Errorf("storage.backend must be local or gcs, got %q", c.Storage.Backend)
	}
	if c.DB.Enabled && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set when pubsub is enabled")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// CrawlDelay is the politeness pause before each discovery/scrape fetch.
func (c Config) CrawlDelay() time.Duration {
	return time.Duration(c.Crawl.DelayMs) * time.Millisecond
}

// MediaDelay is the politeness pause before each media download.
func (c Config) MediaDelay() time.Duration {
	return time.Duration(c.Media.DelayMs) * time.Millisecond
}

// BackoffBase is the first retry delay for HTTP fetches.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.HTTP.BackoffBaseMs) * time.Millisecond
}

// AIBackoffBase is the first retry delay for model invocations.
func (c Config) AIBackoffBase() time.Duration {
	return time.Duration(c.AI.BackoffBaseSeconds) * time.Second
}
