// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Search provider identifiers accepted in search.provider.
const (
	ProviderSerpAPI = "serpapi"
	ProviderBing    = "bing"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Search   SearchConfig   `mapstructure:"search"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// FetchConfig governs the polite page fetcher.
type FetchConfig struct {
	UserAgent           string  `mapstructure:"user_agent"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
	MaxRetries          int     `mapstructure:"max_retries"`
	RateIntervalSeconds float64 `mapstructure:"rate_interval_seconds"`
}

// SearchConfig selects and configures the web search backend.
type SearchConfig struct {
	Provider     string `mapstructure:"provider"`
	SerpAPIKey   string `mapstructure:"serpapi_key"`
	BingKey      string `mapstructure:"bing_key"`
	BingEndpoint string `mapstructure:"bing_endpoint"`
}

// OpenAIConfig configures the generative-text and embedding backend.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// PipelineConfig holds run-level tuning knobs.
type PipelineConfig struct {
	TopNPerQuery    int     `mapstructure:"top_n_per_query"`
	MaxItems        int     `mapstructure:"max_items"`
	RecencyDays     int     `mapstructure:"recency_days"`
	DedupeThreshold float64 `mapstructure:"dedupe_threshold"`
	DryRun          bool    `mapstructure:"dry_run"`
}

// StorageConfig sets the root for run-scoped page artifacts.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// DBConfig controls access to the relational database. An empty DSN
// selects the in-memory run store.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRADEWATCH")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.user_agent", "TradewatchBot/1.0 (+contact: research@example.com)")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_interval_seconds", 1.0)
	v.SetDefault("search.provider", ProviderSerpAPI)
	v.SetDefault("search.bing_endpoint", "https://api.bing.microsoft.com/v7.0/search")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4.1-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.timeout_seconds", 60)
	v.SetDefault("openai.max_retries", 3)
	v.SetDefault("pipeline.top_n_per_query", 5)
	v.SetDefault("pipeline.max_items", 20)
	v.SetDefault("pipeline.recency_days", 60)
	v.SetDefault("pipeline.dedupe_threshold", 0.86)
	v.SetDefault("pipeline.dry_run", false)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("db.max_open_conns", 4)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Missing
// credentials for a selected backend are fatal here, before any run starts.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("fetch.user_agent must be set")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be > 0")
	}
	if c.Fetch.RateIntervalSeconds < 0 {
		return fmt.Errorf("fetch.rate_interval_seconds must be >= 0")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key must be set")
	}
	if c.Pipeline.DedupeThreshold <= 0 || c.Pipeline.DedupeThreshold > 1 {
		return fmt.Errorf("pipeline.dedupe_threshold must be in (0, 1]")
	}
	if c.Pipeline.MaxItems <= 0 {
		return fmt.Errorf("pipeline.max_items must be > 0")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must be set")
	}
	switch c.Search.Provider {
	case ProviderSerpAPI:
		if c.Search.SerpAPIKey == "" {
			return fmt.Errorf("search.serpapi_key must be set when search.provider is serpapi")
		}
	case ProviderBing:
		if c.Search.BingKey == "" {
			return fmt.Errorf("search.bing_key must be set when search.provider is bing")
		}
	default:
		return fmt.Errorf("search.provider must be one of serpapi, bing")
	}
	return nil
}

// FetchTimeout converts the configured per-request timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RateInterval converts the per-domain interval into a duration.
func (c Config) RateInterval() time.Duration {
	return time.Duration(c.Fetch.RateIntervalSeconds * float64(time.Second))
}
