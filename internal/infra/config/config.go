package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "configs/config.yaml"

// Supported values of LLMConfig.Provider.
const (
	ProviderChatGPT   = "chatgpt"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderEcho      = "echo"
)

// Supported values of DeckConfig.Segmenter.
const (
	SegmenterHeading = "heading"
	SegmenterLLM     = "llm"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http" envPrefix:"HTTP_"`
	LLM      LLMConfig      `yaml:"llm" envPrefix:"LLM_"`
	Summary  SummaryConfig  `yaml:"summary" envPrefix:"SUMMARY_"`
	Deck     DeckConfig     `yaml:"deck" envPrefix:"DECK_"`
	Storage  StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Cache    CacheConfig    `yaml:"cache" envPrefix:"CACHE_"`
	QueryLog QueryLogConfig `yaml:"queryLog" envPrefix:"QUERY_LOG_"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address" env:"ADDRESS"`
	ReadTimeout  time.Duration   `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration   `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	AllowOrigins []string        `yaml:"allowOrigins" env:"ALLOW_ORIGINS" envSeparator:","`
	RateLimit    RateLimitConfig `yaml:"rateLimit" envPrefix:"RATE_LIMIT_"`
}

// RateLimitConfig drives the per-IP request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" env:"ENABLED"`
	RequestsPerMinute int  `yaml:"requestsPerMinute" env:"RPM"`
	Burst             int  `yaml:"burst" env:"BURST"`
}

// LLMConfig selects and configures the chat model provider.
type LLMConfig struct {
	Provider    string        `yaml:"provider" env:"PROVIDER"`
	APIKey      string        `yaml:"apiKey" env:"API_KEY"`
	BaseURL     string        `yaml:"baseUrl" env:"BASE_URL"`
	Model       string        `yaml:"model" env:"MODEL"`
	Temperature float32       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"maxTokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	StatsWindow time.Duration `yaml:"statsWindow" env:"STATS_WINDOW"`
}

// SummaryConfig defines output limits for the summarizer domain.
type SummaryConfig struct {
	MaxSummaryLen     int    `yaml:"maxSummaryLen" env:"MAX_LEN"`
	MaxTldrLen        int    `yaml:"maxTldrLen" env:"MAX_TLDR_LEN"`
	DefaultPrompt     string `yaml:"defaultPrompt" env:"DEFAULT_PROMPT"`
	TopicTokenBudget  int    `yaml:"topicTokenBudget" env:"TOPIC_TOKEN_BUDGET"`
	Encoding          string `yaml:"encoding" env:"ENCODING"`
	MaxParallelChunks int    `yaml:"maxParallelChunks" env:"MAX_PARALLEL_CHUNKS"`
}

// DeckConfig controls ingest and query behaviour.
type DeckConfig struct {
	MaxFileBytes      int64         `yaml:"maxFileBytes" env:"MAX_FILE_BYTES"`
	MaxPromptsPerPage int           `yaml:"maxPromptsPerPage" env:"MAX_PROMPTS_PER_PAGE"`
	UpstreamTimeout   time.Duration `yaml:"upstreamTimeout" env:"UPSTREAM_TIMEOUT"`
	Segmenter         string        `yaml:"segmenter" env:"SEGMENTER"`
	PdftotextFallback bool          `yaml:"pdftotextFallback" env:"PDFTOTEXT_FALLBACK"`
}

// StorageConfig points at the S3-compatible bucket source decks are archived in.
type StorageConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"accessKey" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secretKey" env:"SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	Region    string `yaml:"region" env:"REGION"`
}

// CacheConfig enables the shared Valkey summary store.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	Addr    string        `yaml:"addr" env:"ADDR"`
	Prefix  string        `yaml:"prefix" env:"PREFIX"`
	TTL     time.Duration `yaml:"ttl" env:"TTL"`
}

// QueryLogConfig configures where answered queries are recorded.
type QueryLogConfig struct {
	DSN      string `yaml:"dsn" env:"DSN"`
	MaxConns int32  `yaml:"maxConns" env:"MAX_CONNS"`
	MinConns int32  `yaml:"minConns" env:"MIN_CONNS"`
	Capacity int    `yaml:"capacity" env:"CAPACITY"`
	Limit    int    `yaml:"limit" env:"LIMIT"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(defaultConfigPath); err == nil {
		if err := hydrateFromFile(cfg, defaultConfigPath); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// applyDerivedDefaults runs after every source is merged. Without an API key the
// offline echo provider is used so the service still starts.
func (c *Config) applyDerivedDefaults() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider != ProviderEcho && strings.TrimSpace(c.LLM.APIKey) == "" {
		c.LLM.Provider = ProviderEcho
	}
	c.Deck.Segmenter = strings.ToLower(strings.TrimSpace(c.Deck.Segmenter))
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		LLM: LLMConfig{
			Provider:    ProviderChatGPT,
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   800,
			Timeout:     60 * time.Second,
			StatsWindow: time.Hour,
		},
		Summary: SummaryConfig{
			MaxSummaryLen:     1200,
			MaxTldrLen:        240,
			DefaultPrompt:     "Summarize this slide.",
			TopicTokenBudget:  6000,
			MaxParallelChunks: 4,
		},
		Deck: DeckConfig{
			MaxFileBytes:      50 << 20,
			MaxPromptsPerPage: 32,
			UpstreamTimeout:   90 * time.Second,
			Segmenter:         SegmenterHeading,
		},
		Cache: CacheConfig{
			Prefix: "brainybinder",
		},
		QueryLog: QueryLogConfig{
			MaxConns: 4,
			Capacity: 200,
			Limit:    50,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	switch c.LLM.Provider {
	case ProviderChatGPT, ProviderOpenAI, ProviderAnthropic, ProviderEcho:
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	if c.LLM.Provider != ProviderEcho && strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.Summary.MaxSummaryLen <= 0 {
		return errors.New("summary.maxSummaryLen must be positive")
	}
	if c.Summary.MaxTldrLen <= 0 {
		return errors.New("summary.maxTldrLen must be positive")
	}
	if strings.TrimSpace(c.Summary.DefaultPrompt) == "" {
		return errors.New("summary.defaultPrompt cannot be empty")
	}
	if c.Summary.TopicTokenBudget <= 0 {
		return errors.New("summary.topicTokenBudget must be positive")
	}
	if c.Deck.MaxFileBytes <= 0 {
		return errors.New("deck.maxFileBytes must be positive")
	}
	if c.Deck.MaxPromptsPerPage <= 0 {
		return errors.New("deck.maxPromptsPerPage must be positive")
	}
	if c.Deck.UpstreamTimeout <= 0 {
		return errors.New("deck.upstreamTimeout must be positive")
	}
	switch c.Deck.Segmenter {
	case SegmenterHeading, SegmenterLLM:
	default:
		return fmt.Errorf("deck.segmenter %q is not supported", c.Deck.Segmenter)
	}
	if c.Storage.Enabled && (strings.TrimSpace(c.Storage.Endpoint) == "" || strings.TrimSpace(c.Storage.Bucket) == "") {
		return errors.New("storage.endpoint and storage.bucket are required when storage is enabled")
	}
	if c.Cache.Enabled && strings.TrimSpace(c.Cache.Addr) == "" {
		return errors.New("cache.addr cannot be empty when the valkey cache is enabled")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl cannot be negative")
	}
	if c.QueryLog.Limit <= 0 {
		return errors.New("queryLog.limit must be positive")
	}
	return nil
}
