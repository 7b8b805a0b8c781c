package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable consulted for the config path when
// no --config flag is given.
const EnvPath = "WORKMATCH_CONFIG"

const (
	defaultConfigPath   = "config.yaml"
	defaultAdzunaURL    = "https://api.adzuna.com/v1/api/jobs"
	defaultOpenAIURL    = "https://api.openai.com/v1"
	defaultOllamaURL    = "http://localhost:11434"
	defaultOpenAIModel  = "text-embedding-3-small"
	defaultOllamaModel  = "nomic-embed-text"
	defaultCollection   = "job_listings"
	defaultStorePath    = "workmatch.db"
	defaultCacheEntries = 10000
)

// Config is the root configuration for workmatch.
type Config struct {
	Provider  ProviderConfig
	Search    SearchConfig
	Embedding EmbeddingConfig
	Store     StoreConfig
	Vector    VectorConfig
	Retrieval RetrievalConfig
	Warm      WarmConfig
}

// ProviderConfig describes the job search provider. Only Adzuna is supported.
type ProviderConfig struct {
	Type              string
	AppID             string // expanded from env var by Load
	AppKey            string // expanded from env var by Load
	BaseURL           string
	Country           string // default country code, e.g. "gb"
	PageSize          int
	MaxPages          int
	PageTimeout       time.Duration
	RequestsPerSecond float64 // 0 = unthrottled
	MaxRetries        int
	RetryBaseDelay    time.Duration
}

// SearchConfig holds result limits and client-side filters.
type SearchConfig struct {
	DefaultLimit         int
	EmployerLimit        int
	MaxDaysOld           int
	ExcludeTitleKeywords []string
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	Type           string // "openai" or "ollama"
	BaseURL        string
	Model          string
	APIKey         string
	Dimension      int // 0 = accept whatever the backend returns
	Timeout        time.Duration
	CacheSize      int
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// StoreConfig selects the metadata store.
type StoreConfig struct {
	Type    string // "sqlite" or "memory"
	Path    string
	Timeout time.Duration
}

// VectorConfig selects the vector index.
type VectorConfig struct {
	Type       string // "sqlite", "qdrant", "postgres" or "memory"
	URL        string // qdrant base URL or postgres DSN
	APIKey     string
	Collection string
	TopK       int
	Timeout    time.Duration
}

// RetrievalConfig tunes the live-plus-fallback retrieval call.
type RetrievalConfig struct {
	MinLive       int // 0 disables the semantic fallback
	PageSize      int
	Fanout        int
	IngestTimeout time.Duration
}

// WarmConfig drives the background warm-up loop.
type WarmConfig struct {
	Interval time.Duration
	Terms    []string
	Country  string
	Location string
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Provider  rawProviderConfig  `yaml:"provider"`
	Search    rawSearchConfig    `yaml:"search"`
	Embedding rawEmbeddingConfig `yaml:"embedding"`
	Store     rawStoreConfig     `yaml:"store"`
	Vector    rawVectorConfig    `yaml:"vector"`
	Retrieval rawRetrievalConfig `yaml:"retrieval"`
	Warm      rawWarmConfig      `yaml:"warm"`
}

type rawProviderConfig struct {
	Type              string  `yaml:"type"`
	AppID             string  `yaml:"app_id"`
	AppKey            string  `yaml:"app_key"`
	BaseURL           string  `yaml:"base_url"`
	Country           string  `yaml:"country"`
	PageSize          int     `yaml:"page_size"`
	MaxPages          int     `yaml:"max_pages"`
	PageTimeout       string  `yaml:"page_timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
	RetryBaseDelay    string  `yaml:"retry_base_delay"`
}

type rawSearchConfig struct {
	DefaultLimit         int      `yaml:"default_limit"`
	EmployerLimit        int      `yaml:"employer_limit"`
	MaxDaysOld           int      `yaml:"max_days_old"`
	ExcludeTitleKeywords []string `yaml:"exclude_title_keywords"`
}

type rawEmbeddingConfig struct {
	Type           string `yaml:"type"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	Dimension      int    `yaml:"dimension"`
	Timeout        string `yaml:"timeout"`
	CacheSize      *int   `yaml:"cache_size"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
}

type rawStoreConfig struct {
	Type    string `yaml:"type"`
	Path    string `yaml:"path"`
	Timeout string `yaml:"timeout"`
}

type rawVectorConfig struct {
	Type       string `yaml:"type"`
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	TopK       int    `yaml:"top_k"`
	Timeout    string `yaml:"timeout"`
}

type rawRetrievalConfig struct {
	MinLive       *int   `yaml:"min_live"`
	PageSize      int    `yaml:"page_size"`
	Fanout        int    `yaml:"fanout"`
	IngestTimeout string `yaml:"ingest_timeout"`
}

type rawWarmConfig struct {
	Interval string   `yaml:"interval"`
	Terms    []string `yaml:"terms"`
	Country  string   `yaml:"country"`
	Location string   `yaml:"location"`
}

// ResolvePath picks the config file: the explicit flag value, then the
// WORKMATCH_CONFIG environment variable, then ./config.yaml.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return defaultConfigPath
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := build(raw)
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func build(raw rawConfig) (*Config, error) {
	d := durations{}

	cfg := &Config{
		Provider: ProviderConfig{
			Type:              lowerOr(raw.Provider.Type, "adzuna"),
			AppID:             raw.Provider.AppID,
			AppKey:            raw.Provider.AppKey,
			BaseURL:           stringOr(raw.Provider.BaseURL, defaultAdzunaURL),
			Country:           lowerOr(raw.Provider.Country, "gb"),
			PageSize:          intOr(raw.Provider.PageSize, 50),
			MaxPages:          intOr(raw.Provider.MaxPages, 3),
			PageTimeout:       d.parse("provider.page_timeout", raw.Provider.PageTimeout, 10*time.Second),
			RequestsPerSecond: raw.Provider.RequestsPerSecond,
			MaxRetries:        raw.Provider.MaxRetries,
			RetryBaseDelay:    d.parse("provider.retry_base_delay", raw.Provider.RetryBaseDelay, 2*time.Second),
		},
		Search: SearchConfig{
			DefaultLimit:         intOr(raw.Search.DefaultLimit, 25),
			EmployerLimit:        intOr(raw.Search.EmployerLimit, 100),
			MaxDaysOld:           raw.Search.MaxDaysOld,
			ExcludeTitleKeywords: raw.Search.ExcludeTitleKeywords,
		},
		Embedding: EmbeddingConfig{
			Type:           lowerOr(raw.Embedding.Type, "openai"),
			APIKey:         raw.Embedding.APIKey,
			Dimension:      raw.Embedding.Dimension,
			Timeout:        d.parse("embedding.timeout", raw.Embedding.Timeout, 15*time.Second),
			CacheSize:      defaultCacheEntries,
			MaxRetries:     raw.Embedding.MaxRetries,
			RetryBaseDelay: d.parse("embedding.retry_base_delay", raw.Embedding.RetryBaseDelay, time.Second),
		},
		Store: StoreConfig{
			Type:    lowerOr(raw.Store.Type, "sqlite"),
			Path:    stringOr(raw.Store.Path, defaultStorePath),
			Timeout: d.parse("store.timeout", raw.Store.Timeout, 10*time.Second),
		},
		Vector: VectorConfig{
			Type:       lowerOr(raw.Vector.Type, "sqlite"),
			URL:        strings.TrimSpace(raw.Vector.URL),
			APIKey:     raw.Vector.APIKey,
			Collection: stringOr(raw.Vector.Collection, defaultCollection),
			TopK:       intOr(raw.Vector.TopK, 5),
			Timeout:    d.parse("vector.timeout", raw.Vector.Timeout, 5*time.Second),
		},
		Retrieval: RetrievalConfig{
			MinLive:       5,
			PageSize:      intOr(raw.Retrieval.PageSize, 10),
			Fanout:        intOr(raw.Retrieval.Fanout, 4),
			IngestTimeout: d.parse("retrieval.ingest_timeout", raw.Retrieval.IngestTimeout, 2*time.Minute),
		},
		Warm: WarmConfig{
			Interval: d.parse("warm.interval", raw.Warm.Interval, 6*time.Hour),
			Terms:    raw.Warm.Terms,
			Country:  strings.ToLower(raw.Warm.Country),
			Location: raw.Warm.Location,
		},
	}
	if d.err != nil {
		return nil, d.err
	}

	switch cfg.Embedding.Type {
	case "ollama":
		cfg.Embedding.BaseURL = stringOr(raw.Embedding.BaseURL, defaultOllamaURL)
		cfg.Embedding.Model = stringOr(raw.Embedding.Model, defaultOllamaModel)
	default:
		cfg.Embedding.BaseURL = stringOr(raw.Embedding.BaseURL, defaultOpenAIURL)
		cfg.Embedding.Model = stringOr(raw.Embedding.Model, defaultOpenAIModel)
	}
	if raw.Embedding.CacheSize != nil {
		cfg.Embedding.CacheSize = *raw.Embedding.CacheSize
	}
	if raw.Retrieval.MinLive != nil {
		cfg.Retrieval.MinLive = *raw.Retrieval.MinLive
	}
	if cfg.Vector.Type == "qdrant" {
		cfg.Vector.URL = strings.TrimRight(cfg.Vector.URL, "/")
	}
	if cfg.Warm.Country == "" {
		cfg.Warm.Country = cfg.Provider.Country
	}

	return cfg, nil
}

// durations parses duration fields and keeps the first error.
type durations struct {
	err error
}

func (d *durations) parse(field, value string, def time.Duration) time.Duration {
	if value == "" || d.err != nil {
		return def
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		d.err = fmt.Errorf("parse %s %q: %w", field, value, err)
		return def
	}
	return v
}

func stringOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func lowerOr(v, def string) string {
	return strings.ToLower(stringOr(v, def))
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func validate(cfg *Config) error {
	p := cfg.Provider
	if p.Type != "adzuna" {
		return fmt.Errorf("provider.type must be \"adzuna\", got %q", p.Type)
	}
	if p.AppID == "" || p.AppKey == "" {
		return fmt.Errorf("provider.app_id and provider.app_key are required")
	}
	if p.PageSize < 1 || p.PageSize > 50 {
		return fmt.Errorf("provider.page_size must be between 1 and 50, got %d", p.PageSize)
	}
	if p.MaxPages < 1 {
		return fmt.Errorf("provider.max_pages must be positive, got %d", p.MaxPages)
	}
	if p.RequestsPerSecond < 0 || p.MaxRetries < 0 {
		return fmt.Errorf("provider.requests_per_second and provider.max_retries must not be negative")
	}

	if cfg.Search.DefaultLimit < 0 || cfg.Search.EmployerLimit < 0 || cfg.Search.MaxDaysOld < 0 {
		return fmt.Errorf("search limits must not be negative")
	}

	e := cfg.Embedding
	switch e.Type {
	case "openai":
		if e.APIKey == "" && e.BaseURL == defaultOpenAIURL {
			return fmt.Errorf("embedding.api_key is required for the OpenAI API")
		}
	case "ollama":
	default:
		return fmt.Errorf("embedding.type must be \"openai\" or \"ollama\", got %q", e.Type)
	}
	if e.Dimension < 0 || e.CacheSize < 0 || e.MaxRetries < 0 {
		return fmt.Errorf("embedding.dimension, cache_size and max_retries must not be negative")
	}

	switch cfg.Store.Type {
	case "sqlite":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required when store.type is \"sqlite\"")
		}
	case "memory":
	default:
		return fmt.Errorf("store.type must be \"sqlite\" or \"memory\", got %q", cfg.Store.Type)
	}

	switch cfg.Vector.Type {
	case "sqlite":
		if cfg.Store.Type != "sqlite" {
			return fmt.Errorf("vector.type \"sqlite\" requires store.type \"sqlite\"")
		}
	case "qdrant", "postgres":
		if cfg.Vector.URL == "" {
			return fmt.Errorf("vector.url is required when vector.type is %q", cfg.Vector.Type)
		}
	case "memory":
	default:
		return fmt.Errorf("vector.type must be one of sqlite, qdrant, postgres, memory, got %q", cfg.Vector.Type)
	}
	if cfg.Vector.TopK < 1 {
		return fmt.Errorf("vector.top_k must be positive, got %d", cfg.Vector.TopK)
	}

	r := cfg.Retrieval
	if r.MinLive < 0 || r.PageSize < 1 || r.Fanout < 1 {
		return fmt.Errorf("retrieval.page_size and retrieval.fanout must be positive, min_live must not be negative")
	}

	if len(cfg.Warm.Terms) > 0 && cfg.Warm.Interval < time.Minute {
		return fmt.Errorf("warm.interval must be at least 1m, got %v", cfg.Warm.Interval)
	}

	return nil
}
