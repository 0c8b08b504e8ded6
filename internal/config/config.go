package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the newsdex configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Semantic  SemanticConfig  `yaml:"semantic"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string          `yaml:"host"`
	Port            int             `yaml:"port"`
	APIKeys         []string        `yaml:"api_keys"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
}

// RateLimitConfig configures the token bucket in front of the API. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string      `yaml:"addrs"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	ReadinessTimeout time.Duration `yaml:"readiness_timeout"`
}

// IndexConfig describes the news index.
type IndexConfig struct {
	Name               string `yaml:"name"`
	Prefix             string `yaml:"prefix"`
	VectorDimensions   int    `yaml:"vector_dimensions"`
	Metric             string `yaml:"metric"` // cosine, ip, l2
	HNSWM              int    `yaml:"hnsw_m"`
	HNSWEFConstruction int    `yaml:"hnsw_ef_construction"`
}

// SearchConfig tunes the hybrid query engine.
type SearchConfig struct {
	DefaultAlpha        float64       `yaml:"default_alpha"`
	DefaultTopK         int           `yaml:"default_top_k"`
	MaxTopK             int           `yaml:"max_top_k"`
	TitleBoost          float64       `yaml:"title_boost"`
	BackendTimeout      time.Duration `yaml:"backend_timeout"`
	Retry               RetryConfig   `yaml:"retry"`
	AllowDegraded       bool          `yaml:"allow_degraded"`
	FilterMode          string        `yaml:"filter_mode"` // post, pre
	CandidateMultiplier int           `yaml:"candidate_multiplier"`
	SnippetLength       int           `yaml:"snippet_length"`

	// DefaultAlphaSet distinguishes an explicit 0 from an absent key.
	DefaultAlphaSet bool `yaml:"-"`
}

// RetryConfig holds backoff settings for transient backend failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
}

// SemanticConfig selects the vector backend.
type SemanticConfig struct {
	Backend string       `yaml:"backend"` // redis, qdrant
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant gRPC settings.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig holds query embedding settings. An empty provider disables
// embedding of text queries.
type EmbeddingConfig struct {
	Provider string        `yaml:"provider"` // openai or empty
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	Cache    CacheConfig   `yaml:"cache"`
}

// CacheConfig holds query embedding cache settings.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	TTL       time.Duration `yaml:"ttl"`
	LRUSize   int           `yaml:"lru_size"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// TelemetryConfig toggles OpenTelemetry HTTP instrumentation.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(Path(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Search.DefaultAlphaSet = hasKey(data, "search", "default_alpha")

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from NEWSDEX_ENV, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("NEWSDEX_ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	c.applyServerDefaults()
	c.applyIndexDefaults()
	c.applySearchDefaults()

	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10 * time.Second
	}
	if c.Semantic.Backend == "" {
		c.Semantic.Backend = "redis"
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = 5 * time.Second
	}
	if c.Embedding.Cache.LRUSize <= 0 {
		c.Embedding.Cache.LRUSize = 10000
	}
	if c.Embedding.Cache.KeyPrefix == "" {
		c.Embedding.Cache.KeyPrefix = "newsdex:"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "newsdex"
	}
}

func (c *Config) applyServerDefaults() {
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.RateLimit.RPS > 0 && c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = int(c.Server.RateLimit.RPS) + 1
	}
}

func (c *Config) applyIndexDefaults() {
	if c.Index.Name == "" {
		c.Index.Name = "newsdex:idx"
	}
	if c.Index.Prefix == "" {
		c.Index.Prefix = "newsdex:doc:"
	}
	if c.Index.VectorDimensions <= 0 {
		c.Index.VectorDimensions = 384
	}
	if c.Index.Metric == "" {
		c.Index.Metric = "cosine"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruction <= 0 {
		c.Index.HNSWEFConstruction = 200
	}
}

func (c *Config) applySearchDefaults() {
	s := &c.Search
	if !s.DefaultAlphaSet && s.DefaultAlpha == 0 {
		s.DefaultAlpha = 0.5
	}
	if s.DefaultTopK <= 0 {
		s.DefaultTopK = 10
	}
	if s.MaxTopK <= 0 {
		s.MaxTopK = 100
	}
	if s.TitleBoost <= 0 {
		s.TitleBoost = 10
	}
	if s.BackendTimeout <= 0 {
		s.BackendTimeout = 2 * time.Second
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry.MaxAttempts = 3
	}
	if s.Retry.BaseDelay <= 0 {
		s.Retry.BaseDelay = 50 * time.Millisecond
	}
	if s.Retry.MaxDelay <= 0 {
		s.Retry.MaxDelay = time.Second
	}
	if s.Retry.Multiplier <= 0 {
		s.Retry.Multiplier = 2
	}
	if s.FilterMode == "" {
		s.FilterMode = "post"
	}
	if s.CandidateMultiplier <= 0 {
		s.CandidateMultiplier = 3
	}
	if s.SnippetLength <= 0 {
		s.SnippetLength = 240
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit.RPS < 0 {
		return fmt.Errorf("server.rate_limit.rps must be >= 0, got %g", c.Server.RateLimit.RPS)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch strings.ToLower(c.Index.Metric) {
	case "cosine", "ip", "l2":
	default:
		return fmt.Errorf("index.metric must be cosine, ip or l2, got %q", c.Index.Metric)
	}
	if err := c.Search.validate(); err != nil {
		return err
	}
	switch c.Semantic.Backend {
	case "redis":
	case "qdrant":
		if c.Semantic.Qdrant.Addr == "" || c.Semantic.Qdrant.Collection == "" {
			return fmt.Errorf("semantic.qdrant.addr and semantic.qdrant.collection are required for the qdrant backend")
		}
	default:
		return fmt.Errorf("semantic.backend must be \"redis\" or \"qdrant\", got %q", c.Semantic.Backend)
	}
	switch c.Embedding.Provider {
	case "":
	case "openai":
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for provider %q", c.Embedding.Provider)
		}
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or empty, got %q", c.Embedding.Provider)
	}
	return nil
}

func (s *SearchConfig) validate() error {
	if s.DefaultAlpha < 0 || s.DefaultAlpha > 1 {
		return fmt.Errorf("search.default_alpha must be within [0, 1], got %g", s.DefaultAlpha)
	}
	if s.DefaultTopK > s.MaxTopK {
		return fmt.Errorf("search.default_top_k (%d) exceeds search.max_top_k (%d)", s.DefaultTopK, s.MaxTopK)
	}
	if s.Retry.Multiplier < 1 {
		return fmt.Errorf("search.retry.multiplier must be >= 1, got %g", s.Retry.Multiplier)
	}
	if s.Retry.MaxDelay < s.Retry.BaseDelay {
		return fmt.Errorf("search.retry.max_delay (%s) is below base_delay (%s)", s.Retry.MaxDelay, s.Retry.BaseDelay)
	}
	switch s.FilterMode {
	case "post", "pre":
	default:
		return fmt.Errorf("search.filter_mode must be \"post\" or \"pre\", got %q", s.FilterMode)
	}
	return nil
}

// Path locates the config file for env.
func Path(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// hasKey reports whether the YAML document sets section.key.
func hasKey(data []byte, section, key string) bool {
	var raw map[string]map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false
	}
	_, ok := raw[section][key]
	return ok
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
