package newsdex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	configFile string
	overrides  []func(*config.Config)

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

func (c *clientConfig) set(fn func(*config.Config)) {
	c.overrides = append(c.overrides, fn)
}

// WithConfigFile loads settings from a YAML file in the server's format.
// Other options are applied on top of it regardless of their order.
func WithConfigFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.configFile = path
	})
}

// WithRedis sets the Redis addresses holding the news index.
func WithRedis(addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) { cfg.Database.Addrs = addrs })
	})
}

// WithCredentials sets the Redis ACL user and password.
func WithCredentials(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) {
			cfg.Database.Username = username
			cfg.Database.Password = password
		})
	})
}

// WithIndex names the search index and the document key prefix.
// Defaults: "newsdex:idx" and "newsdex:doc:".
func WithIndex(name, prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) {
			cfg.Index.Name = name
			cfg.Index.Prefix = prefix
		})
	})
}

// WithVectorDimensions sets the embedding dimension of the index. Default: 384.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) { cfg.Index.VectorDimensions = dim })
	})
}

// WithHNSW configures HNSW index parameters used by EnsureIndex.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) {
			cfg.Index.HNSWM = m
			cfg.Index.HNSWEFConstruction = efConstruct
		})
	})
}

// WithOpenAIEmbedder embeds text queries through an OpenAI-compatible endpoint.
// Without an embedder only caller-supplied vectors reach the semantic side.
func WithOpenAIEmbedder(baseURL, model, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) {
			cfg.Embedding.Provider = "openai"
			cfg.Embedding.BaseURL = baseURL
			cfg.Embedding.Model = model
			cfg.Embedding.APIKey = apiKey
		})
	})
}

// WithEmbeddingCache caches query embeddings in memory and in Redis.
func WithEmbeddingCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) {
			cfg.Embedding.Cache.Enabled = true
			cfg.Embedding.Cache.TTL = ttl
		})
	})
}

// WithQdrant serves the semantic side from a Qdrant collection instead of the
// Redis vector field.
func WithQdrant(addr, collection string) Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) {
			cfg.Semantic.Backend = "qdrant"
			cfg.Semantic.Qdrant = config.QdrantConfig{Addr: addr, Collection: collection}
		})
	})
}

// WithAllowDegraded answers from one source when the other one fails.
func WithAllowDegraded() Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) { cfg.Search.AllowDegraded = true })
	})
}

// WithPreFilter pushes the date and area constraint into both backend queries.
func WithPreFilter() Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) { cfg.Search.FilterMode = "pre" })
	})
}

// WithDefaultAlpha sets the blend weight used when a query leaves Alpha nil.
func WithDefaultAlpha(alpha float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) {
			cfg.Search.DefaultAlpha = alpha
			cfg.Search.DefaultAlphaSet = true
		})
	})
}

// WithBackendTimeout bounds every backend call. Default: 2s.
func WithBackendTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.set(func(cfg *config.Config) { cfg.Search.BackendTimeout = d })
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
