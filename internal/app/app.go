// Package app is the composition root shared by the server, the CLI and the SDK.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/config"
	"github.com/kailas-cloud/newsdex/internal/db"
	dbQdrant "github.com/kailas-cloud/newsdex/internal/db/qdrant"
	dbRedis "github.com/kailas-cloud/newsdex/internal/db/redis"
	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/metrics"
	analyticsrepo "github.com/kailas-cloud/newsdex/internal/repository/analytics"
	documentrepo "github.com/kailas-cloud/newsdex/internal/repository/document"
	"github.com/kailas-cloud/newsdex/internal/repository/embcache"
	"github.com/kailas-cloud/newsdex/internal/repository/newsindex"
	searchrepo "github.com/kailas-cloud/newsdex/internal/repository/search"
	openaiEmb "github.com/kailas-cloud/newsdex/internal/transport/openai"
	analyticsuc "github.com/kailas-cloud/newsdex/internal/usecase/analytics"
	embeddinguc "github.com/kailas-cloud/newsdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/newsdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/newsdex/internal/usecase/search"
)

type vectorSearcher interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// App holds the wired services and the connections they share.
type App struct {
	Store     db.Store
	Schema    newsindex.Schema
	Search    *searchuc.Service
	Analytics *analyticsuc.Service
	Health    *healthuc.Service

	qdrant *dbQdrant.Store
}

// New connects to the backends and wires the services described by cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := store.WaitForReady(ctx, cfg.Database.ReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}

	a, err := wire(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// NewWithStore wires the services on top of an existing store.
func NewWithStore(cfg config.Config, store db.Store, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return wire(cfg, store, logger)
}

func wire(cfg config.Config, store db.Store, logger *zap.Logger) (*App, error) {
	schema, err := SchemaFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Store: store, Schema: schema}

	var vectors vectorSearcher = store
	if cfg.Semantic.Backend == "qdrant" {
		q, err := dbQdrant.New(cfg.Semantic.Qdrant.Addr, cfg.Semantic.Qdrant.Collection)
		if err != nil {
			return nil, fmt.Errorf("create qdrant store: %w", err)
		}
		a.qdrant = q
		vectors = q
	}

	embedder := buildEmbedder(cfg, store, logger)

	lexical := searchrepo.NewLexical(store, schema, cfg.Search.TitleBoost)
	semantic := searchrepo.NewSemantic(vectors, schema)

	// A nil *InstrumentedEmbedder wrapped in the interface would not compare equal to nil.
	var queryEmbedder searchuc.Embedder
	var embeddingChecker healthuc.EmbeddingChecker
	if embedder != nil {
		queryEmbedder = embedder
		embeddingChecker = embedder
	}

	a.Search = searchuc.New(lexical, semantic, queryEmbedder, EngineConfig(cfg))
	a.Analytics = analyticsuc.New(
		analyticsrepo.New(store, schema),
		documentrepo.New(store, schema),
	)
	a.Health = healthuc.New(store, store, schema.Name, embeddingChecker)

	logger.Info("Services wired",
		zap.String("index", schema.Name),
		zap.Int("dimensions", schema.Dimensions),
		zap.String("semantic_backend", cfg.Semantic.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("filter_mode", cfg.Search.FilterMode),
		zap.Bool("allow_degraded", cfg.Search.AllowDegraded),
	)
	return a, nil
}

// Close releases backend connections.
func (a *App) Close() {
	if a.qdrant != nil {
		a.qdrant.Close()
	}
	a.Store.Close()
}

// EnsureIndex creates the news index when it does not exist yet.
func (a *App) EnsureIndex(ctx context.Context) (created bool, err error) {
	exists, err := a.Store.IndexExists(ctx, a.Schema.Name)
	if err != nil {
		return false, fmt.Errorf("check index: %w", err)
	}
	if exists {
		return false, nil
	}
	def, err := a.Schema.Definition()
	if err != nil {
		return false, fmt.Errorf("build index definition: %w", err)
	}
	if err := a.Store.CreateIndex(ctx, def); err != nil {
		return false, fmt.Errorf("create index: %w", err)
	}
	return true, nil
}

// DropIndex removes the news index. Documents are kept.
func (a *App) DropIndex(ctx context.Context) error {
	if err := a.Store.DropIndex(ctx, a.Schema.Name); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	return nil
}

// SchemaFromConfig describes the index named by cfg.
func SchemaFromConfig(cfg config.Config) (newsindex.Schema, error) {
	metric, err := db.ParseDistanceMetric(cfg.Index.Metric)
	if err != nil {
		return newsindex.Schema{}, fmt.Errorf("index metric: %w", err)
	}
	return newsindex.Schema{
		Name:        cfg.Index.Name,
		Prefix:      cfg.Index.Prefix,
		Dimensions:  cfg.Index.VectorDimensions,
		Metric:      metric,
		HNSWM:       cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruction,
	}, nil
}

// EngineConfig maps the search section onto the query engine settings.
func EngineConfig(cfg config.Config) searchuc.Config {
	s := cfg.Search
	return searchuc.Config{
		BackendTimeout: s.BackendTimeout,
		Retry: searchuc.RetryConfig{
			MaxAttempts: s.Retry.MaxAttempts,
			BaseDelay:   s.Retry.BaseDelay,
			MaxDelay:    s.Retry.MaxDelay,
			Multiplier:  s.Retry.Multiplier,
		},
		AllowDegraded:       s.AllowDegraded,
		FilterMode:          searchuc.FilterMode(s.FilterMode),
		CandidateMultiplier: s.CandidateMultiplier,
		SnippetLength:       s.SnippetLength,
		Fields: searchuc.Fields{
			Date:          newsindex.FieldDate,
			Location:      newsindex.FieldLocation,
			Georeferences: newsindex.FieldGeoreferences,
		},
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// Returns nil when no provider is configured.
func buildEmbedder(cfg config.Config, store db.KVStore, logger *zap.Logger) *embeddinguc.InstrumentedEmbedder {
	ec := cfg.Embedding
	if ec.Provider == "" {
		return nil
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: cfg.Index.VectorDimensions,
		Provider:   ec.Provider,
		Timeout:    ec.Timeout,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if ec.Cache.Enabled {
		cached, err := embcache.New(base, store, embcache.Config{
			KeyPrefix: ec.Cache.KeyPrefix,
			TTL:       ec.Cache.TTL,
			LRUSize:   ec.Cache.LRUSize,
		}, metrics.EmbeddingCacheTotal, logger)
		if err != nil {
			logger.Warn("Embedding cache disabled", zap.Error(err))
		} else {
			embedder = cached
		}
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, ec.Provider, ec.Model, logger)
}
