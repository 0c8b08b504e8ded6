package embedding

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// InstrumentedEmbedder wraps an Embedder with tracing and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai;
// cache metrics in repository/embcache.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		tracer:   otel.Tracer("newsdex/embedding"),
		logger:   logger,
	}
}

// Embed delegates to the inner embedder inside a span and logs the outcome.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	ctx, span := p.tracer.Start(ctx, "embedding.Embed", trace.WithAttributes(
		attribute.String("embedding.provider", p.provider),
		attribute.String("embedding.model", p.model),
		attribute.Int("embedding.query_length", len(text)),
	))
	defer span.End()

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	span.SetAttributes(
		attribute.Int("embedding.dimensions", len(result.Embedding)),
		attribute.Int("embedding.total_tokens", result.TotalTokens),
	)
	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
