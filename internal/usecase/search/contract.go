package search

import (
	"context"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/search/filter"
	"github.com/kailas-cloud/newsdex/internal/domain/search/hit"
)

// LexicalSearcher runs keyword queries against the index.
type LexicalSearcher interface {
	Search(ctx context.Context, text string, topK int, prefilter filter.Expression) ([]hit.Scored, error)
}

// SemanticSearcher runs nearest-neighbor queries against the index.
type SemanticSearcher interface {
	Dimensions() int
	Search(ctx context.Context, vector []float32, topK int, prefilter filter.Expression) ([]hit.Scored, error)
}

// Embedder vectorizes query text. Optional: without one, text-only queries
// are answered from the lexical source alone.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
