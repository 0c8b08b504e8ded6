package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/newsdex/internal/db"
	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/search/filter"
	"github.com/kailas-cloud/newsdex/internal/domain/search/hit"
	"github.com/kailas-cloud/newsdex/internal/repository/newsindex"
)

// textStore is the consumer interface for keyword search (ISP).
type textStore interface {
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// vectorStore is the consumer interface for nearest-neighbor search (ISP).
type vectorStore interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Lexical runs BM25 queries over title and body, title boosted.
type Lexical struct {
	store      textStore
	schema     newsindex.Schema
	titleBoost float64
}

// NewLexical creates the keyword adapter. titleBoost <= 0 disables the boost.
func NewLexical(s textStore, schema newsindex.Schema, titleBoost float64) *Lexical {
	return &Lexical{store: s, schema: schema, titleBoost: titleBoost}
}

// Search returns up to topK hits in backend order (descending BM25).
func (r *Lexical) Search(
	ctx context.Context, text string, topK int, prefilter filter.Expression,
) ([]hit.Scored, error) {
	q := &db.TextQuery{
		IndexName: r.schema.Name,
		Query:     text,
		Fields: []db.WeightedField{
			{Name: newsindex.FieldTitle, Weight: r.titleBoost},
			{Name: newsindex.FieldBody},
		},
		Filters:      prefilter,
		TopK:         topK,
		ReturnFields: newsindex.ReturnFields(),
	}

	sr, err := r.store.SearchBM25(ctx, q)
	if err != nil {
		return nil, newsindex.Classify("lexical search", err)
	}
	return toHits(sr, r.schema, hit.Lexical, topK)
}

// Semantic runs KNN queries against the index vector field.
type Semantic struct {
	store  vectorStore
	schema newsindex.Schema
}

// NewSemantic creates the vector adapter.
func NewSemantic(s vectorStore, schema newsindex.Schema) *Semantic {
	return &Semantic{store: s, schema: schema}
}

// Dimensions returns the index vector dimension.
func (r *Semantic) Dimensions() int { return r.schema.Dimensions }

// Search returns up to topK hits by descending similarity. A vector whose
// length differs from the index dimension is rejected before any backend call.
func (r *Semantic) Search(
	ctx context.Context, vector []float32, topK int, prefilter filter.Expression,
) ([]hit.Scored, error) {
	if len(vector) != r.schema.Dimensions {
		return nil, fmt.Errorf("%w: got %d, index has %d",
			domain.ErrDimensionMismatch, len(vector), r.schema.Dimensions)
	}

	q := &db.KNNQuery{
		IndexName:    r.schema.Name,
		VectorField:  newsindex.FieldVector,
		Filters:      prefilter,
		Vector:       vector,
		K:            topK,
		ReturnFields: newsindex.ReturnFields(),
		Metric:       r.schema.Metric,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, newsindex.Classify("semantic search", err)
	}
	return toHits(sr, r.schema, hit.Semantic, topK)
}

func toHits(sr *db.SearchResult, schema newsindex.Schema, src hit.Source, topK int) ([]hit.Scored, error) {
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}
	entries := sr.Entries
	if len(entries) > topK {
		entries = entries[:topK]
	}

	hits := make([]hit.Scored, 0, len(entries))
	for _, e := range entries {
		doc, err := newsindex.Decode(schema.ID(e.Key), e.Fields)
		if err != nil {
			return nil, fmt.Errorf("%s hit: %w: %w", src, domain.ErrMalformedResponse, err)
		}
		hits = append(hits, hit.Scored{Doc: doc, Score: e.Score, Source: src})
	}
	return hits, nil
}
