package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/search/constraint"
	"github.com/kailas-cloud/newsdex/internal/domain/search/filter"
	"github.com/kailas-cloud/newsdex/internal/domain/search/hit"
	"github.com/kailas-cloud/newsdex/internal/domain/search/request"
)

// --- Mocks ---

type mockLexical struct {
	mu        sync.Mutex
	searchFn  func(ctx context.Context, text string, topK int, prefilter filter.Expression) ([]hit.Scored, error)
	calls     int
	lastTopK  int
	lastQuery string
	lastPre   filter.Expression
}

func (m *mockLexical) Search(
	ctx context.Context, text string, topK int, prefilter filter.Expression,
) ([]hit.Scored, error) {
	m.mu.Lock()
	m.calls++
	m.lastTopK, m.lastQuery, m.lastPre = topK, text, prefilter
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, text, topK, prefilter)
	}
	return nil, nil
}

type mockSemantic struct {
	mu       sync.Mutex
	dims     int
	searchFn func(ctx context.Context, vector []float32, topK int, prefilter filter.Expression) ([]hit.Scored, error)
	calls    int
	lastVec  []float32
	lastTopK int
	lastPre  filter.Expression
}

func (m *mockSemantic) Dimensions() int { return m.dims }

func (m *mockSemantic) Search(
	ctx context.Context, vector []float32, topK int, prefilter filter.Expression,
) ([]hit.Scored, error) {
	m.mu.Lock()
	m.calls++
	m.lastVec, m.lastTopK, m.lastPre = vector, topK, prefilter
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, vector, topK, prefilter)
	}
	return nil, nil
}

type mockEmbedder struct {
	vec    []float32
	err    error
	calls  int
	lastIn string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	m.lastIn = text
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

// --- Helpers ---

func doc(id string) domain.Document {
	return domain.Document{ID: id, Title: "Title " + id, Body: "Body of " + id}
}

func scored(src hit.Source, pairs ...any) []hit.Scored {
	out := make([]hit.Scored, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, hit.Scored{Doc: doc(pairs[i].(string)), Score: pairs[i+1].(float64), Source: src})
	}
	return out
}

func vector(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = 0.01 * float32(i+1)
	}
	return v
}

func mustRequest(
	t *testing.T, text string, emb []float32, topK int, alpha float64, c constraint.Constraint, georef string,
) *request.Request {
	t.Helper()
	r, err := request.New(text, emb, topK, alpha, c, georef)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &r
}

func noConstraint() constraint.Constraint { return constraint.New(nil, nil) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fastConfig() Config {
	return Config{
		BackendTimeout: time.Second,
		Retry:          RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2},
	}
}
