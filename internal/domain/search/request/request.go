package request

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/search/constraint"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 10
	MaxTopK        = 100
	DefaultAlpha   = 0.5
)

// Request is a validated hybrid search query.
type Request struct {
	text         string
	embedding    []float32
	topK         int
	alpha        float64
	constraint   constraint.Constraint
	georeference string
}

// New validates search parameters. Callers apply their own defaults for an
// omitted top_k or alpha before calling New; a zero topK is rejected.
func New(
	text string,
	embedding []float32,
	topK int,
	alpha float64,
	c constraint.Constraint,
	georeference string,
) (Request, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(embedding) == 0 {
		return Request{}, fmt.Errorf("%w: query text or embedding is required", domain.ErrInvalidRequest)
	}
	if len(text) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if topK <= 0 {
		return Request{}, fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidRequest)
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return Request{}, fmt.Errorf("%w: got %g", domain.ErrInvalidWeight, alpha)
	}

	return Request{
		text:         text,
		embedding:    embedding,
		topK:         topK,
		alpha:        alpha,
		constraint:   c,
		georeference: georeference,
	}, nil
}

// Text returns the keyword query.
func (r *Request) Text() string { return r.text }

// Embedding returns the caller-supplied query vector, if any.
func (r *Request) Embedding() []float32 { return r.embedding }

// TopK returns the number of results to return.
func (r *Request) TopK() int { return r.topK }

// Alpha returns the lexical blend weight.
func (r *Request) Alpha() float64 { return r.alpha }

// Constraint returns the spatiotemporal constraint.
func (r *Request) Constraint() constraint.Constraint { return r.constraint }

// Georeference returns the exact place-name filter, empty when unset.
func (r *Request) Georeference() string { return r.georeference }

// WithEmbedding returns a copy carrying vec as the query embedding.
func (r Request) WithEmbedding(vec []float32) Request {
	r.embedding = vec
	return r
}
