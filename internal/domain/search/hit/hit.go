package hit

import "github.com/kailas-cloud/newsdex/internal/domain"

// Source identifies which retrieval path produced a hit.
type Source string

// Retrieval sources.
const (
	Lexical  Source = "lexical"
	Semantic Source = "semantic"
)

// Scored is a document with the raw score reported by one backend query.
// Raw scores are only comparable within a single list.
type Scored struct {
	Doc    domain.Document
	Score  float64
	Source Source
}

// Normalized is a document whose score was rescaled into [0,1] within its list.
type Normalized struct {
	Doc    domain.Document
	Score  float64
	Source Source
}
