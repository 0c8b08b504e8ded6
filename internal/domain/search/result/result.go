package result

import (
	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/search/hit"
)

// Entry is a single ranked search result.
type Entry struct {
	id            string
	title         string
	snippet       string
	score         float64
	lexicalScore  float64
	semanticScore float64
	dates         []domain.DateMention
	points        []domain.GeoPoint
}

// New creates a result entry.
func New(
	id, title, snippet string,
	score, lexicalScore, semanticScore float64,
	dates []domain.DateMention, points []domain.GeoPoint,
) Entry {
	return Entry{
		id: id, title: title, snippet: snippet,
		score: score, lexicalScore: lexicalScore, semanticScore: semanticScore,
		dates: dates, points: points,
	}
}

// ID returns the document identifier.
func (e *Entry) ID() string { return e.id }

// Title returns the document title.
func (e *Entry) Title() string { return e.title }

// Snippet returns the leading part of the document body.
func (e *Entry) Snippet() string { return e.snippet }

// Score returns the blended score in [0,1].
func (e *Entry) Score() float64 { return e.score }

// LexicalScore returns the normalized lexical component, 0 when absent.
func (e *Entry) LexicalScore() float64 { return e.lexicalScore }

// SemanticScore returns the normalized semantic component, 0 when absent.
func (e *Entry) SemanticScore() float64 { return e.semanticScore }

// Dates returns the matched date mentions.
func (e *Entry) Dates() []domain.DateMention { return e.dates }

// Points returns the matched locations.
func (e *Entry) Points() []domain.GeoPoint { return e.points }

// Response is the outcome of one search. An empty Entries slice is a valid
// "no matches" outcome.
type Response struct {
	Entries []Entry
	// Degraded is set when one retrieval source failed and the query was
	// answered from the other one alone.
	Degraded       bool
	DegradedSource hit.Source
	LexicalHits    int
	SemanticHits   int
}
