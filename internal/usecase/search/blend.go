package search

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/search/hit"
	"github.com/kailas-cloud/newsdex/internal/domain/search/result"
)

// DefaultSnippetLength is the body prefix length (in runes) returned with each entry.
const DefaultSnippetLength = 240

type blended struct {
	doc domain.Document
	lex float64
	sem float64
}

// Blend merges the normalized lists by document id. A document missing from
// one list contributes 0 from that source. final = alpha*lex + (1-alpha)*sem.
// Entries are ordered by final score descending, ties broken by id ascending.
func Blend(lex, sem []hit.Normalized, alpha float64, snippetLen int) ([]result.Entry, error) {
	if err := validateAlpha(alpha); err != nil {
		return nil, err
	}

	merged := make(map[string]*blended, len(lex)+len(sem))
	order := make([]string, 0, len(lex)+len(sem))
	add := func(h hit.Normalized) *blended {
		b, ok := merged[h.Doc.ID]
		if !ok {
			b = &blended{doc: h.Doc}
			merged[h.Doc.ID] = b
			order = append(order, h.Doc.ID)
		}
		return b
	}

	// A list can repeat a document only if the backend misbehaves; keep the best score.
	for _, h := range lex {
		b := add(h)
		b.lex = max(b.lex, h.Score)
	}
	for _, h := range sem {
		b := add(h)
		b.sem = max(b.sem, h.Score)
	}

	entries := make([]result.Entry, 0, len(order))
	for _, id := range order {
		b := merged[id]
		final := alpha*b.lex + (1-alpha)*b.sem
		entries = append(entries, result.New(
			b.doc.ID, b.doc.Title, Snippet(b.doc.Body, snippetLen),
			final, b.lex, b.sem,
			b.doc.Dates, b.doc.Points,
		))
	}

	slices.SortFunc(entries, func(a, b result.Entry) int {
		if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return entries, nil
}

func validateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return fmt.Errorf("%w: got %g", domain.ErrInvalidWeight, alpha)
	}
	return nil
}

// Snippet returns the first n runes of body cut back to a word boundary,
// with an ellipsis when text was dropped. n <= 0 uses DefaultSnippetLength.
func Snippet(body string, n int) string {
	if n <= 0 {
		n = DefaultSnippetLength
	}
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= n {
		return body
	}

	cut := 0
	for i := range body {
		if n == 0 {
			cut = i
			break
		}
		n--
	}
	s := body[:cut]
	if next, _ := utf8.DecodeRuneInString(body[cut:]); !unicode.IsSpace(next) {
		if i := strings.LastIndexAny(s, " \t\n"); i > 0 {
			s = s[:i]
		}
	}
	return strings.TrimRight(s, " \t\n,.;:") + "..."
}
