package search

import (
	"github.com/kailas-cloud/newsdex/internal/domain/search/constraint"
	"github.com/kailas-cloud/newsdex/internal/domain/search/hit"
)

// FilterHits keeps the hits whose document satisfies c. Each kept document
// carries only the date mentions and points that satisfied the constraint.
// An empty constraint returns hits unchanged.
func FilterHits(hits []hit.Normalized, c constraint.Constraint) []hit.Normalized {
	if c.IsEmpty() {
		return hits
	}
	out := make([]hit.Normalized, 0, len(hits))
	for _, h := range hits {
		dates, points, ok := c.Match(h.Doc)
		if !ok {
			continue
		}
		h.Doc.Dates = dates
		h.Doc.Points = points
		out = append(out, h)
	}
	return out
}
