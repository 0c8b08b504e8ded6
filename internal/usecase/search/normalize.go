package search

import "github.com/kailas-cloud/newsdex/internal/domain/search/hit"

// Normalize rescales raw scores into [0,1] with min-max over this list only.
// The best hit maps to 1.0 and the worst to 0.0. When every score is equal
// (including a single hit) all hits get 1.0. Input order is preserved.
func Normalize(hits []hit.Scored) []hit.Normalized {
	if len(hits) == 0 {
		return nil
	}

	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		lo = min(lo, h.Score)
		hi = max(hi, h.Score)
	}
	span := hi - lo

	out := make([]hit.Normalized, len(hits))
	for i, h := range hits {
		score := 1.0
		if span > 0 {
			score = (h.Score - lo) / span
		}
		out[i] = hit.Normalized{Doc: h.Doc, Score: score, Source: h.Source}
	}
	return out
}
