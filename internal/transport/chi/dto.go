package chi

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/search/constraint"
	"github.com/kailas-cloud/newsdex/internal/domain/search/request"
	"github.com/kailas-cloud/newsdex/internal/domain/search/result"
)

// SearchRequest is the body of POST /v1/search and the query string of GET /v1/search.
type SearchRequest struct {
	Q            string    `json:"q"`
	Embedding    []float32 `json:"embedding,omitempty"`
	TopK         *int      `json:"top_k,omitempty"`
	Alpha        *float64  `json:"alpha,omitempty"`
	DateFrom     *string   `json:"date_from,omitempty"`
	DateTo       *string   `json:"date_to,omitempty"`
	Lat          *float64  `json:"lat,omitempty"`
	Lon          *float64  `json:"lon,omitempty"`
	RadiusKm     *float64  `json:"radius_km,omitempty"`
	Georeference string    `json:"georeference,omitempty"`
}

// SearchResponse is the reply of /v1/search.
type SearchResponse struct {
	Results        []SearchResult `json:"results"`
	Total          int            `json:"total"`
	Degraded       bool           `json:"degraded"`
	DegradedSource string         `json:"degraded_source,omitempty"`
	LexicalHits    int            `json:"lexical_hits"`
	SemanticHits   int            `json:"semantic_hits"`
}

// SearchResult is one ranked document.
type SearchResult struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Snippet       string        `json:"snippet"`
	Score         float64       `json:"score"`
	LexicalScore  float64       `json:"lexical_score"`
	SemanticScore float64       `json:"semantic_score"`
	Dates         []DateMention `json:"dates"`
	Points        []GeoPoint    `json:"points"`
}

// DateMention is a date extracted from a document, formatted at its precision.
type DateMention struct {
	Date      string `json:"date"`
	Precision string `json:"precision"`
}

// GeoPoint is a geocoded place.
type GeoPoint struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name,omitempty"`
}

// Document is a stored news article.
type Document struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Body          string        `json:"body"`
	PublishedAt   *time.Time    `json:"published_at,omitempty"`
	Dates         []DateMention `json:"dates"`
	Points        []GeoPoint    `json:"points"`
	Georeferences []string      `json:"georeferences"`
}

// DocumentListResponse is a cursor page of documents.
type DocumentListResponse struct {
	Items      []Document `json:"items"`
	Total      int        `json:"total"`
	HasMore    bool       `json:"has_more"`
	NextCursor *string    `json:"next_cursor,omitempty"`
}

// SuggestResponse lists title completions.
type SuggestResponse struct {
	Items []SuggestionItem `json:"items"`
}

// SuggestionItem is one title completion.
type SuggestionItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// GeoreferencesResponse lists the most mentioned place names.
type GeoreferencesResponse struct {
	Items []GeoreferenceCount `json:"items"`
}

// GeoreferenceCount is a place name and how many documents mention it.
type GeoreferenceCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DistributionResponse is a document count histogram over time.
type DistributionResponse struct {
	Interval string   `json:"interval"`
	Buckets  []Bucket `json:"buckets"`
}

// Bucket is one histogram bar.
type Bucket struct {
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// StatsResponse describes the index.
type StatsResponse struct {
	Index          string  `json:"index"`
	Documents      int64   `json:"documents"`
	Dimensions     int     `json:"dimensions"`
	Indexing       bool    `json:"indexing"`
	PercentIndexed float64 `json:"percent_indexed"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (in SearchRequest) toDomain(opts Options) (request.Request, error) {
	topK := opts.DefaultTopK
	if in.TopK != nil {
		topK = *in.TopK
	}
	if topK > opts.MaxTopK {
		topK = opts.MaxTopK
	}
	alpha := opts.DefaultAlpha
	if in.Alpha != nil {
		alpha = *in.Alpha
	}

	c, err := in.constraint()
	if err != nil {
		return request.Request{}, err
	}
	return request.New(in.Q, in.Embedding, topK, alpha, c, in.Georeference)
}

func (in SearchRequest) constraint() (constraint.Constraint, error) {
	var dates *constraint.DateRange
	from, to, err := parseBounds(in.DateFrom, in.DateTo)
	if err != nil {
		return constraint.Constraint{}, err
	}
	if from != nil || to != nil {
		dr, err := constraint.NewDateRange(from, to)
		if err != nil {
			return constraint.Constraint{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		dates = &dr
	}

	var area *constraint.Area
	switch set := countSet(in.Lat, in.Lon, in.RadiusKm); set {
	case 0:
	case 3:
		a, err := constraint.NewArea(*in.Lat, *in.Lon, *in.RadiusKm)
		if err != nil {
			return constraint.Constraint{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		area = &a
	default:
		return constraint.Constraint{}, fmt.Errorf("%w: lat, lon and radius_km must be given together",
			domain.ErrInvalidRequest)
	}

	return constraint.New(dates, area), nil
}

func countSet(ps ...*float64) int {
	n := 0
	for _, p := range ps {
		if p != nil {
			n++
		}
	}
	return n
}

// parseBounds parses optional date_from/date_to values. Partial dates cover
// their whole period.
func parseBounds(fromRaw, toRaw *string) (from, to *time.Time, err error) {
	if fromRaw != nil && *fromRaw != "" {
		t, err := constraint.ParseBound(*fromRaw, false)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: date_from: %w", domain.ErrInvalidRequest, err)
		}
		from = &t
	}
	if toRaw != nil && *toRaw != "" {
		t, err := constraint.ParseBound(*toRaw, true)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: date_to: %w", domain.ErrInvalidRequest, err)
		}
		to = &t
	}
	return from, to, nil
}

func searchResponseFromDomain(resp result.Response) SearchResponse {
	out := SearchResponse{
		Results:      make([]SearchResult, len(resp.Entries)),
		Total:        len(resp.Entries),
		Degraded:     resp.Degraded,
		LexicalHits:  resp.LexicalHits,
		SemanticHits: resp.SemanticHits,
	}
	if resp.Degraded {
		out.DegradedSource = string(resp.DegradedSource)
	}
	for i := range resp.Entries {
		e := &resp.Entries[i]
		out.Results[i] = SearchResult{
			ID:            e.ID(),
			Title:         e.Title(),
			Snippet:       e.Snippet(),
			Score:         e.Score(),
			LexicalScore:  e.LexicalScore(),
			SemanticScore: e.SemanticScore(),
			Dates:         datesFromDomain(e.Dates()),
			Points:        pointsFromDomain(e.Points()),
		}
	}
	return out
}

func documentFromDomain(d domain.Document) Document {
	georefs := d.Georeferences
	if georefs == nil {
		georefs = []string{}
	}
	return Document{
		ID:            d.ID,
		Title:         d.Title,
		Body:          d.Body,
		PublishedAt:   optionalTime(d.PublishedAt),
		Dates:         datesFromDomain(d.Dates),
		Points:        pointsFromDomain(d.Points),
		Georeferences: georefs,
	}
}

func datesFromDomain(in []domain.DateMention) []DateMention {
	out := make([]DateMention, len(in))
	for i, m := range in {
		out[i] = DateMention{Date: m.Format(), Precision: string(m.Precision)}
	}
	return out
}

func pointsFromDomain(in []domain.GeoPoint) []GeoPoint {
	out := make([]GeoPoint, len(in))
	for i, p := range in {
		out[i] = GeoPoint{Lat: p.Lat, Lon: p.Lon, Name: p.Name}
	}
	return out
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
