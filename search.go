package newsdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/search/constraint"
	"github.com/kailas-cloud/newsdex/internal/domain/search/request"
	"github.com/kailas-cloud/newsdex/internal/domain/search/result"
)

// Query is one hybrid search. Text, Embedding or both must be set.
type Query struct {
	Text      string
	Embedding []float32

	// TopK defaults to the configured default and is capped at the configured maximum.
	TopK int
	// Alpha is the lexical weight in [0,1]; nil uses the configured default.
	Alpha *float64

	// DateFrom and DateTo accept 2006, 2006-01, 2006-01-02 or RFC 3339.
	// Partial dates cover their whole period.
	DateFrom string
	DateTo   string
	Near     *Area

	// Georeference keeps only documents tagged with this place name.
	Georeference string
}

// Area is a circle on the earth's surface.
type Area struct {
	Lat      float64
	Lon      float64
	RadiusKm float64
}

// SearchResponse is a ranked result list.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	// Degraded reports that one source failed and the answer came from the other.
	Degraded       bool   `json:"degraded"`
	DegradedSource string `json:"degraded_source,omitempty"`
	LexicalHits    int    `json:"lexical_hits"`
	SemanticHits   int    `json:"semantic_hits"`
}

// SearchResult is one ranked document with the mentions that satisfied the query window.
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

// DateMention is a date extracted from a document.
type DateMention struct {
	Time time.Time `json:"time"`
	// Precision is "day", "month" or "year".
	Precision string `json:"precision"`
}

// String renders the mention at its precision.
func (m DateMention) String() string {
	return domain.DateMention{Time: m.Time, Precision: domain.DatePrecision(m.Precision)}.Format()
}

// GeoPoint is a geocoded place.
type GeoPoint struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name,omitempty"`
}

// Search runs a hybrid query.
func (c *Client) Search(ctx context.Context, q Query) (SearchResponse, error) {
	start := time.Now()
	resp, err := c.search(ctx, q)
	c.obs.observe("search", start, err)
	return resp, err
}

func (c *Client) search(ctx context.Context, q Query) (SearchResponse, error) {
	req, err := c.toRequest(q)
	if err != nil {
		return SearchResponse{}, err
	}
	resp, err := c.app.Search.Search(ctx, &req)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search: %w", err)
	}
	return fromResponse(resp), nil
}

func (c *Client) toRequest(q Query) (request.Request, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = c.cfg.Search.DefaultTopK
	}
	if topK > c.cfg.Search.MaxTopK {
		topK = c.cfg.Search.MaxTopK
	}
	alpha := c.cfg.Search.DefaultAlpha
	if q.Alpha != nil {
		alpha = *q.Alpha
	}

	var dates *constraint.DateRange
	from, err := parseBound(q.DateFrom, false)
	if err != nil {
		return request.Request{}, err
	}
	to, err := parseBound(q.DateTo, true)
	if err != nil {
		return request.Request{}, err
	}
	if from != nil || to != nil {
		dr, err := constraint.NewDateRange(from, to)
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		dates = &dr
	}

	var area *constraint.Area
	if q.Near != nil {
		a, err := constraint.NewArea(q.Near.Lat, q.Near.Lon, q.Near.RadiusKm)
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		area = &a
	}

	return request.New(q.Text, q.Embedding, topK, alpha, constraint.New(dates, area), q.Georeference)
}

func parseBound(raw string, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := constraint.ParseBound(raw, upper)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return &t, nil
}

func fromResponse(resp result.Response) SearchResponse {
	out := SearchResponse{
		Results:      make([]SearchResult, len(resp.Entries)),
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
			Dates:         fromDates(e.Dates()),
			Points:        fromPoints(e.Points()),
		}
	}
	return out
}

func fromDates(in []domain.DateMention) []DateMention {
	out := make([]DateMention, len(in))
	for i, m := range in {
		out[i] = DateMention{Time: m.Time, Precision: string(m.Precision)}
	}
	return out
}

func fromPoints(in []domain.GeoPoint) []GeoPoint {
	out := make([]GeoPoint, len(in))
	for i, p := range in {
		out[i] = GeoPoint{Lat: p.Lat, Lon: p.Lon, Name: p.Name}
	}
	return out
}
