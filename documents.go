package newsdex

import (
	"context"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
	domana "github.com/kailas-cloud/newsdex/internal/domain/analytics"
)

// Document is a stored news article.
type Document struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Body          string        `json:"body"`
	PublishedAt   time.Time     `json:"published_at"`
	Dates         []DateMention `json:"dates"`
	Points        []GeoPoint    `json:"points"`
	Georeferences []string      `json:"georeferences"`
}

// DocumentPage is one page of a document listing.
type DocumentPage struct {
	Documents []Document `json:"documents"`
	// NextCursor is empty on the last page.
	NextCursor string `json:"next_cursor,omitempty"`
	Total      int    `json:"total"`
}

// Suggestion is a title completion.
type Suggestion struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// GeoreferenceCount is a place name and how many documents mention it.
type GeoreferenceCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Bucket is one bar of a document count histogram.
type Bucket struct {
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// IndexStats describes the news index.
type IndexStats struct {
	Index          string  `json:"index"`
	Documents      int64   `json:"documents"`
	Dimensions     int     `json:"dimensions"`
	Indexing       bool    `json:"indexing"`
	PercentIndexed float64 `json:"percent_indexed"`
}

// Document fetches one stored document by id.
func (c *Client) Document(ctx context.Context, id string) (Document, error) {
	start := time.Now()
	d, err := c.app.Analytics.Document(ctx, id)
	c.obs.observe("document", start, err)
	if err != nil {
		return Document{}, err
	}
	return fromDocument(d), nil
}

// Documents lists stored documents. Pass the previous page's NextCursor to continue.
func (c *Client) Documents(ctx context.Context, cursor string, limit int) (DocumentPage, error) {
	start := time.Now()
	page, err := c.app.Analytics.Documents(ctx, cursor, limit)
	c.obs.observe("documents", start, err)
	if err != nil {
		return DocumentPage{}, err
	}
	out := DocumentPage{
		Documents:  make([]Document, len(page.Documents)),
		NextCursor: page.NextCursor,
		Total:      page.Total,
	}
	for i, d := range page.Documents {
		out.Documents[i] = fromDocument(d)
	}
	return out, nil
}

// Suggest completes a title prefix, newest first. Prefixes shorter than three
// characters yield nothing.
func (c *Client) Suggest(ctx context.Context, prefix string, size int) ([]Suggestion, error) {
	start := time.Now()
	items, err := c.app.Analytics.Suggest(ctx, prefix, size)
	c.obs.observe("suggest", start, err)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, len(items))
	for i, s := range items {
		out[i] = Suggestion{ID: s.ID, Title: s.Title, PublishedAt: s.PublishedAt}
	}
	return out, nil
}

// TopGeoreferences returns the most mentioned place names.
func (c *Client) TopGeoreferences(ctx context.Context, size int) ([]GeoreferenceCount, error) {
	start := time.Now()
	items, err := c.app.Analytics.TopGeoreferences(ctx, size)
	c.obs.observe("top_georeferences", start, err)
	if err != nil {
		return nil, err
	}
	out := make([]GeoreferenceCount, len(items))
	for i, g := range items {
		out[i] = GeoreferenceCount{Name: g.Name, Count: g.Count}
	}
	return out, nil
}

// Distribution counts documents per "hour", "day" or "month". from and to
// use the same formats as Query.DateFrom and may be empty.
func (c *Client) Distribution(ctx context.Context, interval, from, to string) ([]Bucket, error) {
	start := time.Now()
	buckets, err := c.distribution(ctx, interval, from, to)
	c.obs.observe("distribution", start, err)
	return buckets, err
}

func (c *Client) distribution(ctx context.Context, interval, fromRaw, toRaw string) ([]Bucket, error) {
	from, err := parseBound(fromRaw, false)
	if err != nil {
		return nil, err
	}
	to, err := parseBound(toRaw, true)
	if err != nil {
		return nil, err
	}
	items, err := c.app.Analytics.Distribution(ctx, interval, from, to)
	if err != nil {
		return nil, err
	}
	return fromBuckets(items), nil
}

// Stats reports index counters.
func (c *Client) Stats(ctx context.Context) (IndexStats, error) {
	start := time.Now()
	st, err := c.app.Analytics.Stats(ctx)
	c.obs.observe("stats", start, err)
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{
		Index:          st.IndexName,
		Documents:      st.Documents,
		Dimensions:     st.Dimensions,
		Indexing:       st.Indexing,
		PercentIndexed: st.PercentIndexed,
	}, nil
}

func fromDocument(d domain.Document) Document {
	return Document{
		ID:            d.ID,
		Title:         d.Title,
		Body:          d.Body,
		PublishedAt:   d.PublishedAt,
		Dates:         fromDates(d.Dates),
		Points:        fromPoints(d.Points),
		Georeferences: d.Georeferences,
	}
}

func fromBuckets(in []domana.Bucket) []Bucket {
	out := make([]Bucket, len(in))
	for i, b := range in {
		out[i] = Bucket{Start: b.Start, Count: b.Count}
	}
	return out
}
