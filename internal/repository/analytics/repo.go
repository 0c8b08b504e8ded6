// Package analytics reads corpus-level aggregates from the news index.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/newsdex/internal/db"
	"github.com/kailas-cloud/newsdex/internal/domain"
	domana "github.com/kailas-cloud/newsdex/internal/domain/analytics"
	"github.com/kailas-cloud/newsdex/internal/repository/newsindex"
)

// store is the consumer interface for analytics (ISP).
type store interface {
	SearchPrefix(ctx context.Context, q *db.PrefixQuery) (*db.SearchResult, error)
	Aggregate(ctx context.Context, q *db.AggregateQuery) ([]map[string]string, error)
	IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error)
}

// maxBuckets caps histogram rows returned by FT.AGGREGATE.
const maxBuckets = 10000

// Repo implements usecase/analytics.Repository.
type Repo struct {
	store  store
	schema newsindex.Schema
}

// New creates an analytics repository.
func New(s store, schema newsindex.Schema) *Repo {
	return &Repo{store: s, schema: schema}
}

// SuggestTitles returns documents whose title completes prefix, newest first.
func (r *Repo) SuggestTitles(ctx context.Context, prefix string, size int) ([]domana.Suggestion, error) {
	sr, err := r.store.SearchPrefix(ctx, &db.PrefixQuery{
		IndexName:    r.schema.Name,
		Field:        newsindex.FieldTitle,
		Text:         prefix,
		Limit:        size,
		ReturnFields: []string{newsindex.FieldTitle, newsindex.FieldDate},
		SortBy:       newsindex.FieldDate,
		Fuzzy:        true,
	})
	if err != nil {
		return nil, newsindex.Classify("suggest", err)
	}

	out := make([]domana.Suggestion, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		s := domana.Suggestion{ID: r.schema.ID(e.Key), Title: e.Fields[newsindex.FieldTitle]}
		if raw := e.Fields[newsindex.FieldDate]; raw != "" {
			sec, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("suggest %s: %w: date %q", s.ID, domain.ErrMalformedResponse, raw)
			}
			s.PublishedAt = time.Unix(int64(sec), 0).UTC()
		}
		out = append(out, s)
	}
	return out, nil
}

// TopGeoreferences ranks place names by the number of documents mentioning them.
func (r *Repo) TopGeoreferences(ctx context.Context, size int) ([]domana.GeoreferenceCount, error) {
	rows, err := r.store.Aggregate(ctx, &db.AggregateQuery{
		IndexName: r.schema.Name,
		Load:      []string{newsindex.FieldGeoreferences},
		Steps: []string{
			"APPLY", "split(@" + newsindex.FieldGeoreferences + ")", "AS", "georef",
			"GROUPBY", "1", "@georef",
			"REDUCE", "COUNT", "0", "AS", "count",
			"SORTBY", "2", "@count", "DESC",
			"MAX", strconv.Itoa(size),
		},
	})
	if err != nil {
		return nil, newsindex.Classify("top georeferences", err)
	}

	out := make([]domana.GeoreferenceCount, 0, len(rows))
	for _, row := range rows {
		name := row["georef"]
		if name == "" {
			continue // documents without georeferences group under an empty key
		}
		n, err := strconv.ParseInt(row["count"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("top georeferences: %w: count %q", domain.ErrMalformedResponse, row["count"])
		}
		out = append(out, domana.GeoreferenceCount{Name: name, Count: n})
	}
	return out, nil
}

// Distribution counts documents per interval of their primary date, ascending.
// from and to optionally bound the primary date, inclusive.
func (r *Repo) Distribution(
	ctx context.Context, interval domana.Interval, from, to *time.Time,
) ([]domana.Bucket, error) {
	query := "*"
	if from != nil || to != nil {
		lo, hi := "-inf", "+inf"
		if from != nil {
			lo = strconv.FormatInt(from.Unix(), 10)
		}
		if to != nil {
			hi = strconv.FormatInt(to.Unix(), 10)
		}
		query = fmt.Sprintf("@%s:[%s %s]", newsindex.FieldDate, lo, hi)
	}

	rows, err := r.store.Aggregate(ctx, &db.AggregateQuery{
		IndexName: r.schema.Name,
		Query:     query,
		Load:      []string{newsindex.FieldDate},
		Steps: []string{
			"APPLY", bucketExpr(interval), "AS", "bucket",
			"GROUPBY", "1", "@bucket",
			"REDUCE", "COUNT", "0", "AS", "count",
			"SORTBY", "2", "@bucket", "ASC",
			"MAX", strconv.Itoa(maxBuckets),
		},
	})
	if err != nil {
		return nil, newsindex.Classify("distribution", err)
	}

	out := make([]domana.Bucket, 0, len(rows))
	for _, row := range rows {
		raw := row["bucket"]
		if raw == "" {
			continue // documents without a primary date
		}
		sec, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("distribution: %w: bucket %q", domain.ErrMalformedResponse, raw)
		}
		n, err := strconv.ParseInt(row["count"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("distribution: %w: count %q", domain.ErrMalformedResponse, row["count"])
		}
		out = append(out, domana.Bucket{Start: time.Unix(int64(sec), 0).UTC(), Count: n})
	}
	return out, nil
}

// bucketExpr rounds the primary date down to the interval start.
func bucketExpr(interval domana.Interval) string {
	f := "@" + newsindex.FieldDate
	switch interval {
	case domana.Hour:
		return "hour(" + f + ")"
	case domana.Month:
		return "month(" + f + ")"
	default:
		return "day(" + f + ")"
	}
}

// Stats reports FT.INFO counters for the index.
func (r *Repo) Stats(ctx context.Context) (domana.IndexStats, error) {
	info, err := r.store.IndexInfo(ctx, r.schema.Name)
	if err != nil {
		return domana.IndexStats{}, newsindex.Classify("index info", err)
	}
	return domana.IndexStats{
		IndexName:      r.schema.Name,
		Documents:      info.NumDocs,
		Dimensions:     r.schema.Dimensions,
		Indexing:       info.Indexing,
		PercentIndexed: info.PercentDone,
	}, nil
}
