// Package analytics holds the corpus-level views served next to search:
// title suggestions, georeference rankings and publication histograms.
package analytics

import (
	"fmt"
	"time"
)

// Suggestion is a title completion candidate.
type Suggestion struct {
	ID          string
	Title       string
	PublishedAt time.Time
}

// GeoreferenceCount is how many documents mention a place name.
type GeoreferenceCount struct {
	Name  string
	Count int64
}

// Bucket is the number of documents published within one interval.
type Bucket struct {
	Start time.Time
	Count int64
}

// Interval is a histogram bucket width.
type Interval string

// Supported intervals.
const (
	Hour  Interval = "hour"
	Day   Interval = "day"
	Month Interval = "month"
)

// ParseInterval validates an interval name. Empty means Day.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case "", Day:
		return Day, nil
	case Hour:
		return Hour, nil
	case Month:
		return Month, nil
	default:
		return "", fmt.Errorf("unknown interval %q (want hour, day or month)", s)
	}
}

// Truncate returns the start of the bucket containing t, in UTC.
func (i Interval) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch i {
	case Hour:
		return t.Truncate(time.Hour)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// Next returns the start of the bucket after the one starting at t.
func (i Interval) Next(t time.Time) time.Time {
	switch i {
	case Hour:
		return t.Add(time.Hour)
	case Month:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// FillGaps returns buckets covering every interval between the first and the
// last input bucket, with zero counts where the input has none. Input must be
// sorted by Start.
func FillGaps(buckets []Bucket, interval Interval) []Bucket {
	if len(buckets) < 2 {
		return buckets
	}
	out := make([]Bucket, 0, len(buckets))
	next := buckets[0].Start
	for _, b := range buckets {
		for next.Before(b.Start) {
			out = append(out, Bucket{Start: next})
			next = interval.Next(next)
		}
		out = append(out, b)
		next = interval.Next(b.Start)
	}
	return out
}

// IndexStats summarizes the search index.
type IndexStats struct {
	IndexName      string
	Documents      int64
	Dimensions     int
	Indexing       bool
	PercentIndexed float64
}
