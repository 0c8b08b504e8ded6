package domain

import (
	"fmt"
	"time"
)

// Document is an enriched news article as stored in the search backend.
// The engine only reads documents; the enrichment pipeline owns them.
type Document struct {
	ID            string
	Title         string
	Body          string
	PublishedAt   time.Time
	Dates         []DateMention
	Points        []GeoPoint
	Georeferences []string
}

// DatePrecision is the granularity an extracted date was resolved to.
type DatePrecision string

const (
	// PrecisionDay means the mention names a specific day.
	PrecisionDay DatePrecision = "day"
	// PrecisionMonth means only month and year were recoverable.
	PrecisionMonth DatePrecision = "month"
	// PrecisionYear means only the year was recoverable.
	PrecisionYear DatePrecision = "year"
)

// ParseDatePrecision maps a stored precision label to DatePrecision. Empty means day.
func ParseDatePrecision(s string) (DatePrecision, error) {
	switch DatePrecision(s) {
	case "", PrecisionDay:
		return PrecisionDay, nil
	case PrecisionMonth:
		return PrecisionMonth, nil
	case PrecisionYear:
		return PrecisionYear, nil
	default:
		return "", fmt.Errorf("unknown date precision %q", s)
	}
}

// DateMention is one date extracted from a document.
type DateMention struct {
	Time      time.Time
	Precision DatePrecision
}

// Span returns the inclusive UTC interval the mention covers at its precision.
func (d DateMention) Span() (start, end time.Time) {
	t := d.Time.UTC()
	switch d.Precision {
	case PrecisionYear:
		start = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(1, 0, 0).Add(-time.Nanosecond)
	case PrecisionMonth:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	default:
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return start, end
}

// Format renders the mention at its precision: 1987, 1987-02 or 1987-02-26.
func (d DateMention) Format() string {
	t := d.Time.UTC()
	switch d.Precision {
	case PrecisionYear:
		return t.Format("2006")
	case PrecisionMonth:
		return t.Format("2006-01")
	default:
		return t.Format(time.DateOnly)
	}
}

// GeoPoint is a geocoded location mentioned by a document.
type GeoPoint struct {
	Lat  float64
	Lon  float64
	Name string
}
