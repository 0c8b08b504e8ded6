// Package newsindex owns the layout of the news index: field names, the FT
// schema, key naming and decoding of stored hash fields into documents.
package newsindex

import (
	"strings"

	"github.com/kailas-cloud/newsdex/internal/db"
)

// Stored and indexed field names.
const (
	FieldTitle         = "title"
	FieldBody          = "body"
	FieldVector        = "vector"
	FieldDate          = "date"     // primary date, unix seconds (NUMERIC SORTABLE)
	FieldLocation      = "location" // primary point, "lon,lat" (GEO)
	FieldGeoreferences = "georeferences"
	FieldDates         = "dates"  // JSON list of date mentions, stored only
	FieldPoints        = "points" // JSON list of geocoded points, stored only
)

// Default HNSW build parameters.
const (
	DefaultHNSWM           = 16
	DefaultHNSWEFConstruct = 200
)

// Schema describes one news index.
type Schema struct {
	Name        string
	Prefix      string
	Dimensions  int
	Metric      db.DistanceMetric
	HNSWM       int
	EFConstruct int
}

// Definition returns the FT.CREATE definition for the index. Fields keep the
// server default weight; the title boost is a query attribute.
func (s Schema) Definition() (*db.IndexDefinition, error) {
	m, ef := s.HNSWM, s.EFConstruct
	if m <= 0 {
		m = DefaultHNSWM
	}
	if ef <= 0 {
		ef = DefaultHNSWEFConstruct
	}
	return db.NewIndex(s.Name).
		Prefix(s.Prefix).
		Text(FieldTitle).
		Text(FieldBody).
		VectorHNSW(FieldVector, s.Dimensions, s.Metric, m, ef).
		SortableNumeric(FieldDate).
		Geo(FieldLocation).
		TagWithOpts(FieldGeoreferences, ",", false).
		Build()
}

// Key returns the hash key of a document.
func (s Schema) Key(id string) string { return s.Prefix + id }

// ID strips the key prefix. Keys without the prefix are returned unchanged.
func (s Schema) ID(key string) string { return strings.TrimPrefix(key, s.Prefix) }

// ReturnFields lists the stored fields a search hit needs to be decoded.
func ReturnFields() []string {
	return []string{FieldTitle, FieldBody, FieldDate, FieldDates, FieldPoints, FieldGeoreferences}
}
