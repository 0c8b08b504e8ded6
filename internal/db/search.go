package db

import "github.com/kailas-cloud/newsdex/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector"
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
	Metric       DistanceMetric // how to turn the reported distance into a similarity
}

// TextQuery is the input for BM25 text search.
type TextQuery struct {
	IndexName string
	Query     string
	// Fields are searched as a union; each field may carry a query-time weight.
	Fields       []WeightedField
	Filters      filter.Expression
	TopK         int
	ReturnFields []string
}

// WeightedField is a TEXT field name with a query-time boost. Weight <= 0 means 1.
type WeightedField struct {
	Name   string
	Weight float64
}

// PrefixQuery is the input for title-as-you-type completion: every token but
// the last must match exactly, the last one is matched as a prefix.
type PrefixQuery struct {
	IndexName    string
	Field        string
	Text         string
	Limit        int
	ReturnFields []string
	SortBy       string // optional sortable field, descending
	// Fuzzy also accepts the last token within Levenshtein distance 1.
	Fuzzy bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// AggregateQuery is the input for FT.AGGREGATE. Steps are raw pipeline
// arguments (APPLY, GROUPBY, REDUCE, SORTBY, LIMIT ...) appended after LOAD.
type AggregateQuery struct {
	IndexName string
	Query     string
	Load      []string
	Steps     []string
}

// IndexInfo is the subset of FT.INFO the service reports.
type IndexInfo struct {
	Name        string
	NumDocs     int64
	NumRecords  int64
	Indexing    bool
	PercentDone float64
}
