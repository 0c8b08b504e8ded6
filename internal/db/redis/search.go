package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/newsdex/internal/db"
	"github.com/kailas-cloud/newsdex/internal/domain/search/filter"
)

const (
	defaultVectorField = "vector"
	// minPrefixLen is the shortest prefix the query engine expands with '*'.
	minPrefixLen = 2
	// minFuzzyLen avoids fuzzy matching on very short tokens.
	minFuzzyLen = 3
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// Entry scores are similarities derived from the metric's distance.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("%w: index name is required", db.ErrInvalidQuery)
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: vector is required", db.ErrInvalidQuery)
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", db.ErrInvalidQuery)
	}

	field := q.VectorField
	if field == "" {
		field = defaultVectorField
	}
	scoreField := "__" + field + "_score"

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", q.K, field)
	var queryStr string
	if filterStr := buildFilter(q.Filters); filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	} else {
		queryStr = "*=>" + knnPart
	}

	args := []string{q.IndexName, queryStr}
	if len(q.ReturnFields) > 0 {
		fields := append(append([]string{}, q.ReturnFields...), scoreField)
		args = append(args, "RETURN", strconv.Itoa(len(fields)))
		args = append(args, fields...)
	}
	args = append(args,
		"SORTBY", scoreField,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrap(db.OpSearch, err)
	}

	return parseKNNResult(raw, scoreField, q.Metric)
}

// SearchBM25 runs a BM25 text search via FT.SEARCH.
// Terms are OR-ed; a field with a weight gets a query attribute boost.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("%w: index name is required", db.ErrInvalidQuery)
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", db.ErrInvalidQuery)
	}
	textPart := buildTextQuery(q.Query, q.Fields)
	if textPart == "" {
		return nil, fmt.Errorf("%w: query is required", db.ErrInvalidQuery)
	}

	queryStr := textPart
	if filterStr := buildFilter(q.Filters); filterStr != "" {
		queryStr = filterStr + " " + textPart
	}

	args := []string{q.IndexName, queryStr}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	args = append(args,
		"SCORER", "BM25",
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(q.TopK),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrap(db.OpSearch, err)
	}

	return parseBM25Result(raw)
}

// SearchPrefix matches the last token of q.Text as a prefix on one TEXT field.
func (s *Store) SearchPrefix(ctx context.Context, q *db.PrefixQuery) (*db.SearchResult, error) {
	if q.IndexName == "" || q.Field == "" {
		return nil, fmt.Errorf("%w: index name and field are required", db.ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", db.ErrInvalidQuery)
	}
	tokens := strings.Fields(q.Text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: text is required", db.ErrInvalidQuery)
	}

	escaped := make([]string, len(tokens))
	for i, t := range tokens {
		escaped[i] = escapeQuery(t)
	}
	last := len(escaped) - 1
	n := len([]rune(tokens[last]))
	switch {
	case q.Fuzzy && n >= minFuzzyLen:
		escaped[last] = fmt.Sprintf("(%s*|%%%s%%)", escaped[last], escaped[last])
	case n >= minPrefixLen:
		escaped[last] += "*"
	}
	queryStr := fmt.Sprintf("@%s:(%s)", q.Field, strings.Join(escaped, " "))

	args := []string{q.IndexName, queryStr}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	if q.SortBy != "" {
		args = append(args, "SORTBY", q.SortBy, "DESC")
	}
	args = append(args, "LIMIT", "0", strconv.Itoa(q.Limit), "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrap(db.OpSearch, err)
	}

	return parseListResult(raw)
}

// SearchList performs paginated search via FT.SEARCH.
func (s *Store) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	args := []string{index, query, "LIMIT", strconv.Itoa(offset), strconv.Itoa(limit)}

	if len(fields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(fields)))
		args = append(args, fields...)
	}
	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrap(db.OpSearch, err)
	}

	return parseListResult(raw)
}

// --- Result parsing ---
// Every shape violation is reported as db.ErrMalformedReply: a partially
// parsed page would silently drop hits.

func parseTotal(raw []rueidis.RedisMessage) (int64, error) {
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, malformed(db.OpSearch, "total: %v", err)
	}
	return total, nil
}

func parseKNNResult(raw []rueidis.RedisMessage, scoreField string, metric db.DistanceMetric) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := parseTotal(raw)
	if err != nil {
		return nil, err
	}
	if (len(raw)-1)%2 != 0 {
		return nil, malformed(db.OpSearch, "KNN reply has %d elements, want 1+2n", len(raw))
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, fields, err := parseKeyFields(raw[i], raw[i+1])
		if err != nil {
			return nil, err
		}

		scoreStr, ok := fields[scoreField]
		if !ok {
			return nil, malformed(db.OpSearch, "key %s: missing %s", key, scoreField)
		}
		distance, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			return nil, malformed(db.OpSearch, "key %s: %s=%q", key, scoreField, scoreStr)
		}
		delete(fields, scoreField)

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  metric.Similarity(distance),
			Fields: fields,
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseBM25Result(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := parseTotal(raw)
	if err != nil {
		return nil, err
	}
	if (len(raw)-1)%3 != 0 {
		return nil, malformed(db.OpSearch, "WITHSCORES reply has %d elements, want 1+3n", len(raw))
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/3)
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, fields, err := parseKeyFields(raw[i], raw[i+2])
		if err != nil {
			return nil, err
		}

		scoreStr, ok := scalarString(raw[i+1])
		if !ok {
			return nil, malformed(db.OpSearch, "key %s: score is not a scalar", key)
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil || math.IsNaN(score) || score < 0 {
			return nil, malformed(db.OpSearch, "key %s: score %q", key, scoreStr)
		}

		entries = append(entries, db.SearchEntry{Key: key, Score: score, Fields: fields})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := parseTotal(raw)
	if err != nil {
		return nil, err
	}
	if (len(raw)-1)%2 != 0 {
		return nil, malformed(db.OpSearch, "reply has %d elements, want 1+2n", len(raw))
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, fields, err := parseKeyFields(raw[i], raw[i+1])
		if err != nil {
			return nil, err
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: fields})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseKeyFields(keyMsg, fieldsMsg rueidis.RedisMessage) (string, map[string]string, error) {
	key, err := keyMsg.ToString()
	if err != nil {
		return "", nil, malformed(db.OpSearch, "document key: %v", err)
	}
	arr, err := fieldsMsg.ToArray()
	if err != nil {
		return "", nil, malformed(db.OpSearch, "key %s: fields: %v", key, err)
	}
	fields, err := parseFieldPairs(arr)
	if err != nil {
		return "", nil, fmt.Errorf("key %s: %w", key, err)
	}
	return key, fields, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) (map[string]string, error) {
	if len(fields)%2 != 0 {
		return nil, malformed(db.OpSearch, "odd number of field elements: %d", len(fields))
	}
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			return nil, malformed(db.OpSearch, "field name: %v", err)
		}
		value, ok := scalarString(fields[j+1])
		if !ok {
			return nil, malformed(db.OpSearch, "field %s: value is not a scalar", name)
		}
		m[name] = value
	}
	return m, nil
}

// scalarString reads a bulk string, integer or double reply as text.
func scalarString(m rueidis.RedisMessage) (string, bool) {
	if s, err := m.ToString(); err == nil {
		return s, true
	}
	if n, err := m.AsInt64(); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	if f, err := m.AsFloat64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

func malformed(op, format string, args ...any) error {
	return &db.Error{Op: op, Err: fmt.Errorf("%w: %s", db.ErrMalformedReply, fmt.Sprintf(format, args...))}
}

// --- Query building ---

func buildTextQuery(text string, fields []db.WeightedField) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return ""
	}
	for i, t := range tokens {
		tokens[i] = escapeQuery(t)
	}
	terms := strings.Join(tokens, "|")

	if len(fields) == 0 {
		return "(" + terms + ")"
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		clause := fmt.Sprintf("@%s:(%s)", f.Name, terms)
		if f.Weight > 0 && f.Weight != 1 {
			clause = fmt.Sprintf("(%s) => { $weight: %s; }", clause, formatFloat(f.Weight))
		}
		parts = append(parts, clause)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

// buildFilter translates filter.Expression into an FT.SEARCH pre-filter query string.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	var parts []string

	for _, cond := range expr.Must() {
		parts = append(parts, buildCondition(cond))
	}

	if shouldParts := buildShouldGroup(expr.Should()); shouldParts != "" {
		parts = append(parts, shouldParts)
	}

	for _, cond := range expr.MustNot() {
		parts = append(parts, "-"+buildCondition(cond))
	}

	return strings.Join(parts, " ")
}

func buildCondition(cond filter.Condition) string {
	switch {
	case cond.IsMatch():
		return buildTagFilter(cond.Key(), cond.Match())
	case cond.IsRange():
		return buildNumericFilter(cond.Key(), *cond.Range())
	case cond.IsGeo():
		return buildGeoFilter(cond.Key(), *cond.Geo())
	}
	return ""
}

func buildShouldGroup(conditions []filter.Condition) string {
	if len(conditions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		parts = append(parts, buildCondition(cond))
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

func buildTagFilter(key, value string) string {
	return fmt.Sprintf("@%s:{%s}", key, tagEscaper.Replace(value))
}

func buildNumericFilter(key string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GT() != nil {
		minBound = "(" + formatFloat(*r.GT())
	} else if r.GTE() != nil {
		minBound = formatFloat(*r.GTE())
	}

	if r.LT() != nil {
		maxBound = "(" + formatFloat(*r.LT())
	} else if r.LTE() != nil {
		maxBound = formatFloat(*r.LTE())
	}

	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

func buildGeoFilter(key string, r filter.Radius) string {
	return fmt.Sprintf("@%s:[%s %s %s km]", key, formatFloat(r.Lon()), formatFloat(r.Lat()), formatFloat(r.Km()))
}

// formatFloat never switches to exponent notation, so unix timestamps keep every digit.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
