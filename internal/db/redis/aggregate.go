package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/newsdex/internal/db"
)

// Aggregate runs FT.AGGREGATE and returns one field map per result row.
func (s *Store) Aggregate(ctx context.Context, q *db.AggregateQuery) ([]map[string]string, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("%w: index name is required", db.ErrInvalidQuery)
	}
	query := q.Query
	if query == "" {
		query = "*"
	}

	args := []string{q.IndexName, query}
	if len(q.Load) > 0 {
		args = append(args, "LOAD", strconv.Itoa(len(q.Load)))
		for _, f := range q.Load {
			args = append(args, "@"+f)
		}
	}
	args = append(args, q.Steps...)
	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrap(db.OpAggregate, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	// [count, row1, row2, ...]; each row is a flat field/value array.
	rows := make([]map[string]string, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		arr, err := raw[i].ToArray()
		if err != nil {
			return nil, malformed(db.OpAggregate, "row %d: %v", i, err)
		}
		row, err := parseFieldPairs(arr)
		if err != nil {
			return nil, fmt.Errorf("aggregate row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
