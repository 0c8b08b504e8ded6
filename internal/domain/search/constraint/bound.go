package constraint

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// ParseBound parses a date range bound written as YYYY, YYYY-MM, YYYY-MM-DD or
// RFC 3339. Partial dates cover their whole period: a lower bound starts at the
// first instant of it and an upper bound ends at the last.
func ParseBound(s string, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}

	layouts := []struct {
		layout    string
		precision domain.DatePrecision
	}{
		{time.DateOnly, domain.PrecisionDay},
		{"2006-01", domain.PrecisionMonth},
		{"2006", domain.PrecisionYear},
	}
	for _, l := range layouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		start, end := domain.DateMention{Time: t, Precision: l.precision}.Span()
		if upper {
			return end, nil
		}
		return start, nil
	}
	return time.Time{}, fmt.Errorf("date %q: want YYYY, YYYY-MM, YYYY-MM-DD or RFC 3339", s)
}
