package constraint

import (
	"testing"
	"time"
)

func TestParseBound(t *testing.T) {
	tests := []struct {
		in    string
		upper bool
		want  time.Time
	}{
		{"1987-02-26", false, time.Date(1987, 2, 26, 0, 0, 0, 0, time.UTC)},
		{"1987-02-26", true, time.Date(1987, 2, 26, 23, 59, 59, 999999999, time.UTC)},
		{"1987-02", false, time.Date(1987, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"1987-02", true, time.Date(1987, 2, 28, 23, 59, 59, 999999999, time.UTC)},
		{"1987", true, time.Date(1987, 12, 31, 23, 59, 59, 999999999, time.UTC)},
		{"1987-02-26T10:30:00+02:00", true, time.Date(1987, 2, 26, 8, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseBound(tt.in, tt.upper)
		if err != nil {
			t.Fatalf("ParseBound(%q): %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseBound(%q, %v) = %s, want %s", tt.in, tt.upper, got, tt.want)
		}
	}

	for _, bad := range []string{"", "26/02/1987", "1987-13", "yesterday"} {
		if _, err := ParseBound(bad, false); err == nil {
			t.Errorf("ParseBound(%q) expected error", bad)
		}
	}
}
