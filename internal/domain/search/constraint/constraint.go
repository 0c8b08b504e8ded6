package constraint

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/geo"
	"github.com/kailas-cloud/newsdex/internal/domain/search/filter"
)

// Constraint is an optional date range plus an optional geographic circle.
// Both are hard filters; an empty Constraint lets every document through.
type Constraint struct {
	dates *DateRange
	area  *Area
}

// New combines the given dimensions. Nil means the dimension is inactive.
func New(dates *DateRange, area *Area) Constraint {
	return Constraint{dates: dates, area: area}
}

// Dates returns the temporal dimension or nil.
func (c Constraint) Dates() *DateRange { return c.dates }

// Area returns the geographic dimension or nil.
func (c Constraint) Area() *Area { return c.area }

// IsEmpty reports whether no dimension is active.
func (c Constraint) IsEmpty() bool { return c.dates == nil && c.area == nil }

// Match reports whether doc satisfies every active dimension and returns the
// date mentions and points that satisfied them. For an inactive dimension all
// of the document's metadata is returned unchanged.
func (c Constraint) Match(doc domain.Document) (dates []domain.DateMention, points []domain.GeoPoint, ok bool) {
	dates, points = doc.Dates, doc.Points

	if c.dates != nil {
		dates = nil
		for _, m := range doc.Dates {
			if c.dates.Overlaps(m) {
				dates = append(dates, m)
			}
		}
		if len(dates) == 0 {
			return nil, nil, false
		}
	}

	if c.area != nil {
		points = nil
		for _, p := range doc.Points {
			if c.area.Contains(p) {
				points = append(points, p)
			}
		}
		if len(points) == 0 {
			return nil, nil, false
		}
	}

	return dates, points, true
}

// Expression renders the constraint as a backend pre-filter over the document's
// primary date (unix seconds) and primary location fields.
func (c Constraint) Expression(dateField, geoField string) (filter.Expression, error) {
	var must []filter.Condition

	if c.dates != nil {
		var gte, lte *float64
		if c.dates.from != nil {
			v := float64(c.dates.from.Unix())
			gte = &v
		}
		if c.dates.to != nil {
			v := float64(c.dates.to.Unix())
			lte = &v
		}
		r, err := filter.NewRangeFilter(nil, gte, nil, lte)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("date range: %w", err)
		}
		cond, err := filter.NewRange(dateField, r)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("date range: %w", err)
		}
		must = append(must, cond)
	}

	if c.area != nil {
		r, err := filter.NewRadius(c.area.lat, c.area.lon, c.area.radiusKm)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("geo radius: %w", err)
		}
		cond, err := filter.NewGeo(geoField, r)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("geo radius: %w", err)
		}
		must = append(must, cond)
	}

	return filter.NewExpression(must, nil, nil)
}

// DateRange is an inclusive interval; either end may be open.
type DateRange struct {
	from *time.Time
	to   *time.Time
}

// NewDateRange validates the bounds. At least one bound is required.
func NewDateRange(from, to *time.Time) (DateRange, error) {
	if from == nil && to == nil {
		return DateRange{}, errors.New("date range needs at least one bound")
	}
	if from != nil && to != nil && from.After(*to) {
		return DateRange{}, fmt.Errorf("date_from %s is after date_to %s",
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return DateRange{from: from, to: to}, nil
}

// From returns the lower bound or nil.
func (r DateRange) From() *time.Time { return r.from }

// To returns the upper bound or nil.
func (r DateRange) To() *time.Time { return r.to }

// Overlaps reports whether the span covered by m intersects the range.
// A day-precision mention on the boundary day matches.
func (r DateRange) Overlaps(m domain.DateMention) bool {
	start, end := m.Span()
	if r.from != nil && end.Before(*r.from) {
		return false
	}
	if r.to != nil && start.After(*r.to) {
		return false
	}
	return true
}

// Area is a circle of RadiusKm around a center point.
type Area struct {
	lat      float64
	lon      float64
	radiusKm float64
}

// NewArea validates center coordinates and a positive finite radius.
func NewArea(lat, lon, radiusKm float64) (Area, error) {
	if !geo.ValidateCoordinates(lat, lon) {
		return Area{}, fmt.Errorf("geo center (%g, %g) out of range", lat, lon)
	}
	if !(radiusKm > 0) || math.IsInf(radiusKm, 0) {
		return Area{}, fmt.Errorf("radius_km must be positive and finite, got %g", radiusKm)
	}
	return Area{lat: lat, lon: lon, radiusKm: radiusKm}, nil
}

// Lat returns the center latitude.
func (a Area) Lat() float64 { return a.lat }

// Lon returns the center longitude.
func (a Area) Lon() float64 { return a.lon }

// RadiusKm returns the radius in kilometers.
func (a Area) RadiusKm() float64 { return a.radiusKm }

// Contains reports whether p lies within the circle by great-circle distance.
func (a Area) Contains(p domain.GeoPoint) bool {
	return geo.Haversine(a.lat, a.lon, p.Lat, p.Lon) <= a.radiusKm*1000
}
