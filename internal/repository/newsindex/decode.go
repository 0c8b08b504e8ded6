package newsindex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// dateDTO is one element of the stored "dates" list.
type dateDTO struct {
	Date      string `json:"date"`
	Precision string `json:"precision,omitempty"`
}

// pointDTO is one element of the stored "points" list.
type pointDTO struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name,omitempty"`
}

// Decode builds a Document from stored hash fields. Missing metadata fields
// yield empty lists; present but unreadable ones are an error.
func Decode(id string, fields map[string]string) (domain.Document, error) {
	doc := domain.Document{
		ID:    id,
		Title: fields[FieldTitle],
		Body:  fields[FieldBody],
	}

	if raw := fields[FieldDate]; raw != "" {
		sec, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Document{}, fmt.Errorf("document %s: %s=%q: %w", id, FieldDate, raw, err)
		}
		doc.PublishedAt = time.Unix(int64(sec), 0).UTC()
	}

	dates, err := decodeDates(fields[FieldDates])
	if err != nil {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, err)
	}
	doc.Dates = dates

	points, err := decodePoints(fields[FieldPoints])
	if err != nil {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, err)
	}
	doc.Points = points

	doc.Georeferences = splitTags(fields[FieldGeoreferences])
	return doc, nil
}

func decodeDates(raw string) ([]domain.DateMention, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var dtos []dateDTO
	if err := json.Unmarshal([]byte(raw), &dtos); err != nil {
		return nil, fmt.Errorf("%s: %w", FieldDates, err)
	}
	out := make([]domain.DateMention, 0, len(dtos))
	for _, d := range dtos {
		t, err := parseDate(d.Date)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", FieldDates, err)
		}
		p, err := domain.ParseDatePrecision(d.Precision)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", FieldDates, err)
		}
		out = append(out, domain.DateMention{Time: t, Precision: p})
	}
	return out, nil
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}

func decodePoints(raw string) ([]domain.GeoPoint, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var dtos []pointDTO
	if err := json.Unmarshal([]byte(raw), &dtos); err != nil {
		return nil, fmt.Errorf("%s: %w", FieldPoints, err)
	}
	out := make([]domain.GeoPoint, 0, len(dtos))
	for _, p := range dtos {
		out = append(out, domain.GeoPoint{Lat: p.Lat, Lon: p.Lon, Name: p.Name})
	}
	return out, nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
