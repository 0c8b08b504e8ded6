package newsindex

import (
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/newsdex/internal/db"
	"github.com/kailas-cloud/newsdex/internal/domain"
)

func testSchema() Schema {
	return Schema{
		Name:       "newsdex:idx",
		Prefix:     "newsdex:doc:",
		Dimensions: 384,
		Metric:     db.DistanceCosine,
	}
}

func TestDefinition(t *testing.T) {
	def, err := testSchema().Definition()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "FT.CREATE newsdex:idx ON HASH PREFIX newsdex:doc: SCHEMA " +
		"title TEXT body TEXT vector VECTOR HNSW date NUMERIC location GEO georeferences TAG"
	if got := def.String(); got != want {
		t.Errorf("definition:\n got %s\nwant %s", got, want)
	}
	vec := def.Fields[2]
	if vec.VectorDim != 384 || vec.VectorM != DefaultHNSWM || vec.VectorEFConstruct != DefaultHNSWEFConstruct {
		t.Errorf("vector field = %+v", vec)
	}
	if !def.Fields[3].Sortable {
		t.Error("date must be sortable")
	}
}

func TestDefinition_InvalidName(t *testing.T) {
	s := testSchema()
	s.Name = "bad name"
	if _, err := s.Definition(); err == nil {
		t.Fatal("expected error")
	}
}

func TestKeyAndID(t *testing.T) {
	s := testSchema()
	if k := s.Key("12"); k != "newsdex:doc:12" {
		t.Errorf("Key = %q", k)
	}
	if id := s.ID("newsdex:doc:12"); id != "12" {
		t.Errorf("ID = %q", id)
	}
	if id := s.ID("7d1c"); id != "7d1c" {
		t.Errorf("ID without prefix = %q", id)
	}
}

func TestDecode(t *testing.T) {
	doc, err := Decode("12", map[string]string{
		FieldTitle:         "Oil prices",
		FieldBody:          "Crude rose on Thursday.",
		FieldDate:          "541296000",
		FieldDates:         `[{"date":"1987-02-26","precision":"day"},{"date":"1987-03-01T00:00:00Z","precision":"month"},{"date":"1988-01-01"}]`,
		FieldPoints:        `[{"lat":29.76,"lon":-95.37,"name":"Houston"}]`,
		FieldGeoreferences: "usa, saudi arabia,",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID != "12" || doc.Title != "Oil prices" || doc.Body != "Crude rose on Thursday." {
		t.Errorf("doc = %+v", doc)
	}
	if !doc.PublishedAt.Equal(time.Date(1987, 2, 26, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedAt = %v", doc.PublishedAt)
	}
	if len(doc.Dates) != 3 {
		t.Fatalf("expected 3 dates, got %d", len(doc.Dates))
	}
	if doc.Dates[1].Precision != domain.PrecisionMonth || doc.Dates[2].Precision != domain.PrecisionDay {
		t.Errorf("precisions = %v, %v", doc.Dates[1].Precision, doc.Dates[2].Precision)
	}
	if len(doc.Points) != 1 || doc.Points[0].Name != "Houston" || doc.Points[0].Lon != -95.37 {
		t.Errorf("points = %+v", doc.Points)
	}
	if strings.Join(doc.Georeferences, "|") != "usa|saudi arabia" {
		t.Errorf("georeferences = %v", doc.Georeferences)
	}
}

func TestDecode_MissingMetadata(t *testing.T) {
	doc, err := Decode("1", map[string]string{FieldTitle: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Dates != nil || doc.Points != nil || doc.Georeferences != nil {
		t.Errorf("expected empty metadata, got %+v", doc)
	}
	if !doc.PublishedAt.IsZero() {
		t.Errorf("PublishedAt = %v", doc.PublishedAt)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"bad date number", map[string]string{FieldDate: "yesterday"}},
		{"dates not json", map[string]string{FieldDates: "1987-02-26"}},
		{"dates bad value", map[string]string{FieldDates: `[{"date":"26/02/1987"}]`}},
		{"dates bad precision", map[string]string{FieldDates: `[{"date":"1987-02-26","precision":"week"}]`}},
		{"points not json", map[string]string{FieldPoints: "29.76,-95.37"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode("x", tt.fields); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
