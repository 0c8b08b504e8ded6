package chi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
	domana "github.com/kailas-cloud/newsdex/internal/domain/analytics"
	"github.com/kailas-cloud/newsdex/internal/domain/search/hit"
	"github.com/kailas-cloud/newsdex/internal/domain/search/request"
	"github.com/kailas-cloud/newsdex/internal/domain/search/result"
	analyticsuc "github.com/kailas-cloud/newsdex/internal/usecase/analytics"
	healthuc "github.com/kailas-cloud/newsdex/internal/usecase/health"
)

func TestSearchGet_HappyPath(t *testing.T) {
	ts := newTestServer(Options{})
	ts.search.searchFn = func(_ context.Context, _ *request.Request) (result.Response, error) {
		return result.Response{
			Entries: []result.Entry{
				result.New("A", "Oil prices climb", "Crude rose...", 1, 1, 1,
					[]domain.DateMention{{Time: day(1987, 2, 26), Precision: domain.PrecisionDay}},
					[]domain.GeoPoint{{Lat: 29.37, Lon: 47.98, Name: "Kuwait"}}),
				result.New("B", "Grain", "Wheat...", 0.5, 0, 1, nil, nil),
			},
			LexicalHits:  3,
			SemanticHits: 2,
		}, nil
	}

	rr := ts.do(t, http.MethodGet,
		"/v1/search?q=oil+prices&top_k=5&alpha=0.7&date_from=1987-02&date_to=1987-03-01"+
			"&lat=29.3&lon=47.9&radius_km=50&georeference=kuwait", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	req := ts.search.last
	if req.Text() != "oil prices" || req.TopK() != 5 || req.Alpha() != 0.7 || req.Georeference() != "kuwait" {
		t.Errorf("unexpected request: text=%q topK=%d alpha=%g georef=%q",
			req.Text(), req.TopK(), req.Alpha(), req.Georeference())
	}
	dates := req.Constraint().Dates()
	if dates == nil || !dates.From().Equal(day(1987, 2, 1)) {
		t.Fatalf("date_from not parsed: %+v", dates)
	}
	if want := day(1987, 3, 2).Add(-time.Nanosecond); !dates.To().Equal(want) {
		t.Errorf("date_to = %s, want end of day %s", dates.To(), want)
	}
	area := req.Constraint().Area()
	if area == nil || area.Lat() != 29.3 || area.Lon() != 47.9 || area.RadiusKm() != 50 {
		t.Errorf("area not parsed: %+v", area)
	}

	resp := decode[SearchResponse](t, rr)
	if resp.Total != 2 || len(resp.Results) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	first := resp.Results[0]
	if first.ID != "A" || first.Title != "Oil prices climb" || first.Score != 1 {
		t.Errorf("first result = %+v", first)
	}
	if len(first.Dates) != 1 || first.Dates[0].Date != "1987-02-26" || first.Dates[0].Precision != "day" {
		t.Errorf("dates = %+v", first.Dates)
	}
	if len(first.Points) != 1 || first.Points[0].Name != "Kuwait" {
		t.Errorf("points = %+v", first.Points)
	}
	if resp.Results[1].Dates == nil || resp.Results[1].Points == nil {
		t.Error("empty metadata must serialize as [] not null")
	}
	if resp.Degraded || resp.DegradedSource != "" {
		t.Errorf("unexpected degraded flag: %+v", resp)
	}
	if resp.LexicalHits != 3 || resp.SemanticHits != 2 {
		t.Errorf("hit counts = %d/%d", resp.LexicalHits, resp.SemanticHits)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestSearchGet_Defaults(t *testing.T) {
	ts := newTestServer(Options{DefaultAlpha: 0.3, DefaultTopK: 7})

	rr := ts.do(t, http.MethodGet, "/v1/search?q=oil", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if ts.search.last.TopK() != 7 || ts.search.last.Alpha() != 0.3 {
		t.Errorf("defaults not applied: topK=%d alpha=%g", ts.search.last.TopK(), ts.search.last.Alpha())
	}
	if !ts.search.last.Constraint().IsEmpty() {
		t.Error("expected empty constraint")
	}
}

func TestSearchGet_TopKClampedToMax(t *testing.T) {
	ts := newTestServer(Options{MaxTopK: 20})

	rr := ts.do(t, http.MethodGet, "/v1/search?q=oil&top_k=50", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ts.search.last.TopK() != 20 {
		t.Errorf("topK = %d, want 20", ts.search.last.TopK())
	}
}

func TestSearchPost_Embedding(t *testing.T) {
	ts := newTestServer(Options{})

	rr := ts.do(t, http.MethodPost, "/v1/search",
		`{"q":"","embedding":[0.1,0.2,0.3],"top_k":3,"alpha":0}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	got := ts.search.last
	if len(got.Embedding()) != 3 || got.TopK() != 3 || got.Alpha() != 0 {
		t.Errorf("unexpected request: emb=%v topK=%d alpha=%g", got.Embedding(), got.TopK(), got.Alpha())
	}
}

func TestSearch_Degraded(t *testing.T) {
	ts := newTestServer(Options{})
	ts.search.searchFn = func(_ context.Context, _ *request.Request) (result.Response, error) {
		return result.Response{
			Entries:        []result.Entry{result.New("A", "t", "s", 1, 1, 0, nil, nil)},
			Degraded:       true,
			DegradedSource: hit.Semantic,
		}, nil
	}

	rr := ts.do(t, http.MethodGet, "/v1/search?q=oil", "")
	resp := decode[SearchResponse](t, rr)
	if !resp.Degraded || resp.DegradedSource != "semantic" {
		t.Errorf("degraded = %v source = %q", resp.Degraded, resp.DegradedSource)
	}
}

func TestSearch_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode string
	}{
		{"alpha above one", http.MethodGet, "/v1/search?q=oil&alpha=1.5", "", "invalid_weight"},
		{"negative alpha", http.MethodPost, "/v1/search", `{"q":"oil","alpha":-0.2}`, "invalid_weight"},
		{"non-numeric top_k", http.MethodGet, "/v1/search?q=oil&top_k=ten", "", "invalid_request"},
		{"zero top_k", http.MethodGet, "/v1/search?q=oil&top_k=0", "", "invalid_request"},
		{"empty query", http.MethodGet, "/v1/search", "", "invalid_request"},
		{"partial area", http.MethodGet, "/v1/search?q=oil&lat=10&lon=20", "", "invalid_request"},
		{"zero radius", http.MethodGet, "/v1/search?q=oil&lat=10&lon=20&radius_km=0", "", "invalid_request"},
		{"nan radius", http.MethodGet, "/v1/search?q=oil&lat=10&lon=20&radius_km=NaN", "", "invalid_request"},
		{"blank query", http.MethodGet, "/v1/search?q=%20%20", "", "invalid_request"},
		{"latitude out of range", http.MethodGet, "/v1/search?q=oil&lat=95&lon=20&radius_km=5", "", "invalid_request"},
		{"bad date", http.MethodGet, "/v1/search?q=oil&date_from=26.02.1987", "", "invalid_request"},
		{"reversed dates", http.MethodGet, "/v1/search?q=oil&date_from=1987-03-01&date_to=1987-02-01", "", "invalid_request"},
		{"unknown body field", http.MethodPost, "/v1/search", `{"q":"oil","weight":1}`, "invalid_request"},
		{"malformed body", http.MethodPost, "/v1/search", `{"q":`, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(Options{})
			rr := ts.do(t, tt.method, tt.target, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", rr.Code, rr.Body)
			}
			errResp := decode[ErrorResponse](t, rr)
			if errResp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q (%s)", errResp.Code, tt.wantCode, errResp.Message)
			}
			if ts.search.calls != 0 {
				t.Errorf("engine called %d times for rejected input", ts.search.calls)
			}
		})
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("x: %w", domain.ErrDimensionMismatch), http.StatusBadRequest, "dimension_mismatch"},
		{fmt.Errorf("x: %w", domain.ErrBackendUnavailable), http.StatusBadGateway, "backend_unavailable"},
		{fmt.Errorf("x: %w", domain.ErrMalformedResponse), http.StatusBadGateway, "malformed_response"},
		{fmt.Errorf("x: %w", domain.ErrEmbeddingProviderError), http.StatusBadGateway, "embedding_failed"},
		{fmt.Errorf("x: %w", domain.ErrBackendTimeout), http.StatusGatewayTimeout, "backend_timeout"},
		{fmt.Errorf("x: %w", context.Canceled), StatusClientClosedRequest, "cancelled"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			ts := newTestServer(Options{})
			ts.search.searchFn = func(_ context.Context, _ *request.Request) (result.Response, error) {
				return result.Response{}, tt.err
			}

			rr := ts.do(t, http.MethodGet, "/v1/search?q=oil", "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			errResp := decode[ErrorResponse](t, rr)
			if errResp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", errResp.Code, tt.wantCode)
			}
			if tt.wantStatus == http.StatusInternalServerError && errResp.Message != "internal error" {
				t.Errorf("internal details leaked: %q", errResp.Message)
			}
		})
	}
}

func TestGetDocument(t *testing.T) {
	ts := newTestServer(Options{})
	ts.analytics.documentFn = func(_ context.Context, id string) (domain.Document, error) {
		if id != "1987-02-26-0001" {
			return domain.Document{}, fmt.Errorf("get %s: %w", id, domain.ErrDocumentNotFound)
		}
		return domain.Document{
			ID:          id,
			Title:       "Kuwait oil output",
			Body:        "Kuwait said...",
			PublishedAt: day(1987, 2, 26),
			Dates:       []domain.DateMention{{Time: day(1987, 2, 1), Precision: domain.PrecisionMonth}},
		}, nil
	}

	rr := ts.do(t, http.MethodGet, "/v1/documents/1987-02-26-0001", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	doc := decode[Document](t, rr)
	if doc.ID != "1987-02-26-0001" || doc.Title != "Kuwait oil output" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.PublishedAt == nil || !doc.PublishedAt.Equal(day(1987, 2, 26)) {
		t.Errorf("published_at = %v", doc.PublishedAt)
	}
	if len(doc.Dates) != 1 || doc.Dates[0].Date != "1987-02" {
		t.Errorf("dates = %+v", doc.Dates)
	}
	if doc.Georeferences == nil {
		t.Error("georeferences must serialize as []")
	}

	rr = ts.do(t, http.MethodGet, "/v1/documents/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing: status = %d", rr.Code)
	}
	if code := decode[ErrorResponse](t, rr).Code; code != "not_found" {
		t.Errorf("missing: code = %q", code)
	}
}

func TestListDocuments(t *testing.T) {
	ts := newTestServer(Options{})
	var gotCursor string
	var gotLimit int
	ts.analytics.documentsFn = func(_ context.Context, cursor string, limit int) (analyticsuc.Page, error) {
		gotCursor, gotLimit = cursor, limit
		return analyticsuc.Page{
			Documents:  []domain.Document{{ID: "a"}, {ID: "b"}},
			NextCursor: "20",
			Total:      42,
		}, nil
	}

	rr := ts.do(t, http.MethodGet, "/v1/documents?cursor=10&limit=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if gotCursor != "10" || gotLimit != 2 {
		t.Errorf("cursor=%q limit=%d", gotCursor, gotLimit)
	}
	resp := decode[DocumentListResponse](t, rr)
	if len(resp.Items) != 2 || resp.Total != 42 || !resp.HasMore {
		t.Errorf("unexpected page: %+v", resp)
	}
	if resp.NextCursor == nil || *resp.NextCursor != "20" {
		t.Errorf("next_cursor = %v", resp.NextCursor)
	}
}

func TestSuggest(t *testing.T) {
	ts := newTestServer(Options{})
	ts.analytics.suggestFn = func(_ context.Context, prefix string, size int) ([]domana.Suggestion, error) {
		if prefix != "oil pri" || size != 5 {
			t.Errorf("prefix=%q size=%d", prefix, size)
		}
		return []domana.Suggestion{{ID: "1", Title: "Oil prices climb"}}, nil
	}

	rr := ts.do(t, http.MethodGet, "/v1/suggest?prefix=oil+pri&size=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	resp := decode[SuggestResponse](t, rr)
	if len(resp.Items) != 1 || resp.Items[0].Title != "Oil prices climb" || resp.Items[0].PublishedAt != nil {
		t.Errorf("unexpected suggestions: %+v", resp.Items)
	}

	if rr := ts.do(t, http.MethodGet, "/v1/suggest", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing prefix: status = %d", rr.Code)
	}
}

func TestTopGeoreferences(t *testing.T) {
	ts := newTestServer(Options{})
	ts.analytics.topFn = func(_ context.Context, size int) ([]domana.GeoreferenceCount, error) {
		if size != 0 {
			t.Errorf("size = %d, want 0 (service default)", size)
		}
		return []domana.GeoreferenceCount{{Name: "usa", Count: 120}, {Name: "japan", Count: 44}}, nil
	}

	rr := ts.do(t, http.MethodGet, "/v1/analytics/georeferences", "")
	resp := decode[GeoreferencesResponse](t, rr)
	if len(resp.Items) != 2 || resp.Items[0].Name != "usa" || resp.Items[0].Count != 120 {
		t.Errorf("unexpected counts: %+v", resp.Items)
	}
}

func TestDistribution(t *testing.T) {
	ts := newTestServer(Options{})
	ts.analytics.distributionFn = func(
		_ context.Context, interval string, from, to *time.Time,
	) ([]domana.Bucket, error) {
		if interval == "week" {
			return nil, fmt.Errorf("%w: unknown interval", domain.ErrInvalidRequest)
		}
		if interval != "month" || from == nil || !from.Equal(day(1987, 1, 1)) || to != nil {
			t.Errorf("interval=%q from=%v to=%v", interval, from, to)
		}
		return []domana.Bucket{{Start: day(1987, 1, 1), Count: 3}, {Start: day(1987, 2, 1), Count: 0}}, nil
	}

	rr := ts.do(t, http.MethodGet, "/v1/analytics/distribution?interval=month&date_from=1987", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	resp := decode[DistributionResponse](t, rr)
	if resp.Interval != "month" || len(resp.Buckets) != 2 || resp.Buckets[0].Count != 3 {
		t.Errorf("unexpected distribution: %+v", resp)
	}

	if rr := ts.do(t, http.MethodGet, "/v1/analytics/distribution?interval=week", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad interval: status = %d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/v1/analytics/distribution?date_to=someday", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad date: status = %d", rr.Code)
	}
}

func TestStats(t *testing.T) {
	ts := newTestServer(Options{})
	ts.analytics.statsFn = func(_ context.Context) (domana.IndexStats, error) {
		return domana.IndexStats{IndexName: "newsdex:idx", Documents: 21578, Dimensions: 384, PercentIndexed: 1}, nil
	}

	resp := decode[StatsResponse](t, ts.do(t, http.MethodGet, "/v1/stats", ""))
	if resp.Index != "newsdex:idx" || resp.Documents != 21578 || resp.Dimensions != 384 {
		t.Errorf("unexpected stats: %+v", resp)
	}

	ts.analytics.statsFn = func(_ context.Context) (domana.IndexStats, error) {
		return domana.IndexStats{}, fmt.Errorf("stats: %w", domain.ErrBackendUnavailable)
	}
	if rr := ts.do(t, http.MethodGet, "/v1/stats", ""); rr.Code != http.StatusBadGateway {
		t.Errorf("backend down: status = %d", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			ts := newTestServer(Options{APIKeys: []string{"secret"}})
			ts.health.report = healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{healthuc.ComponentDatabase: healthuc.CheckOK},
			}

			rr := ts.do(t, http.MethodGet, "/health", "")
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			resp := decode[HealthResponse](t, rr)
			if resp.Status != string(tt.status) || resp.Checks["database"] != "ok" {
				t.Errorf("unexpected body: %+v", resp)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(Options{RateLimit: 0.001, RateBurst: 1})

	if rr := ts.do(t, http.MethodGet, "/v1/search?q=oil", ""); rr.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", rr.Code)
	}
	rr := ts.do(t, http.MethodGet, "/v1/search?q=oil", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", rr.Code)
	}
	if code := decode[ErrorResponse](t, rr).Code; code != codeRateLimited {
		t.Errorf("code = %q", code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rr := ts.do(t, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health must bypass the limiter, got %d", rr.Code)
	}
}

func TestAuthRequiredOnAPI(t *testing.T) {
	ts := newTestServer(Options{APIKeys: []string{"secret"}})
	if rr := ts.do(t, http.MethodGet, "/v1/stats", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestRecoverer(t *testing.T) {
	ts := newTestServer(Options{})
	ts.search.searchFn = func(_ context.Context, _ *request.Request) (result.Response, error) {
		panic("unexpected nil")
	}

	rr := ts.do(t, http.MethodGet, "/v1/search?q=oil", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if code := decode[ErrorResponse](t, rr).Code; code != codeInternal {
		t.Errorf("code = %q", code)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(Options{})
	rr := ts.do(t, http.MethodGet, "/v2/search", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if code := decode[ErrorResponse](t, rr).Code; code != "not_found" {
		t.Errorf("code = %q", code)
	}
}

func TestTelemetryEnabled(t *testing.T) {
	ts := newTestServer(Options{Telemetry: true})
	if rr := ts.do(t, http.MethodGet, "/v1/search?q=oil", ""); rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
}
