// Package chi exposes the newsdex HTTP API on a chi router.
package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/newsdex/internal/domain"
	domana "github.com/kailas-cloud/newsdex/internal/domain/analytics"
	"github.com/kailas-cloud/newsdex/internal/domain/search/request"
	"github.com/kailas-cloud/newsdex/internal/domain/search/result"
	"github.com/kailas-cloud/newsdex/internal/metrics"
	analyticsuc "github.com/kailas-cloud/newsdex/internal/usecase/analytics"
	healthuc "github.com/kailas-cloud/newsdex/internal/usecase/health"
)

// maxBodyBytes bounds POST /v1/search bodies (a 4096-dim float vector fits comfortably).
const maxBodyBytes = 1 << 20

// Searcher runs hybrid queries.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) (result.Response, error)
}

// Analytics serves the read-only dashboard endpoints.
type Analytics interface {
	Suggest(ctx context.Context, prefix string, size int) ([]domana.Suggestion, error)
	TopGeoreferences(ctx context.Context, size int) ([]domana.GeoreferenceCount, error)
	Distribution(ctx context.Context, interval string, from, to *time.Time) ([]domana.Bucket, error)
	Document(ctx context.Context, id string) (domain.Document, error)
	Documents(ctx context.Context, cursor string, limit int) (analyticsuc.Page, error)
	Stats(ctx context.Context) (domana.IndexStats, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Options holds request defaults and router settings.
type Options struct {
	DefaultAlpha float64
	DefaultTopK  int
	MaxTopK      int

	APIKeys     []string
	RateLimit   float64 // requests per second, 0 disables
	RateBurst   int
	Telemetry   bool
	ServiceName string
}

// Server holds the HTTP handlers.
type Server struct {
	search    Searcher
	analytics Analytics
	health    HealthChecker
	opts      Options
	logger    *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, analytics Analytics, health HealthChecker, opts Options, logger *zap.Logger) *Server {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = request.DefaultTopK
	}
	if opts.MaxTopK <= 0 || opts.MaxTopK > request.MaxTopK {
		opts.MaxTopK = request.MaxTopK
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "newsdex"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{search: search, analytics: analytics, health: health, opts: opts, logger: logger}
}

// Handler builds the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware("/metrics"))
	r.Use(RateLimitMiddleware(s.limiter()))
	r.Use(BearerAuthMiddleware(s.opts.APIKeys))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, string(domain.KindNotFound), "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Get("/health", s.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.SearchGet)
		r.Post("/search", s.SearchPost)
		r.Get("/suggest", s.Suggest)
		r.Get("/documents", s.ListDocuments)
		r.Get("/documents/{id}", s.GetDocument)
		r.Get("/analytics/georeferences", s.TopGeoreferences)
		r.Get("/analytics/distribution", s.Distribution)
		r.Get("/stats", s.Stats)
	})

	if s.opts.Telemetry {
		return OTelMiddleware(s.opts.ServiceName)(r)
	}
	return r
}

func (s *Server) limiter() *rate.Limiter {
	if s.opts.RateLimit <= 0 {
		return nil
	}
	burst := s.opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.opts.RateLimit), burst)
}

// SearchGet handles GET /v1/search.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	var in SearchRequest
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dest any
	}{
		{"q", &in.Q},
		{"top_k", &in.TopK},
		{"alpha", &in.Alpha},
		{"date_from", &in.DateFrom},
		{"date_to", &in.DateTo},
		{"lat", &in.Lat},
		{"lon", &in.Lon},
		{"radius_km", &in.RadiusKm},
		{"georeference", &in.Georeference},
	} {
		if err := runtime.BindQueryParameter("form", true, false, p.name, q, p.dest); err != nil {
			writeError(w, http.StatusBadRequest, string(domain.KindInvalidRequest),
				fmt.Sprintf("invalid parameter %s: %v", p.name, err))
			return
		}
	}
	s.runSearch(w, r, in)
}

// SearchPost handles POST /v1/search; the body may carry a query embedding.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var in SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidRequest), "invalid request body: "+err.Error())
		return
	}
	s.runSearch(w, r, in)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, in SearchRequest) {
	req, err := in.toDomain(s.opts)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	resp, err := s.search.Search(r.Context(), &req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponseFromDomain(resp))
}

// Suggest handles GET /v1/suggest.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	var (
		prefix string
		size   *int
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "prefix", q, &prefix); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidRequest), "invalid parameter prefix: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "size", q, &size); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidRequest), "invalid parameter size: "+err.Error())
		return
	}

	items, err := s.analytics.Suggest(r.Context(), prefix, deref(size))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	out := make([]SuggestionItem, len(items))
	for i, it := range items {
		out[i] = SuggestionItem{ID: it.ID, Title: it.Title, PublishedAt: optionalTime(it.PublishedAt)}
	}
	writeJSON(w, http.StatusOK, SuggestResponse{Items: out})
}

// GetDocument handles GET /v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidRequest), "invalid parameter id: "+err.Error())
		return
	}

	doc, err := s.analytics.Document(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentFromDomain(doc))
}

// ListDocuments handles GET /v1/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var (
		cursor *string
		limit  *int
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "cursor", q, &cursor); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidRequest), "invalid parameter cursor: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidRequest), "invalid parameter limit: "+err.Error())
		return
	}

	page, err := s.analytics.Documents(r.Context(), deref(cursor), deref(limit))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	resp := DocumentListResponse{
		Items:   make([]Document, len(page.Documents)),
		Total:   page.Total,
		HasMore: page.NextCursor != "",
	}
	for i, d := range page.Documents {
		resp.Items[i] = documentFromDomain(d)
	}
	if page.NextCursor != "" {
		c := page.NextCursor
		resp.NextCursor = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

// TopGeoreferences handles GET /v1/analytics/georeferences.
func (s *Server) TopGeoreferences(w http.ResponseWriter, r *http.Request) {
	var size *int
	if err := runtime.BindQueryParameter("form", true, false, "size", r.URL.Query(), &size); err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindInvalidRequest), "invalid parameter size: "+err.Error())
		return
	}

	counts, err := s.analytics.TopGeoreferences(r.Context(), deref(size))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	out := make([]GeoreferenceCount, len(counts))
	for i, c := range counts {
		out[i] = GeoreferenceCount{Name: c.Name, Count: c.Count}
	}
	writeJSON(w, http.StatusOK, GeoreferencesResponse{Items: out})
}

// Distribution handles GET /v1/analytics/distribution.
func (s *Server) Distribution(w http.ResponseWriter, r *http.Request) {
	var (
		interval = string(domana.Day)
		fromRaw  *string
		toRaw    *string
	)
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dest any
	}{
		{"interval", &interval},
		{"date_from", &fromRaw},
		{"date_to", &toRaw},
	} {
		if err := runtime.BindQueryParameter("form", true, false, p.name, q, p.dest); err != nil {
			writeError(w, http.StatusBadRequest, string(domain.KindInvalidRequest),
				fmt.Sprintf("invalid parameter %s: %v", p.name, err))
			return
		}
	}

	from, to, err := parseBounds(fromRaw, toRaw)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	buckets, err := s.analytics.Distribution(r.Context(), interval, from, to)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	out := make([]Bucket, len(buckets))
	for i, b := range buckets {
		out[i] = Bucket{Start: b.Start.UTC(), Count: b.Count}
	}
	writeJSON(w, http.StatusOK, DistributionResponse{Interval: interval, Buckets: out})
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.analytics.Stats(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Index:          st.IndexName,
		Documents:      st.Documents,
		Dimensions:     st.Dimensions,
		Indexing:       st.Indexing,
		PercentIndexed: st.PercentIndexed,
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
