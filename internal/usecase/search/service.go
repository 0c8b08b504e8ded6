package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/search/filter"
	"github.com/kailas-cloud/newsdex/internal/domain/search/hit"
	"github.com/kailas-cloud/newsdex/internal/domain/search/request"
	"github.com/kailas-cloud/newsdex/internal/domain/search/result"
	"github.com/kailas-cloud/newsdex/internal/logger"
	"github.com/kailas-cloud/newsdex/internal/metrics"
)

// FilterMode decides where the spatiotemporal constraint is applied.
type FilterMode string

const (
	// FilterPost applies the constraint only to fetched candidates.
	FilterPost FilterMode = "post"
	// FilterPre also narrows both backend queries by the primary date and
	// location fields; candidates are still checked against every mention.
	FilterPre FilterMode = "pre"
)

// Engine defaults.
const (
	DefaultBackendTimeout      = 2 * time.Second
	DefaultCandidateMultiplier = 3
)

// Fields names the index fields used to build backend pre-filters.
type Fields struct {
	Date          string
	Location      string
	Georeferences string
}

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	BackendTimeout      time.Duration
	Retry               RetryConfig
	AllowDegraded       bool
	FilterMode          FilterMode
	CandidateMultiplier int
	SnippetLength       int
	Fields              Fields
}

func (c Config) withDefaults() Config {
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = DefaultBackendTimeout
	}
	c.Retry = c.Retry.withDefaults()
	if c.FilterMode == "" {
		c.FilterMode = FilterPost
	}
	if c.CandidateMultiplier < 1 {
		c.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if c.SnippetLength <= 0 {
		c.SnippetLength = DefaultSnippetLength
	}
	if c.Fields.Date == "" {
		c.Fields.Date = "date"
	}
	if c.Fields.Location == "" {
		c.Fields.Location = "location"
	}
	if c.Fields.Georeferences == "" {
		c.Fields.Georeferences = "georeferences"
	}
	return c
}

// Service is the hybrid query engine. It holds no per-query state and is safe
// for concurrent use.
type Service struct {
	lex    LexicalSearcher
	sem    SemanticSearcher
	embed  Embedder
	cfg    Config
	tracer trace.Tracer
}

// New creates the engine. embed may be nil.
func New(lex LexicalSearcher, sem SemanticSearcher, embed Embedder, cfg Config) *Service {
	return &Service{
		lex:    lex,
		sem:    sem,
		embed:  embed,
		cfg:    cfg.withDefaults(),
		tracer: otel.Tracer("newsdex/search"),
	}
}

// run tracks one query through its stages.
type run struct {
	stage Stage
	span  trace.Span
	log   *zap.Logger
}

func (r *run) enter(st Stage) {
	r.stage = st
	r.span.AddEvent(st.String())
	r.log.Debug("Search stage", zap.Stringer("stage", st))
}

// fetched holds the outcome of the FETCHING stage.
type fetched struct {
	lex       []hit.Scored
	sem       []hit.Scored
	lexErr    error
	semErr    error
	lexActive bool
	semActive bool
}

// Search runs one hybrid query: fetch both sources concurrently, normalize
// each list, apply the spatiotemporal constraint, and blend under alpha.
// An empty result is a success.
func (s *Service) Search(ctx context.Context, req *request.Request) (result.Response, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "search.Search", trace.WithAttributes(
		attribute.Int("search.top_k", req.TopK()),
		attribute.Float64("search.alpha", req.Alpha()),
	))
	defer span.End()

	r := &run{span: span, log: logger.FromContext(ctx)}
	r.enter(StageReceived)

	resp, err := s.search(ctx, r, req)
	if err != nil {
		kind := domain.KindOf(err)
		metrics.SearchFailuresTotal.WithLabelValues(r.stage.String(), string(kind)).Inc()
		metrics.SearchDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Warn("Search failed",
			zap.Stringer("stage", r.stage),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		r.enter(StageFailed)
		return result.Response{}, err
	}

	outcome := "ok"
	if resp.Degraded {
		outcome = "degraded"
	}
	metrics.SearchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	r.enter(StageDone)
	return resp, nil
}

func (s *Service) search(ctx context.Context, r *run, req *request.Request) (result.Response, error) {
	vec, err := s.checkPreconditions(req)
	if err != nil {
		return result.Response{}, err
	}
	prefilter, err := s.prefilter(req)
	if err != nil {
		return result.Response{}, err
	}

	r.enter(StageFetching)
	f := fetched{lexActive: req.Text() != "", semActive: len(vec) > 0}
	if len(vec) == 0 && req.Text() != "" && s.embed != nil && s.sem != nil {
		f.semActive = true
		vec, err = s.embedQuery(ctx, req.Text())
		switch {
		case err == nil:
		case s.cfg.AllowDegraded && !domain.IsPrecondition(err) && ctx.Err() == nil:
			f.semErr = err
		default:
			return result.Response{}, err
		}
	}

	if err = s.fetch(ctx, req.Text(), vec, s.candidates(req), prefilter, &f); err != nil {
		return result.Response{}, err
	}
	resp, err := s.degrade(f)
	if err != nil {
		return result.Response{}, err
	}
	metrics.SearchHits.WithLabelValues(string(hit.Lexical)).Observe(float64(len(f.lex)))
	metrics.SearchHits.WithLabelValues(string(hit.Semantic)).Observe(float64(len(f.sem)))

	r.enter(StageNormalizing)
	lexN, semN := Normalize(f.lex), Normalize(f.sem)

	r.enter(StageFiltering)
	lexN = FilterHits(lexN, req.Constraint())
	semN = FilterHits(semN, req.Constraint())

	r.enter(StageBlending)
	entries, err := Blend(lexN, semN, req.Alpha(), s.cfg.SnippetLength)
	if err != nil {
		return result.Response{}, err
	}
	if len(entries) > req.TopK() {
		entries = entries[:req.TopK()]
	}
	if err = ctx.Err(); err != nil {
		return result.Response{}, fmt.Errorf("search: %w", err)
	}

	resp.Entries = entries
	resp.LexicalHits = len(f.lex)
	resp.SemanticHits = len(f.sem)
	return resp, nil
}

// checkPreconditions validates what can be checked without a network call and
// returns the caller-supplied vector, if any.
func (s *Service) checkPreconditions(req *request.Request) ([]float32, error) {
	if req.TopK() <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidRequest)
	}
	if req.Text() == "" && len(req.Embedding()) == 0 {
		return nil, fmt.Errorf("%w: query text or embedding is required", domain.ErrInvalidRequest)
	}
	if err := validateAlpha(req.Alpha()); err != nil {
		return nil, err
	}
	vec := req.Embedding()
	if len(vec) > 0 {
		if s.sem == nil {
			return nil, fmt.Errorf("%w: semantic search is not configured", domain.ErrInvalidRequest)
		}
		if err := s.checkDimensions(vec); err != nil {
			return nil, err
		}
	}
	return vec, nil
}

func (s *Service) checkDimensions(vec []float32) error {
	if want := s.sem.Dimensions(); len(vec) != want {
		return fmt.Errorf("%w: got %d, index has %d", domain.ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

// prefilter builds the backend-side narrowing shared by both sources.
func (s *Service) prefilter(req *request.Request) (filter.Expression, error) {
	var must []filter.Condition

	if g := req.Georeference(); g != "" {
		c, err := filter.NewMatch(s.cfg.Fields.Georeferences, g)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("%w: georeference: %w", domain.ErrInvalidRequest, err)
		}
		must = append(must, c)
	}

	if s.cfg.FilterMode == FilterPre && !req.Constraint().IsEmpty() {
		expr, err := req.Constraint().Expression(s.cfg.Fields.Date, s.cfg.Fields.Location)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		must = append(must, expr.Must()...)
	}

	expr, err := filter.NewExpression(must, nil, nil)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return expr, nil
}

// candidates is the per-source fetch size. A constrained query fetches a
// larger pool so post-filtering still leaves up to top_k results.
func (s *Service) candidates(req *request.Request) int {
	if req.Constraint().IsEmpty() {
		return req.TopK()
	}
	return req.TopK() * s.cfg.CandidateMultiplier
}

func (s *Service) embedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := s.tracer.Start(ctx, "search.embed")
	defer span.End()

	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("embed query: %w", ctxErr)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	if err = s.checkDimensions(res.Embedding); err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	return res.Embedding, nil
}

// fetch runs the active sources concurrently. Without degraded mode the first
// failure cancels the other source and is returned. With it, failures are
// recorded in f and resolved by degrade.
func (s *Service) fetch(
	ctx context.Context, text string, vec []float32, pool int,
	prefilter filter.Expression, f *fetched,
) error {
	g, gctx := errgroup.WithContext(ctx)

	if text != "" {
		g.Go(func() error {
			hits, err := s.fetchSource(gctx, hit.Lexical, func(ctx context.Context) ([]hit.Scored, error) {
				return s.lex.Search(ctx, text, pool, prefilter)
			})
			f.lex, f.lexErr = hits, err
			if err != nil && !s.cfg.AllowDegraded {
				return err
			}
			return nil
		})
	}

	if len(vec) > 0 {
		g.Go(func() error {
			hits, err := s.fetchSource(gctx, hit.Semantic, func(ctx context.Context) ([]hit.Scored, error) {
				return s.sem.Search(ctx, vec, pool, prefilter)
			})
			f.sem, f.semErr = hits, err
			if err != nil && !s.cfg.AllowDegraded {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("fetch: %w", ctxErr)
	}
	return err
}

func (s *Service) fetchSource(
	ctx context.Context, src hit.Source, fn func(ctx context.Context) ([]hit.Scored, error),
) ([]hit.Scored, error) {
	ctx, span := s.tracer.Start(ctx, "search.fetch."+string(src))
	defer span.End()

	onRetry := func(attempt int, err error) {
		metrics.BackendRetriesTotal.WithLabelValues(string(src)).Inc()
		logger.FromContext(ctx).Debug("Retrying backend call",
			zap.String("source", string(src)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	hits, err := retryWithBackoff(ctx, s.cfg.Retry, s.cfg.BackendTimeout, onRetry, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.hits", len(hits)))
	return hits, nil
}

// degrade decides whether a partial fetch can still be answered. It fails
// when both sources failed, when the only active source failed, or when the
// failure is a precondition violation.
func (s *Service) degrade(f fetched) (result.Response, error) {
	switch {
	case f.lexErr == nil && f.semErr == nil:
		return result.Response{}, nil
	case f.lexErr != nil && f.semErr != nil:
		return result.Response{}, errors.Join(f.lexErr, f.semErr)
	}

	failed, err := hit.Lexical, f.lexErr
	if f.semErr != nil {
		failed, err = hit.Semantic, f.semErr
	}
	if !s.cfg.AllowDegraded || domain.IsPrecondition(err) || !(f.lexActive && f.semActive) {
		return result.Response{}, err
	}

	metrics.SearchDegradedTotal.WithLabelValues(string(failed)).Inc()
	return result.Response{Degraded: true, DegradedSource: failed}, nil
}
