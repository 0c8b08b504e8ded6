package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed; lexical search still works.
	Degraded Status = "degraded"
	// Unhealthy indicates search cannot be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentDatabase  = "database"
	ComponentIndex     = "index"
	ComponentEmbedding = "embedding"
)

// DefaultCheckTimeout bounds each individual check.
const DefaultCheckTimeout = 2 * time.Second

var errIndexMissing = errors.New("index does not exist")

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	index     IndexChecker
	indexName string
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. index and embedding can be nil.
func New(db DBPinger, index IndexChecker, indexName string, embedding EmbeddingChecker) *Service {
	return &Service{
		db:        db,
		index:     index,
		indexName: indexName,
		embedding: embedding,
		timeout:   DefaultCheckTimeout,
	}
}

type check struct {
	name     string
	critical bool
	run      func(ctx context.Context) error
}

// Check runs all component checks concurrently. A failing database or index
// makes the service unhealthy; a failing embedding provider only degrades it.
func (s *Service) Check(ctx context.Context) Report {
	checks := []check{{name: ComponentDatabase, critical: true, run: s.db.Ping}}
	if s.index != nil {
		checks = append(checks, check{name: ComponentIndex, critical: true, run: s.checkIndex})
	}
	if s.embedding != nil {
		checks = append(checks, check{name: ComponentEmbedding, run: s.embedding.HealthCheck})
	}

	var mu sync.Mutex
	results := make(map[string]CheckResult, len(checks))
	status := Healthy

	var g errgroup.Group
	for _, c := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := c.run(cctx); err != nil {
				res = CheckError
			}

			mu.Lock()
			defer mu.Unlock()
			results[c.name] = res
			switch {
			case res == CheckOK:
			case c.critical:
				status = Unhealthy
			case status == Healthy:
				status = Degraded
			}
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: status, Checks: results}
}

func (s *Service) checkIndex(ctx context.Context) error {
	ok, err := s.index.IndexExists(ctx, s.indexName)
	if err != nil {
		return err
	}
	if !ok {
		return errIndexMissing
	}
	return nil
}
