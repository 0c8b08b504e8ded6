package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
	domana "github.com/kailas-cloud/newsdex/internal/domain/analytics"
	"github.com/kailas-cloud/newsdex/internal/domain/search/request"
	"github.com/kailas-cloud/newsdex/internal/domain/search/result"
	analyticsuc "github.com/kailas-cloud/newsdex/internal/usecase/analytics"
	healthuc "github.com/kailas-cloud/newsdex/internal/usecase/health"
)

type fakeSearcher struct {
	searchFn func(ctx context.Context, req *request.Request) (result.Response, error)
	calls    int
	last     request.Request
}

func (f *fakeSearcher) Search(ctx context.Context, req *request.Request) (result.Response, error) {
	f.calls++
	f.last = *req
	if f.searchFn != nil {
		return f.searchFn(ctx, req)
	}
	return result.Response{}, nil
}

type fakeAnalytics struct {
	suggestFn      func(ctx context.Context, prefix string, size int) ([]domana.Suggestion, error)
	topFn          func(ctx context.Context, size int) ([]domana.GeoreferenceCount, error)
	distributionFn func(ctx context.Context, interval string, from, to *time.Time) ([]domana.Bucket, error)
	documentFn     func(ctx context.Context, id string) (domain.Document, error)
	documentsFn    func(ctx context.Context, cursor string, limit int) (analyticsuc.Page, error)
	statsFn        func(ctx context.Context) (domana.IndexStats, error)
}

func (f *fakeAnalytics) Suggest(ctx context.Context, prefix string, size int) ([]domana.Suggestion, error) {
	if f.suggestFn != nil {
		return f.suggestFn(ctx, prefix, size)
	}
	return []domana.Suggestion{}, nil
}

func (f *fakeAnalytics) TopGeoreferences(ctx context.Context, size int) ([]domana.GeoreferenceCount, error) {
	if f.topFn != nil {
		return f.topFn(ctx, size)
	}
	return nil, nil
}

func (f *fakeAnalytics) Distribution(
	ctx context.Context, interval string, from, to *time.Time,
) ([]domana.Bucket, error) {
	if f.distributionFn != nil {
		return f.distributionFn(ctx, interval, from, to)
	}
	return nil, nil
}

func (f *fakeAnalytics) Document(ctx context.Context, id string) (domain.Document, error) {
	if f.documentFn != nil {
		return f.documentFn(ctx, id)
	}
	return domain.Document{}, domain.ErrDocumentNotFound
}

func (f *fakeAnalytics) Documents(ctx context.Context, cursor string, limit int) (analyticsuc.Page, error) {
	if f.documentsFn != nil {
		return f.documentsFn(ctx, cursor, limit)
	}
	return analyticsuc.Page{}, nil
}

func (f *fakeAnalytics) Stats(ctx context.Context) (domana.IndexStats, error) {
	if f.statsFn != nil {
		return f.statsFn(ctx)
	}
	return domana.IndexStats{}, nil
}

type fakeHealth struct {
	report healthuc.Report
}

func (f *fakeHealth) Check(_ context.Context) healthuc.Report { return f.report }

type testServer struct {
	search    *fakeSearcher
	analytics *fakeAnalytics
	health    *fakeHealth
	handler   http.Handler
}

func newTestServer(opts Options) *testServer {
	ts := &testServer{
		search:    &fakeSearcher{},
		analytics: &fakeAnalytics{},
		health: &fakeHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{healthuc.ComponentDatabase: healthuc.CheckOK},
		}},
	}
	if opts.DefaultAlpha == 0 {
		opts.DefaultAlpha = 0.5
	}
	ts.handler = NewServer(ts.search, ts.analytics, ts.health, opts, nil).Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader = http.NoBody
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response (status %d): %v", rr.Code, err)
	}
	return v
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
