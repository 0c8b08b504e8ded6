package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/newsdex/internal/domain"
	domana "github.com/kailas-cloud/newsdex/internal/domain/analytics"
)

// Size limits.
const (
	MinSuggestPrefix   = 3
	DefaultSuggestSize = 10
	MaxSuggestSize     = 50
	DefaultTopSize     = 10
	MaxTopSize         = 100
	MaxPageSize        = 100
)

// Service answers the browsing queries around search: autocomplete,
// aggregates over the corpus and direct document reads.
type Service struct {
	repo Repository
	docs DocumentReader
}

// New creates an analytics service.
func New(repo Repository, docs DocumentReader) *Service {
	return &Service{repo: repo, docs: docs}
}

// Suggest returns titles starting with prefix, newest first. Prefixes shorter
// than MinSuggestPrefix runes yield no suggestions.
func (s *Service) Suggest(ctx context.Context, prefix string, size int) ([]domana.Suggestion, error) {
	prefix = strings.TrimSpace(prefix)
	if utf8.RuneCountInString(prefix) < MinSuggestPrefix {
		return []domana.Suggestion{}, nil
	}
	size = clampSize(size, DefaultSuggestSize, MaxSuggestSize)

	out, err := s.repo.SuggestTitles(ctx, prefix, size)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	return out, nil
}

// TopGeoreferences returns the most mentioned place names with their counts.
func (s *Service) TopGeoreferences(ctx context.Context, size int) ([]domana.GeoreferenceCount, error) {
	out, err := s.repo.TopGeoreferences(ctx, clampSize(size, DefaultTopSize, MaxTopSize))
	if err != nil {
		return nil, fmt.Errorf("top georeferences: %w", err)
	}
	return out, nil
}

// Distribution counts documents per interval over an optional date range.
// Empty intervals between the first and last non-empty one are reported with zero.
func (s *Service) Distribution(
	ctx context.Context, interval string, from, to *time.Time,
) ([]domana.Bucket, error) {
	iv, err := domana.ParseInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, fmt.Errorf("%w: date_from is after date_to", domain.ErrInvalidRequest)
	}

	buckets, err := s.repo.Distribution(ctx, iv, from, to)
	if err != nil {
		return nil, fmt.Errorf("distribution: %w", err)
	}
	return domana.FillGaps(buckets, iv), nil
}

// Document returns one stored document.
func (s *Service) Document(ctx context.Context, id string) (domain.Document, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Document{}, fmt.Errorf("%w: document id is required", domain.ErrInvalidRequest)
	}
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Page is one page of a document listing.
type Page struct {
	Documents  []domain.Document
	NextCursor string
	Total      int
}

// Documents lists stored documents page by page.
func (s *Service) Documents(ctx context.Context, cursor string, limit int) (Page, error) {
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	docs, next, total, err := s.docs.List(ctx, cursor, limit)
	if err != nil {
		return Page{}, fmt.Errorf("list documents: %w", err)
	}
	return Page{Documents: docs, NextCursor: next, Total: total}, nil
}

// Stats reports index counters.
func (s *Service) Stats(ctx context.Context) (domana.IndexStats, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return domana.IndexStats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func clampSize(size, def, maxSize int) int {
	if size <= 0 {
		return def
	}
	return min(size, maxSize)
}
