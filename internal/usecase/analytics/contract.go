package analytics

import (
	"context"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
	domana "github.com/kailas-cloud/newsdex/internal/domain/analytics"
)

// Repository reads aggregates from the search index.
type Repository interface {
	SuggestTitles(ctx context.Context, prefix string, size int) ([]domana.Suggestion, error)
	TopGeoreferences(ctx context.Context, size int) ([]domana.GeoreferenceCount, error)
	Distribution(ctx context.Context, interval domana.Interval, from, to *time.Time) ([]domana.Bucket, error)
	Stats(ctx context.Context) (domana.IndexStats, error)
}

// DocumentReader reads stored documents.
type DocumentReader interface {
	Get(ctx context.Context, id string) (domain.Document, error)
	List(ctx context.Context, cursor string, limit int) ([]domain.Document, string, int, error)
}
