package document

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/newsdex/internal/db"
	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/repository/newsindex"
)

// store is the consumer interface for documents (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
}

// DefaultPageSize is used when List is called without a limit.
const DefaultPageSize = 20

// Repo reads stored news documents.
type Repo struct {
	store  store
	schema newsindex.Schema
}

// New creates a document repository.
func New(s store, schema newsindex.Schema) *Repo {
	return &Repo{store: s, schema: schema}
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Document, error) {
	key := r.schema.Key(id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
		}
		return domain.Document{}, newsindex.Classify("hgetall "+key, err)
	}

	doc, err := newsindex.Decode(id, fields)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}
	return doc, nil
}

// List returns documents with cursor-based pagination via FT.SEARCH.
// The cursor is the offset of the next page; an empty next cursor means the end.
func (r *Repo) List(ctx context.Context, cursor string, limit int) ([]domain.Document, string, int, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, "", 0, fmt.Errorf("%w: invalid cursor %q", domain.ErrInvalidRequest, cursor)
		}
		offset = n
	}

	sr, err := r.store.SearchList(ctx, r.schema.Name, "*", offset, limit, newsindex.ReturnFields())
	if err != nil {
		return nil, "", 0, newsindex.Classify("list documents", err)
	}

	docs := make([]domain.Document, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		doc, err := newsindex.Decode(r.schema.ID(e.Key), e.Fields)
		if err != nil {
			return nil, "", 0, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
		}
		docs = append(docs, doc)
	}

	next := ""
	if offset+len(docs) < sr.Total && len(docs) > 0 {
		next = strconv.Itoa(offset + len(docs))
	}
	return docs, next, sr.Total, nil
}
