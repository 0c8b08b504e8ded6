package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = fmt.Errorf("document %w", ErrNotFound)
	// ErrInvalidRequest signals a malformed query that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDimensionMismatch signals a query embedding whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidWeight signals a blend weight outside [0,1].
	ErrInvalidWeight = errors.New("blend weight must be within [0,1]")

	// ErrBackendUnavailable signals a connection or transport failure talking to the search backend.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrBackendTimeout signals a backend call that exceeded its bounded wait.
	ErrBackendTimeout = errors.New("search backend timeout")
	// ErrMalformedResponse signals a backend reply that could not be parsed.
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// ErrorKind is the stable, caller-visible classification of an error.
type ErrorKind string

// Error kinds exposed to API callers.
const (
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindBackendTimeout     ErrorKind = "backend_timeout"
	KindDimensionMismatch  ErrorKind = "dimension_mismatch"
	KindInvalidWeight      ErrorKind = "invalid_weight"
	KindMalformedResponse  ErrorKind = "malformed_response"
	KindInvalidRequest     ErrorKind = "invalid_request"
	KindNotFound           ErrorKind = "not_found"
	KindCancelled          ErrorKind = "cancelled"
	KindEmbeddingFailed    ErrorKind = "embedding_failed"
	KindInternal           ErrorKind = "internal"
)

// kindTable is checked in order; more specific sentinels come first.
var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrDimensionMismatch, KindDimensionMismatch},
	{ErrInvalidWeight, KindInvalidWeight},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrBackendTimeout, KindBackendTimeout},
	{ErrMalformedResponse, KindMalformedResponse},
	{ErrBackendUnavailable, KindBackendUnavailable},
	{ErrEmbeddingProviderError, KindEmbeddingFailed},
	{ErrNotFound, KindNotFound},
	{context.Canceled, KindCancelled},
	{context.DeadlineExceeded, KindBackendTimeout},
}

// KindOf classifies err. Nil yields an empty kind; unknown errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, e := range kindTable {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindInternal
}

// IsPrecondition reports whether err was raised by request validation rather than a backend.
func IsPrecondition(err error) bool {
	switch KindOf(err) {
	case KindDimensionMismatch, KindInvalidWeight, KindInvalidRequest:
		return true
	default:
		return false
	}
}
