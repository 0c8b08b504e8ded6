package newsdex

import "github.com/kailas-cloud/newsdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrDocumentNotFound       = domain.ErrDocumentNotFound
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrInvalidWeight          = domain.ErrInvalidWeight
	ErrDimensionMismatch      = domain.ErrDimensionMismatch
	ErrBackendUnavailable     = domain.ErrBackendUnavailable
	ErrBackendTimeout         = domain.ErrBackendTimeout
	ErrMalformedResponse      = domain.ErrMalformedResponse
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)

// Kind is the stable classification of an error, as also used in HTTP error codes.
type Kind = domain.ErrorKind

// Error kinds.
const (
	KindBackendUnavailable = domain.KindBackendUnavailable
	KindBackendTimeout     = domain.KindBackendTimeout
	KindDimensionMismatch  = domain.KindDimensionMismatch
	KindInvalidWeight      = domain.KindInvalidWeight
	KindMalformedResponse  = domain.KindMalformedResponse
	KindInvalidRequest     = domain.KindInvalidRequest
	KindNotFound           = domain.KindNotFound
	KindCancelled          = domain.KindCancelled
	KindEmbeddingFailed    = domain.KindEmbeddingFailed
	KindInternal           = domain.KindInternal
)

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	return domain.KindOf(err)
}
