package chi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/logger"
)

// StatusClientClosedRequest is reported when the caller went away before the
// query finished.
const StatusClientClosedRequest = 499

// Error codes that do not come from a domain.ErrorKind.
const (
	codeBadRequest   = "bad_request"
	codeUnauthorized = "unauthorized"
	codeRateLimited  = "rate_limited"
	codeInternal     = "internal"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusByKind maps domain error kinds to HTTP status codes.
var statusByKind = map[domain.ErrorKind]int{
	domain.KindInvalidWeight:      http.StatusBadRequest,
	domain.KindDimensionMismatch:  http.StatusBadRequest,
	domain.KindInvalidRequest:     http.StatusBadRequest,
	domain.KindNotFound:           http.StatusNotFound,
	domain.KindCancelled:          StatusClientClosedRequest,
	domain.KindBackendUnavailable: http.StatusBadGateway,
	domain.KindMalformedResponse:  http.StatusBadGateway,
	domain.KindEmbeddingFailed:    http.StatusBadGateway,
	domain.KindBackendTimeout:     http.StatusGatewayTimeout,
	domain.KindInternal:           http.StatusInternalServerError,
}

// StatusOf returns the HTTP status and stable error code for err.
func StatusOf(err error) (int, string) {
	kind := domain.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		return http.StatusInternalServerError, string(domain.KindInternal)
	}
	return status, string(kind)
}

// handleDomainError writes the error reply for err. Internal errors are logged
// and their details hidden from the caller.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("Unhandled error", zap.Error(err))
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
