package newsindex

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/newsdex/internal/db"
	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Classify maps a store error onto the domain taxonomy. Caller cancellation
// stays context.Canceled; everything unrecognized is a backend outage.
func Classify(op string, err error) error {
	switch {
	case errors.Is(err, db.ErrInvalidQuery):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrInvalidRequest, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrBackendTimeout, err)
	case errors.Is(err, db.ErrMalformedReply):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrMalformedResponse, err)
	}

	// gRPC (Qdrant) reports deadlines and cancellation as status codes.
	switch status.Code(unwrapDB(err)) {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrBackendTimeout, err)
	case codes.Canceled:
		return fmt.Errorf("%s: %w: %w", op, context.Canceled, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrBackendUnavailable, err)
}

func unwrapDB(err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return dbErr.Err
	}
	return err
}
