package tasktrackerv1

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gurkanbulca/tasktracker/internal/docstore"
)

// StoreStatus converts a document store error into a gRPC status error.
func StoreStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, docstore.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, docstore.ErrInvalidArgument), errors.Is(err, ErrMalformed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, docstore.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "document store failure")
	}
}

// StoreError converts a gRPC error returned by the DocumentService back into
// the matching docstore sentinel, keeping the server's message.
func StoreError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.NotFound:
		sentinel = docstore.ErrNotFound
	case codes.PermissionDenied, codes.Unauthenticated:
		sentinel = docstore.ErrPermissionDenied
	case codes.InvalidArgument:
		sentinel = docstore.ErrInvalidArgument
	case codes.Unavailable, codes.Internal, codes.ResourceExhausted, codes.Aborted:
		sentinel = docstore.ErrUnavailable
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}
