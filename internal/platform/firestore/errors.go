package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error wraps Firestore failures with operation context and classification flags.
type Error struct {
	Op          string
	Err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("firestore %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the wrapped error represents a missing document.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict reports whether the wrapped error represents a write contention or
// precondition failure.
func (e *Error) IsConflict() bool { return e != nil && e.conflict }

// IsUnavailable reports whether the wrapped error represents a transient
// backend outage worth retrying.
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// WrapError classifies err via its gRPC status code. A nil err returns nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	wrapped := &Error{Op: op, Err: err}
	switch status.Code(err) {
	case codes.NotFound:
		wrapped.notFound = true
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		wrapped.conflict = true
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		wrapped.unavailable = true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		wrapped.unavailable = true
	}
	return wrapped
}

// IsNotFound reports whether err (or any wrapped error) marks a missing document.
func IsNotFound(err error) bool {
	var fsErr *Error
	return errors.As(err, &fsErr) && fsErr.IsNotFound()
}

// IsConflict reports whether err (or any wrapped error) marks a contention failure.
func IsConflict(err error) bool {
	var fsErr *Error
	return errors.As(err, &fsErr) && fsErr.IsConflict()
}

// IsUnavailable reports whether err (or any wrapped error) marks a transient outage.
func IsUnavailable(err error) bool {
	var fsErr *Error
	return errors.As(err, &fsErr) && fsErr.IsUnavailable()
}
