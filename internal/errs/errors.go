// Package errs provides the unified error type used across bucketfs.
//
// Storage drivers (MinIO, S3, in-memory) wrap their native errors into
// *errs.Error before returning them. The objfs adapter either passes those
// through unchanged (listing, reads) or folds them into an OperationFailed
// error naming the failed operation. Callers use the Is* predicates to handle
// errors without importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindNotFound, "failed to stat object", sdkErr)
//
//	// In the adapter, report a failed single-object operation:
//	return errs.Failed("copy", err)
//
//	// In a handler, check the error kind:
//	if errs.IsNotFound(err) {
//	    http.Error(w, "not found", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind is the provider-neutral category of an error.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no object, no bucket
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindOperationFailed          // a filesystem operation did not complete
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindOperationFailed:
		return "operation_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Error is returned by drivers and the adapter alike.
type Error struct {
	Kind    ErrKind
	Op      string // filesystem operation, set for OperationFailed errors
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns an *Error without a cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap returns an *Error around a driver or library error.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Failed reports that the filesystem operation op did not complete.
// cause may be nil when the failure was detected by the adapter itself
// (e.g. an object still present after a delete).
func Failed(op string, cause error) *Error {
	return &Error{Kind: ErrKindOperationFailed, Op: op, Message: "operation failed", Cause: cause}
}

// IsNotFound reports whether err represents a missing object or bucket.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsOperationFailed reports whether err is the failure result of a
// single-object filesystem operation.
func IsOperationFailed(err error) bool {
	return KindOf(err) == ErrKindOperationFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// RootKind returns the kind of the innermost *Error in err's chain. For an
// OperationFailed error wrapping a driver error this is the driver's kind.
func RootKind(err error) ErrKind {
	kind := ErrKindUnknown
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		kind = e.Kind
		err = e.Cause
	}
	return kind
}
