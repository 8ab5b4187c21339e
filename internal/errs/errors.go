// Package errs provides the unified error type used across all of dbmap.
//
// Every subsystem (pool, executor, dialects, filestore, …) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the Is*
// predicates to decide what to do without importing driver-specific packages.
//
// The kinds split into two families. Transient kinds (ConnectionLost, Busy)
// are recovered locally by the executor; every other kind is fatal and
// surfaces to the caller with the driver error preserved as Cause.
//
// Usage:
//
//	// In a dialect, classify native errors:
//	return errs.Wrap(errs.ErrKindBusy, "deadlock detected", mysqlErr)
//
//	// In a caller, check the error kind:
//	if errs.IsRetryExhausted(err) {
//	    log.Warn("server unavailable")
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing driver-specific codes.
// All dialects (MySQL, SQL Server, SQLite, Postgres) and the object store map
// their native errors to one of these kinds.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no object, unknown schema/table
	ErrKindConnectionFailed         // cannot reach or open the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindConnectionLost           // session severed or protocol out of sequence
	ErrKindBusy                     // server busy, lock contention, invalid cursor state
	ErrKindRetryExhausted           // transient faults persisted past the retry budget
	ErrKindClosed                   // pool or store already closed
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindConnectionLost:
		return "connection_lost"
	case ErrKindBusy:
		return "busy"
	case ErrKindRetryExhausted:
		return "retry_exhausted"
	case ErrKindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transient reports whether errors of this kind are recovered by retrying.
func (k ErrKind) Transient() bool {
	return k == ErrKindConnectionLost || k == ErrKindBusy
}

// Error is the single error type returned by all dbmap subsystems.
// Dialects produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (no rows, missing object, unknown schema/table, …).
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure
// while opening a session.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure
// (SQL execution error, storage I/O error, …).
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsConnectionLost reports whether err means the physical session is unusable.
func IsConnectionLost(err error) bool {
	return KindOf(err) == ErrKindConnectionLost
}

// IsBusy reports whether err is server-side contention on a healthy session.
func IsBusy(err error) bool {
	return KindOf(err) == ErrKindBusy
}

// IsTransient reports whether err is recovered by discarding or settling the
// connection and retrying the operation.
func IsTransient(err error) bool {
	return KindOf(err).Transient()
}

// IsRetryExhausted reports whether the executor gave up after repeated
// transient faults.
func IsRetryExhausted(err error) bool {
	return KindOf(err) == ErrKindRetryExhausted
}

// IsClosed reports whether err came from using a closed pool or store.
func IsClosed(err error) bool {
	return KindOf(err) == ErrKindClosed
}

// KindOf extracts the ErrKind of the outermost *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
