package errs

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// Kind is the closed set of failure classes.
type Kind uint8

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindValidation
	KindConflict
	KindRateLimited
)

// String returns the machine-readable code.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindConflict:
		return "CONFLICT"
	case KindRateLimited:
		return "RATE_LIMIT_EXCEEDED"
	default:
		return "INTERNAL_ERROR"
	}
}

// Status maps the kind to its HTTP status class.
func (k Kind) Status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Fields is only set for KindValidation and
// RetryAfter only for KindRateLimited.
type Error struct {
	Kind       Kind
	Message    string
	Fields     map[string]string
	RetryAfter time.Duration

	cause error
	pcs   []uintptr
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports kind equality, so any *Error matches the sentinel of its kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// StackTrace returns the frames captured at construction, one "func file:line" per entry.
func (e *Error) StackTrace() []string {
	if len(e.pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(e.pcs)
	out := make([]string, 0, len(e.pcs))
	for {
		f, more := frames.Next()
		out = append(out, fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line))
		if !more {
			break
		}
	}
	return out
}

func newError(kind Kind, msg string, cause error) *Error {
	pcs := make([]uintptr, 16)
	// skip runtime.Callers, newError and the exported constructor
	n := runtime.Callers(3, pcs)
	return &Error{Kind: kind, Message: msg, cause: cause, pcs: pcs[:n]}
}

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error { return newError(kind, msg, nil) }

// NotFound builds a KindNotFound error.
func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg, nil) }

// Forbidden builds a KindForbidden error.
func Forbidden(msg string) *Error { return newError(KindForbidden, msg, nil) }

// Conflict builds a KindConflict error.
func Conflict(msg string) *Error { return newError(KindConflict, msg, nil) }

// Validation builds a KindValidation error with optional per-field violations.
func Validation(msg string, fields map[string]string) *Error {
	e := newError(KindValidation, msg, nil)
	if len(fields) > 0 {
		e.Fields = fields
	}
	return e
}

// RateLimited builds a KindRateLimited error; retryAfter may be zero.
func RateLimited(msg string, retryAfter time.Duration) *Error {
	e := newError(KindRateLimited, msg, nil)
	if retryAfter > 0 {
		e.RetryAfter = retryAfter
	}
	return e
}

// Internal builds a KindInternal error wrapping cause.
func Internal(msg string, cause error) *Error { return newError(KindInternal, msg, cause) }

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Classify guarantees a classified error: *Error values pass through, anything else is
// wrapped as internal with msg as context. Nil stays nil.
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(KindInternal, strings.TrimSpace(msg), err)
}
