// Package errs is the error taxonomy shared by every layer. Each failure is one Kind
// with a stable machine-readable code and an HTTP-style status.
package errs

// Sentinels match any *Error of the same kind through errors.Is, so repositories can
// return them directly and callers can test for a kind without unpacking.
var (
	// ErrNotFound indicates the requested entity does not exist or is not owned by the caller.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}

	// ErrUnauthorized indicates a missing or invalid caller identity.
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}

	// ErrForbidden indicates an authenticated caller lacks access.
	ErrForbidden = &Error{Kind: KindForbidden, Message: "forbidden"}

	// ErrValidation indicates malformed input.
	ErrValidation = &Error{Kind: KindValidation, Message: "validation failed"}

	// ErrConflict indicates a unique constraint violation or state conflict.
	ErrConflict = &Error{Kind: KindConflict, Message: "conflict"}

	// ErrRateLimited indicates the caller exceeded its request budget.
	ErrRateLimited = &Error{Kind: KindRateLimited, Message: "rate limit exceeded"}

	// ErrInternal indicates an unexpected infrastructure failure.
	ErrInternal = &Error{Kind: KindInternal, Message: "internal error"}
)
