package client

import (
	"errors"
	"fmt"
)

// ErrKind classifies every failure the client surfaces, so callers can branch
// on the condition instead of parsing message strings.
type ErrKind int

const (
	// KindValidation rejects a call locally, before any network attempt.
	KindValidation ErrKind = iota + 1
	// KindNotFound covers missing orders and user mismatches. A missing cart
	// is never reported this way; it is normalized to an empty cart.
	KindNotFound
	// KindAuthRequired marks a mutating call made without a signed-in session.
	// Recoverable: the user can sign in and retry.
	KindAuthRequired
	// KindSessionExpired maps HTTP 401. The session is torn down before this
	// is returned so the auth collaborator can force re-authentication.
	KindSessionExpired
	// KindConflict maps HTTP 409, a stale optimistic-version write.
	KindConflict
	// KindTransient covers connectivity failures and 5xx responses. Only
	// idempotent reads are retried on it.
	KindTransient
)

func (k ErrKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthRequired:
		return "auth_required"
	case KindSessionExpired:
		return "session_expired"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is the tagged error returned from every client boundary call.
type Error struct {
	Kind    ErrKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrKind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
