package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure at the point it originates so callers can decide
// retry behaviour without inspecting message text.
type Kind int

const (
	// KindUnknown is the zero value for errors that carry no classification.
	KindUnknown Kind = iota
	// KindValidation marks malformed input rejected before any state change.
	KindValidation
	// KindConflict marks uniqueness violations and stale-precondition races,
	// including replayed payment signatures.
	KindConflict
	// KindTransient marks timeouts, rate limits and temporary RPC failures
	// that are safe to retry.
	KindTransient
	// KindConclusive marks rejections that will not succeed on retry, such as
	// a program-level revert or an invalid signature.
	KindConclusive
	// KindResource marks exhaustion of a replenishable resource (empty presign
	// pool, low treasury balance). Retryable once the resource recovers.
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindConclusive:
		return "conclusive"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Error is a classified error with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and originating operation.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err, or KindUnknown when it carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

func IsConclusive(err error) bool {
	return KindOf(err) == KindConclusive
}

func IsResource(err error) bool {
	return KindOf(err) == KindResource
}

func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// Retryable reports whether the failure may resolve on its own: transient RPC
// conditions and resource exhaustion qualify, everything else does not.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindTransient || k == KindResource
}
