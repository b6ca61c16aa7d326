// Package fault defines the error kinds shared across the warroom services.
//
// Each kind is a sentinel; wrapped errors match with errors.Is so callers can
// branch on the kind without inspecting messages.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrProvider means the intelligence provider failed, timed out or
	// returned output that could not be decoded.
	ErrProvider = errors.New("provider error")
	// ErrSource means an incident source could not be queried.
	ErrSource = errors.New("source error")
	// ErrCacheUnavailable means the cache backend is unreachable.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrStoreUnavailable means the durable store is unreachable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrValidation means an incident or resource record is malformed.
	ErrValidation = errors.New("validation error")
	// ErrApprovalConflict means a pending record was already decided.
	ErrApprovalConflict = errors.New("approval conflict")
	ErrNotFound         = errors.New("not found")
	// ErrDelivery means released actions could not be dispatched.
	ErrDelivery = errors.New("delivery failed")
)

// Error annotates an underlying error with a kind and the failing operation.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap tags err with kind. A nil err still yields an error of that kind.
func Wrap(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
