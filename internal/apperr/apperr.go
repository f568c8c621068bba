// Package apperr holds errors shared across the order workflows.
package apperr

import "fmt"

// ForbiddenError means the actor does not own the resource.
type ForbiddenError struct {
	Actor    string
	Resource string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s is not allowed to access %s", e.Actor, e.Resource)
}

// IllegalStateError means the operation does not apply in the resource's
// current state.
type IllegalStateError struct {
	Reason string
	Err    error
}

func (e *IllegalStateError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *IllegalStateError) Unwrap() error { return e.Err }

// NotFoundError means the named resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// IllegalState builds an IllegalStateError from a format string.
func IllegalState(format string, args ...any) error {
	return &IllegalStateError{Reason: fmt.Sprintf(format, args...)}
}
