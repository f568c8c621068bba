package checkout

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIntentNotFound means the intent never existed or has expired.
var ErrIntentNotFound = errors.New("checkout intent not found or expired")

// SequenceError means a step was attempted before the step it depends on.
type SequenceError struct {
	Step     string
	Requires string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("cannot set %s before %s", e.Step, e.Requires)
}

// IncompleteIntentError lists what is missing at completion.
type IncompleteIntentError struct {
	Missing []string
}

func (e *IncompleteIntentError) Error() string {
	return "checkout incomplete, missing: " + strings.Join(e.Missing, ", ")
}

// EmptyCartError means the customer's cart had no items at completion.
type EmptyCartError struct {
	AccountID string
}

func (e *EmptyCartError) Error() string {
	return "cart is empty for account " + e.AccountID
}

// InvalidSelectionError means a step received a value it cannot accept.
type InvalidSelectionError struct {
	Field  string
	Reason string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
