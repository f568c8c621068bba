package orders

import "errors"

var (
	// ErrStatusMismatch means a conditional write lost against the stored state.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrOrderExists means an order with the same id was already created.
	ErrOrderExists = errors.New("order already exists")
	// ErrIllegalTransition is wrapped by CheckTransition failures.
	ErrIllegalTransition = errors.New("illegal shipping status transition")
)
