package fulfillment

import (
	"fmt"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

// AlreadySettledError means the payment already left PENDING. Receiving it
// for a duplicate event is expected; callers acknowledge and move on.
type AlreadySettledError struct {
	OrderID int64
	Status  orders.PaymentStatus
}

func (e *AlreadySettledError) Error() string {
	return fmt.Sprintf("payment for order %d already settled as %s", e.OrderID, e.Status)
}

// TransactionMismatchError means a success event names a different
// transaction than the one already recorded.
type TransactionMismatchError struct {
	OrderID  int64
	Stored   string
	Incoming string
}

func (e *TransactionMismatchError) Error() string {
	return fmt.Sprintf("order %d is settled by transaction %s, got %s", e.OrderID, e.Stored, e.Incoming)
}

// FulfillmentError means the payment side was applied but the stock side
// failed. It is never retried automatically; an operator must review it.
type FulfillmentError struct {
	OrderID int64
	Stage   string
	Err     error
}

func (e *FulfillmentError) Error() string {
	return fmt.Sprintf("fulfillment failed for order %d during %s: %v", e.OrderID, e.Stage, e.Err)
}

func (e *FulfillmentError) Unwrap() error { return e.Err }
