package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyCommitted means stock was already taken for the order.
	ErrAlreadyCommitted = errors.New("stock already committed for order")
	// ErrNothingToRestore means no committed stock exists for the order.
	ErrNothingToRestore = errors.New("no committed stock to restore")
	// ErrProductNotFound means the product is not in the catalog.
	ErrProductNotFound = errors.New("product not found")
	// ErrTooManyLines means an order touches more products than one atomic write allows.
	ErrTooManyLines = errors.New("too many distinct products in one order")
)

// InsufficientStockError reports the first product that could not cover the request.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}
