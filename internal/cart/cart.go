// Package cart reads and clears a customer's shopping cart. The cart itself is
// owned by the storefront; fulfillment only snapshots it at order time.
package cart

import "context"

// Line is one cart row. UnitPrice is the current catalog price in minor units.
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Cart is the cart collaborator.
type Cart interface {
	Items(ctx context.Context, accountID string) ([]Line, error)
	Clear(ctx context.Context, accountID string) error
}
