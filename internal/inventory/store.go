package inventory

import "context"

// Store holds product stock and the per-order ledger. Reserve and Release
// change both in one atomic unit.
type Store interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
	// AdjustStock adds delta to a product's stock, refusing to go below zero.
	AdjustStock(ctx context.Context, productID string, delta int) (*Product, error)
	// Reserve writes a COMMITTED entry for orderID and decrements every line,
	// or changes nothing. Lines must be aggregated.
	Reserve(ctx context.Context, orderID int64, lines []Line) error
	// Release moves the entry COMMITTED -> RESTORED and returns its lines to stock.
	Release(ctx context.Context, orderID int64) (*Entry, error)
	GetEntry(ctx context.Context, orderID int64) (*Entry, error)
}
