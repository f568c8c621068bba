package inventory

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/cart"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

// Ledger takes stock for orders and gives it back. Each order is decremented
// at most once and restored at most once, and only after a decrement.
type Ledger struct {
	store  Store
	cart   cart.Cart
	logger *zap.Logger
}

func NewLedger(store Store, c cart.Cart, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, cart: c, logger: logger}
}

// Reserve decrements stock for every item of the order, all or nothing.
// Returns *InsufficientStockError naming the first short product, or
// ErrAlreadyCommitted when stock was already taken for orderID.
func (l *Ledger) Reserve(ctx context.Context, orderID int64, items []orders.Item) error {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return l.store.Reserve(ctx, orderID, Aggregate(lines))
}

// Commit reserves the order's stock and clears the customer's cart. A cart
// that fails to clear is logged; the stock decrement stands.
func (l *Ledger) Commit(ctx context.Context, order *orders.Order) error {
	if err := l.Reserve(ctx, order.OrderID, order.Items); err != nil {
		return err
	}
	l.ClearCart(ctx, order)
	return nil
}

// ClearCart empties the order owner's cart, logging failures.
func (l *Ledger) ClearCart(ctx context.Context, order *orders.Order) {
	if l.cart == nil {
		return
	}
	if err := l.cart.Clear(ctx, order.AccountID); err != nil {
		l.logger.Warn("clear cart failed",
			zap.Int64("order_id", order.OrderID),
			zap.String("account_id", order.AccountID),
			zap.Error(err))
	}
}

// Restore returns the order's committed stock. Returns ErrNothingToRestore
// when nothing was taken or it was already returned.
func (l *Ledger) Restore(ctx context.Context, orderID int64) error {
	entry, err := l.store.Release(ctx, orderID)
	if err != nil {
		if !errors.Is(err, ErrNothingToRestore) {
			l.logger.Error("restore stock failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
		return err
	}
	l.logger.Info("stock restored", zap.Int64("order_id", orderID), zap.Int("lines", len(entry.Lines)))
	return nil
}
