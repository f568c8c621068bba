// Package fulfillment turns checkout intents into orders and keeps payment,
// stock and shipping status consistent as events arrive.
package fulfillment

import (
	"context"
	"time"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

// OrderStore persists orders and their history. Every status write is a
// compare-and-set that fails with orders.ErrStatusMismatch when stale.
type OrderStore interface {
	NextOrderID(ctx context.Context) (int64, error)
	Create(ctx context.Context, order *orders.Order, first orders.HistoryEntry) error
	Get(ctx context.Context, orderID int64) (*orders.Order, error)
	MarkPaid(ctx context.Context, orderID int64, txID string) error
	AttachTransaction(ctx context.Context, orderID int64, txID string) error
	UpdateStatus(ctx context.Context, orderID int64, change orders.StatusChange) error
	ListPendingPayment(ctx context.Context, cutoff time.Time) ([]orders.Order, error)
	AppendHistory(ctx context.Context, entry orders.HistoryEntry) error
	ListHistory(ctx context.Context, orderID int64) ([]orders.HistoryEntry, error)
	AmendLatest(ctx context.Context, orderID int64, from, to orders.HistoryKind, note string) (bool, error)
}

// StockLedger is satisfied by *inventory.Ledger.
type StockLedger interface {
	Reserve(ctx context.Context, orderID int64, items []orders.Item) error
	Commit(ctx context.Context, order *orders.Order) error
	Restore(ctx context.Context, orderID int64) error
	ClearCart(ctx context.Context, order *orders.Order)
}

// Alerter raises an operator alert. Satisfied by *aws.Alerter.
type Alerter interface {
	Alert(ctx context.Context, metric string) error
}

// Alert metric names.
const (
	MetricFulfillmentFailed   = "FulfillmentFailed"
	MetricRestoreFailed       = "StockRestoreFailed"
	MetricTransactionMismatch = "PaymentTransactionMismatch"
	MetricPaidAfterCancel     = "PaymentAfterCancellation"
	MetricCommitResumed       = "StockCommitResumed"
)

type nopAlerter struct{}

func (nopAlerter) Alert(context.Context, string) error { return nil }
