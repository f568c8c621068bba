package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/apperr"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/inventory"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/payments"
)

// Sources of a payment confirmation, recorded as the history actor.
const (
	SourceGateway  = "gateway"
	SourceRedirect = "redirect"
)

const (
	noteConfirmedTx       = "Payment confirmed via gateway (tx %s). Order is now being processed."
	noteConfirmedRedirect = "Payment confirmed on return from gateway. Order is now being processed."
	notePaymentFailed     = "Payment failed or was cancelled at the gateway."
	noteFulfillmentFailed = "FULFILLMENT FAILED - admin review required: %v"
	noteRestoreFailed     = "STOCK RESTORE FAILED - admin review required: %v"
)

// Ack is the answer to an inbound payment event. Duplicates and conflicting
// events are acknowledged with Applied=false so the sender stops retrying.
type Ack struct {
	Applied           bool   `json:"applied"`
	Reason            string `json:"reason,omitempty"`
	FulfillmentFailed bool   `json:"fulfillment_failed,omitempty"`
}

// Reconciler applies payment outcomes. Webhook and redirect confirmations
// race on the same PENDING -> PAID compare-and-set; only one wins.
type Reconciler struct {
	orders  OrderStore
	ledger  StockLedger
	alerter Alerter
	logger  *zap.Logger
}

func NewReconciler(store OrderStore, ledger StockLedger, alerter Alerter, logger *zap.Logger) *Reconciler {
	if alerter == nil {
		alerter = nopAlerter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{orders: store, ledger: ledger, alerter: alerter, logger: logger}
}

// RecordSuccess settles the order as PAID with txID, then commits its stock.
// A stock failure leaves the payment PAID and returns *FulfillmentError.
func (r *Reconciler) RecordSuccess(ctx context.Context, orderID int64, txID string) error {
	return r.recordSuccess(ctx, orderID, txID, SourceGateway)
}

// ConfirmOnRedirect is RecordSuccess for a browser return, which carries no
// transaction id.
func (r *Reconciler) ConfirmOnRedirect(ctx context.Context, orderID int64) error {
	return r.recordSuccess(ctx, orderID, "", SourceRedirect)
}

func (r *Reconciler) recordSuccess(ctx context.Context, orderID int64, txID, source string) error {
	logger := r.logger.With(zap.Int64("order_id", orderID), zap.String("source", source), zap.String("transaction_id", txID))

	order, err := r.onlineOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := r.settledError(ctx, order, txID); err != nil {
		return r.resumeCommit(ctx, order, err, logger)
	}

	if err := r.orders.MarkPaid(ctx, orderID, txID); err != nil {
		if !errors.Is(err, orders.ErrStatusMismatch) {
			return fmt.Errorf("mark order %d paid: %w", orderID, err)
		}
		// lost the race; report what the winner left behind
		current, gerr := r.orders.Get(ctx, orderID)
		if gerr != nil {
			return gerr
		}
		if serr := r.settledError(ctx, current, txID); serr != nil {
			return r.resumeCommit(ctx, current, serr, logger)
		}
		return &AlreadySettledError{OrderID: orderID, Status: current.PaymentStatus}
	}
	logger.Info("payment confirmed")

	note := noteConfirmedRedirect
	if txID != "" {
		note = fmt.Sprintf(noteConfirmedTx, txID)
	}
	amended, err := r.orders.AmendLatest(ctx, orderID, orders.KindAwaitingPayment, orders.KindPaymentConfirmed, note)
	if err != nil {
		logger.Error("amend awaiting-payment history failed", zap.Error(err))
	}
	if err == nil && !amended {
		entry := orders.NewEntry(orderID, order.ShippingStatus, orders.KindPaymentConfirmed, note, source)
		if err := r.orders.AppendHistory(ctx, entry); err != nil {
			logger.Error("append payment history failed", zap.Error(err))
		}
	}

	order.PaymentStatus = orders.PaymentPaid
	if txID != "" {
		order.PaymentTransactionID = txID
	}
	return r.commitStock(ctx, order, logger)
}

// commitStock takes the stock of a PAID order. A cancel can land between the
// payment write and the commit and find nothing to restore, so the order is
// re-read afterwards and the stock returned if it was cancelled meanwhile.
// Release is at most once, so a restore racing the cancel's own is harmless.
func (r *Reconciler) commitStock(ctx context.Context, order *orders.Order, logger *zap.Logger) error {
	if err := r.ledger.Commit(ctx, order); err != nil {
		if errors.Is(err, inventory.ErrAlreadyCommitted) {
			logger.Info("stock already committed")
			return nil
		}
		return r.fulfillmentFailed(ctx, order, "stock commit", err)
	}
	logger.Info("stock committed")

	current, err := r.orders.Get(ctx, order.OrderID)
	if err != nil {
		logger.Error("re-read after commit failed", zap.Error(err))
		return fmt.Errorf("re-read order %d after commit: %w", order.OrderID, err)
	}
	if current != nil && current.ShippingStatus == orders.ShippingCancelled {
		logger.Warn("order cancelled during stock commit, restoring")
		return restoreStock(ctx, r.orders, r.ledger, r.alerter, logger, current)
	}
	return nil
}

// resumeCommit finishes a PAID order whose stock commit never ran, as after a
// crash between the payment write and the commit. The settled error is still
// returned so the event is acknowledged as a duplicate. Orders with a recorded
// fulfillment failure are left for admin review; cancelled ones get any
// committed stock back.
func (r *Reconciler) resumeCommit(ctx context.Context, order *orders.Order, settled error, logger *zap.Logger) error {
	var as *AlreadySettledError
	if !errors.As(settled, &as) || order.PaymentStatus != orders.PaymentPaid {
		return settled
	}
	if order.ShippingStatus == orders.ShippingCancelled {
		// no-op unless a commit slipped in after the cancel's restore
		if err := restoreStock(ctx, r.orders, r.ledger, r.alerter, logger, order); err != nil {
			return err
		}
		return settled
	}
	history, err := r.orders.ListHistory(ctx, order.OrderID)
	if err != nil {
		return fmt.Errorf("list history for order %d: %w", order.OrderID, err)
	}
	for _, e := range history {
		if e.Kind == orders.KindFulfillmentFailed {
			return settled
		}
	}
	err = r.ledger.Commit(ctx, order)
	switch {
	case errors.Is(err, inventory.ErrAlreadyCommitted):
		return settled
	case err != nil:
		return r.fulfillmentFailed(ctx, order, "stock commit", err)
	}
	logger.Warn("stock committed on redelivery of a settled payment")
	r.alert(ctx, MetricCommitResumed)

	current, gerr := r.orders.Get(ctx, order.OrderID)
	if gerr == nil && current != nil && current.ShippingStatus == orders.ShippingCancelled {
		if rerr := restoreStock(ctx, r.orders, r.ledger, r.alerter, logger, current); rerr != nil {
			return rerr
		}
	}
	return settled
}

// RecordFailure cancels a PENDING order after a failed or abandoned payment.
func (r *Reconciler) RecordFailure(ctx context.Context, orderID int64, reason string) error {
	order, err := r.onlineOrder(ctx, orderID)
	if err != nil {
		return err
	}
	note := notePaymentFailed
	if reason != "" {
		note = fmt.Sprintf("%s Reason: %s.", notePaymentFailed, reason)
	}
	return r.failPending(ctx, order, orders.KindPaymentFailed, note, SourceGateway)
}

// ReportOutcome applies an inbound payment event. Duplicate and conflicting
// events are acknowledged rather than returned as errors.
func (r *Reconciler) ReportOutcome(ctx context.Context, ev payments.Event) (Ack, error) {
	var err error
	switch ev.Outcome {
	case payments.OutcomeSuccess:
		err = r.RecordSuccess(ctx, ev.OrderID, ev.TransactionID)
	case payments.OutcomeFailure:
		err = r.RecordFailure(ctx, ev.OrderID, ev.Reason)
	default:
		return Ack{}, apperr.IllegalState("unknown payment outcome %q", ev.Outcome)
	}
	return Acknowledge(err)
}

// Acknowledge turns the result of a settlement call into an Ack. Errors that
// a retry cannot change become unapplied or fulfillment-failed acks; anything
// else is returned.
func Acknowledge(err error) (Ack, error) {
	var settled *AlreadySettledError
	var mismatch *TransactionMismatchError
	var ff *FulfillmentError
	switch {
	case err == nil:
		return Ack{Applied: true}, nil
	case errors.As(err, &settled):
		return Ack{Reason: settled.Error()}, nil
	case errors.As(err, &mismatch):
		return Ack{Reason: mismatch.Error()}, nil
	case errors.As(err, &ff):
		return Ack{Applied: true, FulfillmentFailed: true, Reason: ff.Error()}, nil
	}
	return Ack{}, err
}

// onlineOrder loads an order that takes gateway payments.
func (r *Reconciler) onlineOrder(ctx context.Context, orderID int64) (*orders.Order, error) {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &apperr.NotFoundError{Resource: "order", ID: fmt.Sprint(orderID)}
	}
	if order.IsCOD() {
		return nil, apperr.IllegalState("order %d is cash on delivery and takes no gateway payments", orderID)
	}
	return order, nil
}

// settledError classifies a success event against the stored order. It
// returns nil only while the order is still PENDING with a compatible tx.
func (r *Reconciler) settledError(ctx context.Context, order *orders.Order, txID string) error {
	if txID != "" && order.PaymentTransactionID != "" && order.PaymentTransactionID != txID {
		r.logger.Warn("payment transaction mismatch",
			zap.Int64("order_id", order.OrderID),
			zap.String("stored_transaction_id", order.PaymentTransactionID),
			zap.String("incoming_transaction_id", txID))
		r.alert(ctx, MetricTransactionMismatch)
		return &TransactionMismatchError{OrderID: order.OrderID, Stored: order.PaymentTransactionID, Incoming: txID}
	}
	switch order.PaymentStatus {
	case orders.PaymentPending:
		return nil
	case orders.PaymentPaid:
		if txID != "" && order.PaymentTransactionID == "" {
			if err := r.orders.AttachTransaction(ctx, order.OrderID, txID); err != nil && !errors.Is(err, orders.ErrStatusMismatch) {
				r.logger.Error("attach transaction failed", zap.Int64("order_id", order.OrderID), zap.Error(err))
			}
		}
	case orders.PaymentCancelled:
		r.logger.Warn("payment success for cancelled order, refund required",
			zap.Int64("order_id", order.OrderID), zap.String("transaction_id", txID))
		r.alert(ctx, MetricPaidAfterCancel)
	}
	return &AlreadySettledError{OrderID: order.OrderID, Status: order.PaymentStatus}
}

// failPending cancels a PENDING order's payment and shipping together and
// returns any stock it may hold.
func (r *Reconciler) failPending(ctx context.Context, order *orders.Order, kind orders.HistoryKind, note, actor string) error {
	if order.PaymentStatus != orders.PaymentPending {
		return &AlreadySettledError{OrderID: order.OrderID, Status: order.PaymentStatus}
	}
	err := r.orders.UpdateStatus(ctx, order.OrderID, orders.StatusChange{
		ExpectedShipping: order.ShippingStatus,
		ExpectedPayment:  orders.PaymentPending,
		Shipping:         orders.ShippingCancelled,
		Payment:          orders.PaymentCancelled,
	})
	if errors.Is(err, orders.ErrStatusMismatch) {
		current, gerr := r.orders.Get(ctx, order.OrderID)
		if gerr != nil {
			return gerr
		}
		return &AlreadySettledError{OrderID: order.OrderID, Status: current.PaymentStatus}
	}
	if err != nil {
		return fmt.Errorf("cancel order %d: %w", order.OrderID, err)
	}
	r.logger.Info("payment failed, order cancelled", zap.Int64("order_id", order.OrderID), zap.String("kind", string(kind)))

	if err := r.orders.AppendHistory(ctx, orders.NewEntry(order.OrderID, orders.ShippingCancelled, kind, note, actor)); err != nil {
		r.logger.Error("append history failed", zap.Int64("order_id", order.OrderID), zap.Error(err))
	}
	return restoreStock(ctx, r.orders, r.ledger, r.alerter, r.logger, order)
}

func (r *Reconciler) fulfillmentFailed(ctx context.Context, order *orders.Order, stage string, cause error) error {
	r.logger.Error("fulfillment failed, admin review required",
		zap.Int64("order_id", order.OrderID), zap.String("stage", stage), zap.Error(cause))
	entry := orders.NewEntry(order.OrderID, order.ShippingStatus, orders.KindFulfillmentFailed, fmt.Sprintf(noteFulfillmentFailed, cause), "system")
	if err := r.orders.AppendHistory(ctx, entry); err != nil {
		r.logger.Error("append history failed", zap.Int64("order_id", order.OrderID), zap.Error(err))
	}
	r.alert(ctx, MetricFulfillmentFailed)
	return &FulfillmentError{OrderID: order.OrderID, Stage: stage, Err: cause}
}

func (r *Reconciler) alert(ctx context.Context, metric string) {
	if err := r.alerter.Alert(ctx, metric); err != nil {
		r.logger.Error("alert failed", zap.String("metric", metric), zap.Error(err))
	}
}

// restoreStock returns an order's committed stock. Orders that never took
// stock are a no-op. Failures are recorded for review.
func restoreStock(ctx context.Context, store OrderStore, ledger StockLedger, alerter Alerter, logger *zap.Logger, order *orders.Order) error {
	err := ledger.Restore(ctx, order.OrderID)
	if err == nil || errors.Is(err, inventory.ErrNothingToRestore) {
		return nil
	}
	logger.Error("stock restore failed, admin review required", zap.Int64("order_id", order.OrderID), zap.Error(err))
	entry := orders.NewEntry(order.OrderID, orders.ShippingCancelled, orders.KindRestoreFailed, fmt.Sprintf(noteRestoreFailed, err), "system")
	if herr := store.AppendHistory(ctx, entry); herr != nil {
		logger.Error("append history failed", zap.Int64("order_id", order.OrderID), zap.Error(herr))
	}
	if aerr := alerter.Alert(ctx, MetricRestoreFailed); aerr != nil {
		logger.Error("alert failed", zap.String("metric", MetricRestoreFailed), zap.Error(aerr))
	}
	return &FulfillmentError{OrderID: order.OrderID, Stage: "stock restore", Err: err}
}
