package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/apperr"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

// StatusMachine moves orders through the shipping lifecycle.
type StatusMachine struct {
	orders  OrderStore
	ledger  StockLedger
	alerter Alerter
	logger  *zap.Logger
}

func NewStatusMachine(store OrderStore, ledger StockLedger, alerter Alerter, logger *zap.Logger) *StatusMachine {
	if alerter == nil {
		alerter = nopAlerter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusMachine{orders: store, ledger: ledger, alerter: alerter, logger: logger}
}

// Transition moves the order to status on behalf of actor. Cancelling returns
// any committed stock; delivering a cash-on-delivery order records the cash
// as collected.
func (m *StatusMachine) Transition(ctx context.Context, orderID int64, to orders.ShippingStatus, actor string) (*orders.Order, error) {
	order, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, order, to, actor, "")
}

// CancelByCustomer cancels an order the customer owns while it is still PROCESSING.
func (m *StatusMachine) CancelByCustomer(ctx context.Context, orderID int64, accountID string) (*orders.Order, error) {
	order, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.AccountID != accountID {
		return nil, &apperr.ForbiddenError{Actor: accountID, Resource: fmt.Sprintf("order %d", orderID)}
	}
	if order.ShippingStatus != orders.ShippingProcessing {
		return nil, apperr.IllegalState("order %d is already being fulfilled (%s) and can no longer be cancelled", orderID, order.ShippingStatus)
	}
	return m.apply(ctx, order, orders.ShippingCancelled, "customer:"+accountID, "Order cancelled by customer.")
}

func (m *StatusMachine) load(ctx context.Context, orderID int64) (*orders.Order, error) {
	order, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &apperr.NotFoundError{Resource: "order", ID: fmt.Sprint(orderID)}
	}
	return order, nil
}

func (m *StatusMachine) apply(ctx context.Context, order *orders.Order, to orders.ShippingStatus, actor, note string) (*orders.Order, error) {
	if err := orders.CheckTransition(order, to); err != nil {
		return nil, &apperr.IllegalStateError{Reason: "transition rejected", Err: err}
	}

	wasPaid := order.PaymentStatus == orders.PaymentPaid
	payment := order.PaymentStatus
	cashCollected := false
	switch {
	case to == orders.ShippingCancelled && payment == orders.PaymentPending:
		payment = orders.PaymentCancelled
	case (to == orders.ShippingDelivered || to == orders.ShippingCollected) && order.IsCOD() && payment == orders.PaymentPending:
		payment = orders.PaymentPaid
		cashCollected = true
	}

	err := m.orders.UpdateStatus(ctx, order.OrderID, orders.StatusChange{
		ExpectedShipping: order.ShippingStatus,
		ExpectedPayment:  order.PaymentStatus,
		Shipping:         to,
		Payment:          payment,
	})
	if errors.Is(err, orders.ErrStatusMismatch) {
		return nil, &apperr.IllegalStateError{Reason: fmt.Sprintf("order %d changed concurrently", order.OrderID), Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("update order %d: %w", order.OrderID, err)
	}

	from := order.ShippingStatus
	updated := order.Clone()
	updated.ShippingStatus = to
	updated.PaymentStatus = payment

	kind := orders.KindStatusChanged
	if to == orders.ShippingCancelled {
		kind = orders.KindCancelled
	}
	if note == "" {
		note = transitionNote(updated, to, actor)
	}
	if to == orders.ShippingCancelled && wasPaid {
		note += " Refund required."
	}
	if cashCollected {
		note += " Cash payment collected."
	}
	if err := m.orders.AppendHistory(ctx, orders.NewEntry(order.OrderID, to, kind, note, actor)); err != nil {
		m.logger.Error("append history failed", zap.Int64("order_id", order.OrderID), zap.Error(err))
	}
	m.logger.Info("shipping status changed",
		zap.Int64("order_id", order.OrderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor))

	if to == orders.ShippingCancelled {
		if err := restoreStock(ctx, m.orders, m.ledger, m.alerter, m.logger, updated); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

func transitionNote(order *orders.Order, to orders.ShippingStatus, actor string) string {
	switch {
	case to == orders.ShippingCancelled:
		return fmt.Sprintf("Order cancelled by %s.", actor)
	case to == orders.ShippingCollected && order.PickupStoreID != "":
		return fmt.Sprintf("Order status updated to '%s' by %s. Collected at store %s.", to, actor, order.PickupStoreID)
	case to == orders.ShippingPreparing && order.IsPickup():
		return fmt.Sprintf("Order status updated to '%s' by %s. Will be ready for pickup at store %s.", to, actor, order.PickupStoreID)
	}
	return fmt.Sprintf("Order status updated to '%s' by %s.", to, actor)
}
