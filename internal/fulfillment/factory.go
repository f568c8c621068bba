package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/addresses"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/apperr"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/cart"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/checkout"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/inventory"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

const (
	notePlacedDelivery = "Order placed, awaiting delivery and payment."
	notePlacedPickup   = "Order placed, awaiting pickup and payment at store %s."
	noteAwaitingPay    = "Awaiting payment from gateway."
)

// Factory creates orders from completed checkout intents.
type Factory struct {
	orders  OrderStore
	ledger  StockLedger
	cart    cart.Cart
	book    addresses.Book
	alerter Alerter
	logger  *zap.Logger
}

func NewFactory(store OrderStore, ledger StockLedger, c cart.Cart, book addresses.Book, alerter Alerter, logger *zap.Logger) *Factory {
	if alerter == nil {
		alerter = nopAlerter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{orders: store, ledger: ledger, cart: c, book: book, alerter: alerter, logger: logger}
}

// Place creates the order the intent's payment method calls for.
func (f *Factory) Place(ctx context.Context, intent checkout.Intent) (*orders.Order, error) {
	switch intent.PaymentMethod {
	case orders.PaymentCOD:
		return f.CreateImmediate(ctx, intent)
	case orders.PaymentOnlineGateway:
		return f.CreateDeferred(ctx, intent)
	}
	return nil, apperr.IllegalState("unsupported payment method %q", intent.PaymentMethod)
}

// CreateImmediate creates a cash-on-delivery order and takes its stock in the
// same unit of work. Insufficient stock aborts before the order exists.
func (f *Factory) CreateImmediate(ctx context.Context, intent checkout.Intent) (*orders.Order, error) {
	if intent.PaymentMethod != orders.PaymentCOD {
		return nil, apperr.IllegalState("immediate orders must be cash on delivery, got %s", intent.PaymentMethod)
	}
	order, err := f.build(ctx, intent)
	if err != nil {
		return nil, err
	}

	if err := f.ledger.Reserve(ctx, order.OrderID, order.Items); err != nil {
		return nil, err
	}

	note := notePlacedDelivery
	if order.IsPickup() {
		note = fmt.Sprintf(notePlacedPickup, order.PickupStoreID)
	}
	entry := orders.NewEntry(order.OrderID, order.ShippingStatus, orders.KindPlaced, note, intent.AccountID)
	if err := f.orders.Create(ctx, order, entry); err != nil {
		f.compensate(ctx, order.OrderID, err)
		return nil, fmt.Errorf("create order %d: %w", order.OrderID, err)
	}

	f.ledger.ClearCart(ctx, order)
	f.logger.Info("order placed",
		zap.Int64("order_id", order.OrderID),
		zap.String("account_id", order.AccountID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Int64("total_price", order.TotalPrice))
	return order, nil
}

// CreateDeferred creates an order awaiting online payment. Stock and cart
// are untouched until the payment is confirmed.
func (f *Factory) CreateDeferred(ctx context.Context, intent checkout.Intent) (*orders.Order, error) {
	if intent.PaymentMethod != orders.PaymentOnlineGateway {
		return nil, apperr.IllegalState("deferred orders must use the online gateway, got %s", intent.PaymentMethod)
	}
	order, err := f.build(ctx, intent)
	if err != nil {
		return nil, err
	}
	entry := orders.NewEntry(order.OrderID, order.ShippingStatus, orders.KindAwaitingPayment, noteAwaitingPay, intent.AccountID)
	if err := f.orders.Create(ctx, order, entry); err != nil {
		return nil, fmt.Errorf("create order %d: %w", order.OrderID, err)
	}
	f.logger.Info("order awaiting payment",
		zap.Int64("order_id", order.OrderID),
		zap.String("account_id", order.AccountID),
		zap.Int64("total_price", order.TotalPrice))
	return order, nil
}

// build checks the intent's preconditions and snapshots the cart into a new order.
func (f *Factory) build(ctx context.Context, intent checkout.Intent) (*orders.Order, error) {
	if intent.AccountID == "" {
		return nil, &apperr.ForbiddenError{Actor: "anonymous", Resource: "order placement"}
	}
	if !intent.FeeComputed || intent.AddressID == "" || !intent.DeliveryMethod.Valid() {
		return nil, &checkout.IncompleteIntentError{Missing: []string{"address", "delivery_method", "shipping_fee"}}
	}
	addr, err := f.book.Get(ctx, intent.AddressID)
	if err != nil {
		return nil, err
	}
	if addr == nil {
		return nil, &apperr.NotFoundError{Resource: "address", ID: intent.AddressID}
	}
	if addr.AccountID != intent.AccountID {
		return nil, &apperr.ForbiddenError{Actor: intent.AccountID, Resource: "address " + intent.AddressID}
	}

	lines, err := f.cart.Items(ctx, intent.AccountID)
	if err != nil {
		return nil, err
	}
	items := make([]orders.Item, 0, len(lines))
	var subtotal int64
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		it := orders.Item{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
		subtotal += it.LineTotal()
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, &checkout.EmptyCartError{AccountID: intent.AccountID}
	}

	id, err := f.orders.NextOrderID(ctx)
	if err != nil {
		return nil, err
	}
	order := &orders.Order{
		OrderID:        id,
		AccountID:      intent.AccountID,
		AddressID:      intent.AddressID,
		DeliveryMethod: intent.DeliveryMethod,
		PaymentMethod:  intent.PaymentMethod,
		Subtotal:       subtotal,
		ShippingFee:    intent.ShippingFee,
		TotalPrice:     subtotal + intent.ShippingFee,
		PaymentStatus:  orders.PaymentPending,
		ShippingStatus: orders.ShippingProcessing,
		Items:          items,
	}
	if intent.DeliveryMethod == orders.DeliveryPickup {
		order.PickupStoreID = intent.PickupStoreID
	}
	return order, nil
}

// compensate returns stock reserved for an order that could not be stored.
func (f *Factory) compensate(ctx context.Context, orderID int64, cause error) {
	err := f.ledger.Restore(ctx, orderID)
	if err == nil || errors.Is(err, inventory.ErrNothingToRestore) {
		f.logger.Warn("order creation failed, stock returned", zap.Int64("order_id", orderID), zap.Error(cause))
		return
	}
	f.logger.Error("order creation failed and stock could not be returned",
		zap.Int64("order_id", orderID), zap.NamedError("cause", cause), zap.Error(err))
	if aerr := f.alerter.Alert(ctx, MetricRestoreFailed); aerr != nil {
		f.logger.Error("alert failed", zap.Error(aerr))
	}
}
