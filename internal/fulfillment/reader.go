package fulfillment

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/apperr"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

// OrderView is an order with its display status and history, newest first.
type OrderView struct {
	Order               *orders.Order         `json:"order"`
	ShippingDescription string                `json:"shipping_description"`
	History             []orders.HistoryEntry `json:"history"`
}

// Reader serves order detail lookups.
type Reader struct {
	orders OrderStore
}

func NewReader(store OrderStore) *Reader {
	return &Reader{orders: store}
}

// View returns the order for its owner. Admins pass an empty accountID to
// skip the ownership check.
func (r *Reader) View(ctx context.Context, orderID int64, accountID string) (*OrderView, error) {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &apperr.NotFoundError{Resource: "order", ID: fmt.Sprint(orderID)}
	}
	if accountID != "" && order.AccountID != accountID {
		return nil, &apperr.ForbiddenError{Actor: accountID, Resource: fmt.Sprintf("order %d", orderID)}
	}
	history, err := r.orders.ListHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderView{
		Order:               order,
		ShippingDescription: order.ShippingStatus.Description(),
		History:             history,
	}, nil
}
