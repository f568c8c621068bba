// Package checkout accumulates a customer's checkout choices into an intent
// that is later turned into an order.
package checkout

import (
	"time"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

// Step is the furthest checkout step an intent has reached.
type Step string

const (
	StepStarted          Step = "STARTED"
	StepAddressSelected  Step = "ADDRESS_SELECTED"
	StepDeliverySelected Step = "DELIVERY_SELECTED"
	StepPaymentSelected  Step = "PAYMENT_SELECTED"
)

// Intent holds the choices made so far in one checkout.
type Intent struct {
	ID             string                `json:"id"`
	AccountID      string                `json:"account_id"`
	AddressID      string                `json:"address_id,omitempty"`
	DeliveryMethod orders.DeliveryMethod `json:"delivery_method,omitempty"`
	PickupStoreID  string                `json:"pickup_store_id,omitempty"`
	PaymentMethod  orders.PaymentMethod  `json:"payment_method,omitempty"`
	ShippingFee    int64                 `json:"shipping_fee"`
	FeeComputed    bool                  `json:"fee_computed"`
	Step           Step                  `json:"step"`
	CreatedAt      time.Time             `json:"created_at"`
	ExpiresAt      time.Time             `json:"expires_at"`
}

// missing lists the selections a completed intent still lacks.
func (i *Intent) missing() []string {
	var out []string
	if i.AddressID == "" {
		out = append(out, "address")
	}
	if i.DeliveryMethod == "" {
		out = append(out, "delivery_method")
	}
	if i.DeliveryMethod == orders.DeliveryPickup && i.PickupStoreID == "" {
		out = append(out, "pickup_store")
	}
	if i.PaymentMethod == "" {
		out = append(out, "payment_method")
	}
	if i.DeliveryMethod != "" && !i.FeeComputed {
		out = append(out, "shipping_fee")
	}
	return out
}
