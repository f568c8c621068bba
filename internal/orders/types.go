package orders

import "time"

// PaymentStatus tracks settlement of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// ShippingStatus tracks where an order is in its fulfillment lifecycle.
type ShippingStatus string

const (
	ShippingProcessing     ShippingStatus = "PROCESSING"
	ShippingPreparing      ShippingStatus = "PREPARING_FOR_SHIPMENT"
	ShippingInTransit      ShippingStatus = "IN_TRANSIT"
	ShippingDelivered      ShippingStatus = "DELIVERED"
	ShippingCollected      ShippingStatus = "COLLECTED"
	ShippingCancelled      ShippingStatus = "CANCELLED"
	ShippingDeliveryFailed ShippingStatus = "DELIVERY_FAILED"
)

// DeliveryMethod selects how the order reaches the customer.
type DeliveryMethod string

const (
	DeliveryStandard DeliveryMethod = "STANDARD"
	DeliveryPriority DeliveryMethod = "PRIORITY"
	DeliveryPickup   DeliveryMethod = "PICKUP"
)

// Valid reports whether m is a known delivery method.
func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryStandard, DeliveryPriority, DeliveryPickup:
		return true
	}
	return false
}

// PaymentMethod selects how the customer pays.
type PaymentMethod string

const (
	PaymentCOD           PaymentMethod = "COD"
	PaymentOnlineGateway PaymentMethod = "ONLINE_GATEWAY"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentOnlineGateway
}

// Item is a cart line snapshotted at order creation. UnitPrice is captured so
// later catalog price changes never alter a historical total.
type Item struct {
	ProductID string `dynamodbav:"product_id" json:"product_id"`
	Quantity  int    `dynamodbav:"quantity" json:"quantity"`
	UnitPrice int64  `dynamodbav:"unit_price" json:"unit_price"`
}

// LineTotal is quantity times the snapshotted unit price, in minor units.
func (i Item) LineTotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// Order represents the item stored in the orders DynamoDB table.
// Money fields are minor currency units (centavos).
type Order struct {
	OrderID              int64          `dynamodbav:"order_id" json:"order_id"` // PK
	AccountID            string         `dynamodbav:"account_id" json:"account_id"`
	AddressID            string         `dynamodbav:"address_id" json:"address_id"`
	DeliveryMethod       DeliveryMethod `dynamodbav:"delivery_method" json:"delivery_method"`
	PaymentMethod        PaymentMethod  `dynamodbav:"payment_method" json:"payment_method"`
	PickupStoreID        string         `dynamodbav:"pickup_store_id,omitempty" json:"pickup_store_id,omitempty"`
	Subtotal             int64          `dynamodbav:"subtotal" json:"subtotal"`
	ShippingFee          int64          `dynamodbav:"shipping_fee" json:"shipping_fee"`
	TotalPrice           int64          `dynamodbav:"total_price" json:"total_price"`
	PaymentStatus        PaymentStatus  `dynamodbav:"payment_status" json:"payment_status"`
	ShippingStatus       ShippingStatus `dynamodbav:"shipping_status" json:"shipping_status"`
	PaymentTransactionID string         `dynamodbav:"payment_transaction_id,omitempty" json:"payment_transaction_id,omitempty"`
	Items                []Item         `dynamodbav:"items" json:"items"`
	CreatedAt            time.Time      `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `dynamodbav:"updated_at" json:"updated_at"`
	Version              int            `dynamodbav:"version" json:"version"`
}

// IsPickup reports whether the customer collects the order from a store.
func (o *Order) IsPickup() bool {
	return o.DeliveryMethod == DeliveryPickup
}

// IsCOD reports whether the order is paid in cash on delivery.
func (o *Order) IsCOD() bool {
	return o.PaymentMethod == PaymentCOD
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	return &c
}

// HistoryKind classifies history entries so specific entries can be located later.
type HistoryKind string

const (
	KindPlaced            HistoryKind = "placed"
	KindAwaitingPayment   HistoryKind = "awaiting_payment"
	KindPaymentConfirmed  HistoryKind = "payment_confirmed"
	KindPaymentFailed     HistoryKind = "payment_failed"
	KindStatusChanged     HistoryKind = "status_changed"
	KindCancelled         HistoryKind = "cancelled"
	KindFulfillmentFailed HistoryKind = "fulfillment_failed"
	KindRestoreFailed     HistoryKind = "restore_failed"
	KindExpired           HistoryKind = "expired"
)

// HistoryEntry is one audit event in the order_history table. EventID is a
// ULID, so sorting by it orders entries by time.
type HistoryEntry struct {
	OrderID        int64          `dynamodbav:"order_id" json:"order_id"` // PK
	EventID        string         `dynamodbav:"event_id" json:"event_id"` // SK
	ShippingStatus ShippingStatus `dynamodbav:"shipping_status" json:"shipping_status"`
	Kind           HistoryKind    `dynamodbav:"kind" json:"kind"`
	Note           string         `dynamodbav:"note" json:"note"`
	Actor          string         `dynamodbav:"actor,omitempty" json:"actor,omitempty"`
	CreatedAt      time.Time      `dynamodbav:"created_at" json:"created_at"`
	AmendedAt      *time.Time     `dynamodbav:"amended_at,omitempty" json:"amended_at,omitempty"`
}

// StatusChange is a compare-and-set of both status fields. The write only
// applies when the stored statuses still equal the Expected values.
type StatusChange struct {
	ExpectedShipping ShippingStatus
	ExpectedPayment  PaymentStatus
	Shipping         ShippingStatus
	Payment          PaymentStatus
}
