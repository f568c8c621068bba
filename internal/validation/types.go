package validation

// SetAddressRequest is the payload for PUT /checkout/:id/address
type SetAddressRequest struct {
	AddressID string `json:"address_id" validate:"required"`
}

// SetDeliveryRequest is the payload for PUT /checkout/:id/delivery
type SetDeliveryRequest struct {
	DeliveryMethod string `json:"delivery_method" validate:"required,oneof=STANDARD PRIORITY PICKUP"`
	PickupStoreID  string `json:"pickup_store_id,omitempty"` // required for PICKUP
}

// SetPaymentRequest is the payload for PUT /checkout/:id/payment
type SetPaymentRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=COD ONLINE_GATEWAY"`
}

// PaymentWebhookRequest is the payload for POST /webhooks/payments
type PaymentWebhookRequest struct {
	OrderID       int64  `json:"order_id" validate:"required,gt=0"`
	TransactionID string `json:"transaction_id,omitempty" validate:"omitempty,max=128"` // required for SUCCESS
	Outcome       string `json:"outcome" validate:"required,oneof=SUCCESS FAILURE"`
	Reason        string `json:"reason,omitempty" validate:"max=256"`
}

// StatusUpdateRequest is the payload for PUT /admin/orders/:id/status
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=PROCESSING PREPARING_FOR_SHIPMENT IN_TRANSIT DELIVERED COLLECTED CANCELLED DELIVERY_FAILED"`
}

// StockAdjustRequest is the payload for POST /admin/products/:id/stock
type StockAdjustRequest struct {
	Delta  int    `json:"delta" validate:"ne=0"`
	Reason string `json:"reason,omitempty" validate:"max=256"`
}
