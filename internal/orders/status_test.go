package orders

import (
	"errors"
	"testing"
)

func order(status ShippingStatus, pay PaymentStatus, method PaymentMethod, delivery DeliveryMethod) *Order {
	return &Order{
		OrderID:        1,
		ShippingStatus: status,
		PaymentStatus:  pay,
		PaymentMethod:  method,
		DeliveryMethod: delivery,
	}
}

func TestCheckTransition(t *testing.T) {
	cases := []struct {
		name  string
		order *Order
		to    ShippingStatus
		ok    bool
	}{
		{"cod forward", order(ShippingProcessing, PaymentPending, PaymentCOD, DeliveryStandard), ShippingPreparing, true},
		{"skip ahead", order(ShippingProcessing, PaymentPaid, PaymentOnlineGateway, DeliveryStandard), ShippingInTransit, true},
		{"backwards", order(ShippingInTransit, PaymentPaid, PaymentOnlineGateway, DeliveryStandard), ShippingPreparing, false},
		{"same status", order(ShippingProcessing, PaymentPaid, PaymentOnlineGateway, DeliveryStandard), ShippingProcessing, false},
		{"unpaid online progresses", order(ShippingProcessing, PaymentPending, PaymentOnlineGateway, DeliveryStandard), ShippingPreparing, false},
		{"unpaid online cancels", order(ShippingProcessing, PaymentPending, PaymentOnlineGateway, DeliveryStandard), ShippingCancelled, true},
		{"collected on delivery order", order(ShippingPreparing, PaymentPaid, PaymentOnlineGateway, DeliveryPriority), ShippingCollected, false},
		{"collected on pickup order", order(ShippingPreparing, PaymentPaid, PaymentOnlineGateway, DeliveryPickup), ShippingCollected, true},
		{"in transit on pickup order", order(ShippingPreparing, PaymentPaid, PaymentOnlineGateway, DeliveryPickup), ShippingInTransit, false},
		{"delivery failed from transit", order(ShippingInTransit, PaymentPending, PaymentCOD, DeliveryStandard), ShippingDeliveryFailed, true},
		{"delivery failed then cancel", order(ShippingDeliveryFailed, PaymentPending, PaymentCOD, DeliveryStandard), ShippingCancelled, true},
		{"delivery failed then deliver", order(ShippingDeliveryFailed, PaymentPending, PaymentCOD, DeliveryStandard), ShippingDelivered, false},
		{"unknown status", order(ShippingProcessing, PaymentPaid, PaymentOnlineGateway, DeliveryStandard), ShippingStatus("LOST"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(tc.order, tc.to)
			if tc.ok && err != nil {
				t.Fatalf("expected legal transition, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected illegal transition")
				}
				if !errors.Is(err, ErrIllegalTransition) {
					t.Fatalf("expected ErrIllegalTransition, got %v", err)
				}
			}
		})
	}
}

func TestCheckTransition_TerminalStatesAreFinal(t *testing.T) {
	targets := []ShippingStatus{
		ShippingProcessing, ShippingPreparing, ShippingInTransit, ShippingDelivered,
		ShippingCollected, ShippingCancelled, ShippingDeliveryFailed,
	}
	for _, from := range []ShippingStatus{ShippingDelivered, ShippingCollected, ShippingCancelled} {
		for _, to := range targets {
			o := order(from, PaymentPaid, PaymentOnlineGateway, DeliveryPickup)
			if err := CheckTransition(o, to); err == nil {
				t.Fatalf("transition %s -> %s must be rejected", from, to)
			}
		}
	}
}
