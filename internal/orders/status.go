package orders

import "fmt"

var shippingDescriptions = map[ShippingStatus]string{
	ShippingProcessing:     "Order is being processed.",
	ShippingPreparing:      "Your order is being prepared for shipment.",
	ShippingInTransit:      "Your order has been shipped.",
	ShippingDelivered:      "Your order has been delivered.",
	ShippingCollected:      "Your order has been collected.",
	ShippingCancelled:      "Your order has been cancelled.",
	ShippingDeliveryFailed: "The delivery attempt was unsuccessful.",
}

// Valid reports whether s is a known shipping status.
func (s ShippingStatus) Valid() bool {
	_, ok := shippingDescriptions[s]
	return ok
}

// Description is the customer-facing text for s.
func (s ShippingStatus) Description() string {
	return shippingDescriptions[s]
}

// IsTerminal reports whether no further transition may leave s.
func (s ShippingStatus) IsTerminal() bool {
	return s == ShippingDelivered || s == ShippingCollected || s == ShippingCancelled
}

// forward chains; a transition along a chain must strictly increase the rank.
var (
	deliveryChain = []ShippingStatus{ShippingProcessing, ShippingPreparing, ShippingInTransit, ShippingDelivered}
	pickupChain   = []ShippingStatus{ShippingProcessing, ShippingPreparing, ShippingCollected}
)

func rank(chain []ShippingStatus, s ShippingStatus) int {
	for i, c := range chain {
		if c == s {
			return i
		}
	}
	return -1
}

// CheckTransition validates moving o to the shipping status to. Errors wrap
// ErrIllegalTransition.
func CheckTransition(o *Order, to ShippingStatus) error {
	from := o.ShippingStatus
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, to)
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: order %d is %s, which is final", ErrIllegalTransition, o.OrderID, from)
	}
	if from == to {
		return fmt.Errorf("%w: order %d is already %s", ErrIllegalTransition, o.OrderID, to)
	}
	if to == ShippingCancelled {
		return nil
	}
	if o.PaymentStatus == PaymentPending && !o.IsCOD() {
		return fmt.Errorf("%w: order %d is awaiting online payment", ErrIllegalTransition, o.OrderID)
	}
	if from == ShippingDeliveryFailed {
		return fmt.Errorf("%w: order %d failed delivery and can only be cancelled", ErrIllegalTransition, o.OrderID)
	}
	if to == ShippingDeliveryFailed {
		return nil
	}

	chain := deliveryChain
	if o.IsPickup() {
		chain = pickupChain
	}
	target := rank(chain, to)
	if target < 0 {
		return fmt.Errorf("%w: %s is not reachable for %s orders", ErrIllegalTransition, to, o.DeliveryMethod)
	}
	if target <= rank(chain, from) {
		return fmt.Errorf("%w: cannot move order %d back from %s to %s", ErrIllegalTransition, o.OrderID, from, to)
	}
	return nil
}
