package fulfillment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/apperr"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/inventory"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

func placeCOD(t *testing.T, h *harness, delivery orders.DeliveryMethod) *orders.Order {
	t.Helper()
	h.fillCart(t, 5, 3)
	o, err := h.factory.CreateImmediate(context.Background(), intentFor(orders.PaymentCOD, delivery))
	if err != nil {
		t.Fatalf("CreateImmediate: %v", err)
	}
	return o
}

func TestTransition_CODDeliveryCollectsCash(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := placeCOD(t, h, orders.DeliveryStandard)

	for _, to := range []orders.ShippingStatus{orders.ShippingPreparing, orders.ShippingInTransit, orders.ShippingDelivered} {
		if _, err := h.machine.Transition(ctx, o.OrderID, to, "admin-1"); err != nil {
			t.Fatalf("Transition to %s: %v", to, err)
		}
	}
	got := h.order(t, o.OrderID)
	if got.ShippingStatus != orders.ShippingDelivered || got.PaymentStatus != orders.PaymentPaid {
		t.Fatalf("unexpected statuses: %s/%s", got.ShippingStatus, got.PaymentStatus)
	}
	history := h.history(t, o.OrderID)
	if len(history) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(history))
	}
	if !strings.Contains(history[0].Note, "Cash payment collected.") || history[0].Actor != "admin-1" {
		t.Fatalf("unexpected latest entry: %+v", history[0])
	}

	var illegal *apperr.IllegalStateError
	for _, to := range []orders.ShippingStatus{orders.ShippingCancelled, orders.ShippingInTransit, orders.ShippingDeliveryFailed} {
		if _, err := h.machine.Transition(ctx, o.OrderID, to, "admin-1"); !errors.As(err, &illegal) {
			t.Fatalf("expected IllegalStateError leaving DELIVERED for %s, got %v", to, err)
		}
	}
	if s := h.stockOf(t, "p-1"); s != 2 {
		t.Fatalf("delivered order keeps its stock, got %d", s)
	}
}

func TestTransition_CancelRestoresExactly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := placeCOD(t, h, orders.DeliveryStandard)
	if s := h.stockOf(t, "p-1"); s != 2 {
		t.Fatalf("expected 2 after placement, got %d", s)
	}

	got, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingCancelled, "admin-1")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.PaymentStatus != orders.PaymentCancelled {
		t.Fatalf("pending payment must be cancelled, got %s", got.PaymentStatus)
	}
	if s := h.stockOf(t, "p-1"); s != 5 {
		t.Fatalf("expected stock restored to 5, got %d", s)
	}
	entry, _ := h.stock.GetEntry(ctx, o.OrderID)
	if entry == nil || entry.State != inventory.StateRestored {
		t.Fatalf("expected ledger entry RESTORED, got %+v", entry)
	}

	var illegal *apperr.IllegalStateError
	if _, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingCancelled, "admin-1"); !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalStateError cancelling twice, got %v", err)
	}
	if s := h.stockOf(t, "p-1"); s != 5 {
		t.Fatalf("stock must be restored once, got %d", s)
	}
}

func TestTransition_CancelPaidOrderNotesRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := placeDeferred(t, h)
	if err := h.reconciler.RecordSuccess(ctx, o.OrderID, "T1"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if _, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingPreparing, "admin-1"); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	got, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingCancelled, "admin-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.PaymentStatus != orders.PaymentPaid {
		t.Fatalf("PAID is terminal, got %s", got.PaymentStatus)
	}
	history := h.history(t, o.OrderID)
	if history[0].Kind != orders.KindCancelled || !strings.Contains(history[0].Note, "Refund required.") {
		t.Fatalf("unexpected entry: %+v", history[0])
	}
	if s := h.stockOf(t, "p-1"); s != 5 {
		t.Fatalf("expected stock restored to 5, got %d", s)
	}
}

func TestTransition_PendingOnlineOrderOnlyCancels(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := placeDeferred(t, h)

	var illegal *apperr.IllegalStateError
	if _, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingPreparing, "admin-1"); !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalStateError for unpaid online order, got %v", err)
	}
	if !errors.Is(illegal, orders.ErrIllegalTransition) {
		t.Fatalf("expected wrapped ErrIllegalTransition")
	}
	if _, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingCancelled, "admin-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s := h.stockOf(t, "p-1"); s != 5 {
		t.Fatalf("nothing was taken, stock must stay 5, got %d", s)
	}
}

func TestTransition_PickupCollected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := placeCOD(t, h, orders.DeliveryPickup)

	var illegal *apperr.IllegalStateError
	if _, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingInTransit, "admin-1"); !errors.As(err, &illegal) {
		t.Fatalf("pickup orders never go in transit, got %v", err)
	}
	if _, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingCollected, "admin-1"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	history := h.history(t, o.OrderID)
	if !strings.Contains(history[0].Note, "store-7") {
		t.Fatalf("expected note to name the pickup store, got %q", history[0].Note)
	}
}

func TestTransition_DeliveryFailedThenCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := placeCOD(t, h, orders.DeliveryStandard)

	_, _ = h.machine.Transition(ctx, o.OrderID, orders.ShippingInTransit, "admin-1")
	if _, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingDeliveryFailed, "courier"); err != nil {
		t.Fatalf("DELIVERY_FAILED: %v", err)
	}
	var illegal *apperr.IllegalStateError
	if _, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingDelivered, "courier"); !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalStateError, got %v", err)
	}
	if _, err := h.machine.Transition(ctx, o.OrderID, orders.ShippingCancelled, "admin-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s := h.stockOf(t, "p-1"); s != 5 {
		t.Fatalf("expected stock restored, got %d", s)
	}
}

func TestCancelByCustomer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := placeCOD(t, h, orders.DeliveryStandard)

	var forbidden *apperr.ForbiddenError
	if _, err := h.machine.CancelByCustomer(ctx, o.OrderID, "acct-2"); !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	got, err := h.machine.CancelByCustomer(ctx, o.OrderID, "acct-1")
	if err != nil {
		t.Fatalf("CancelByCustomer: %v", err)
	}
	if got.ShippingStatus != orders.ShippingCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.ShippingStatus)
	}
	if h.history(t, o.OrderID)[0].Note != "Order cancelled by customer." {
		t.Fatalf("unexpected note")
	}
	if s := h.stockOf(t, "p-1"); s != 5 {
		t.Fatalf("expected stock restored, got %d", s)
	}
}

func TestCancelByCustomer_AlreadyFulfilling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := placeCOD(t, h, orders.DeliveryStandard)
	_, _ = h.machine.Transition(ctx, o.OrderID, orders.ShippingPreparing, "admin-1")

	var illegal *apperr.IllegalStateError
	if _, err := h.machine.CancelByCustomer(ctx, o.OrderID, "acct-1"); !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalStateError, got %v", err)
	}
	if !strings.Contains(illegal.Error(), "already being fulfilled") {
		t.Fatalf("unexpected message: %s", illegal.Error())
	}
}

type failingRestoreLedger struct {
	StockLedger
}

func (failingRestoreLedger) Restore(context.Context, int64) error {
	return errors.New("products table throttled")
}

func TestTransition_RestoreFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := placeCOD(t, h, orders.DeliveryStandard)
	m := NewStatusMachine(h.orders, failingRestoreLedger{h.ledger}, h.alerts, nil)

	got, err := m.Transition(ctx, o.OrderID, orders.ShippingCancelled, "admin-1")
	var ff *FulfillmentError
	if !errors.As(err, &ff) || ff.Stage != "stock restore" {
		t.Fatalf("expected restore FulfillmentError, got %v", err)
	}
	if got == nil || got.ShippingStatus != orders.ShippingCancelled {
		t.Fatalf("cancellation itself must stand, got %+v", got)
	}
	if h.history(t, o.OrderID)[0].Kind != orders.KindRestoreFailed {
		t.Fatalf("expected restore_failed entry")
	}
	if h.alerts.count(MetricRestoreFailed) != 1 {
		t.Fatalf("expected restore alert")
	}
}
