package fulfillment

import (
	"context"
	"sync"
	"testing"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/addresses"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/cart"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/checkout"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/inventory"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

type recordingAlerter struct {
	mu      sync.Mutex
	metrics []string
}

func (a *recordingAlerter) Alert(_ context.Context, metric string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = append(a.metrics, metric)
	return nil
}

func (a *recordingAlerter) count(metric string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, m := range a.metrics {
		if m == metric {
			n++
		}
	}
	return n
}

type harness struct {
	orders     *orders.MemoryStore
	stock      *inventory.MemoryStore
	cart       *cart.MemoryCart
	alerts     *recordingAlerter
	ledger     *inventory.Ledger
	factory    *Factory
	reconciler *Reconciler
	machine    *StatusMachine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		orders: orders.NewMemoryStore(),
		stock:  inventory.NewMemoryStore(),
		cart:   cart.NewMemoryCart(),
		alerts: &recordingAlerter{},
	}
	book := addresses.NewMemoryBook(
		addresses.Address{ID: "addr-1", AccountID: "acct-1", Latitude: 14.6760, Longitude: 121.0437},
	)
	h.ledger = inventory.NewLedger(h.stock, h.cart, nil)
	h.factory = NewFactory(h.orders, h.ledger, h.cart, book, h.alerts, nil)
	h.reconciler = NewReconciler(h.orders, h.ledger, h.alerts, nil)
	h.machine = NewStatusMachine(h.orders, h.ledger, h.alerts, nil)
	return h
}

// fillCart seeds p-1 with stock and puts qty of it at 100.00 in acct-1's cart.
func (h *harness) fillCart(t *testing.T, stock, qty int) {
	t.Helper()
	h.stock.Seed("p-1", stock)
	if err := h.cart.Put(context.Background(), "acct-1", cart.Line{ProductID: "p-1", Quantity: qty, UnitPrice: 10000}); err != nil {
		t.Fatalf("fill cart: %v", err)
	}
}

func intentFor(payment orders.PaymentMethod, delivery orders.DeliveryMethod) checkout.Intent {
	in := checkout.Intent{
		ID:             "intent-1",
		AccountID:      "acct-1",
		AddressID:      "addr-1",
		DeliveryMethod: delivery,
		PaymentMethod:  payment,
		ShippingFee:    5000,
		FeeComputed:    true,
		Step:           checkout.StepPaymentSelected,
	}
	if delivery == orders.DeliveryPickup {
		in.PickupStoreID = "store-7"
		in.ShippingFee = 0
	}
	return in
}

func (h *harness) stockOf(t *testing.T, productID string) int {
	t.Helper()
	p, err := h.stock.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	return p.StockQuantity
}

func (h *harness) order(t *testing.T, id int64) *orders.Order {
	t.Helper()
	o, err := h.orders.Get(context.Background(), id)
	if err != nil || o == nil {
		t.Fatalf("Get order %d: %v (nil=%v)", id, err, o == nil)
	}
	return o
}

func (h *harness) history(t *testing.T, id int64) []orders.HistoryEntry {
	t.Helper()
	entries, err := h.orders.ListHistory(context.Background(), id)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	return entries
}

func (h *harness) cartSize(t *testing.T) int {
	t.Helper()
	lines, err := h.cart.Items(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("cart Items: %v", err)
	}
	return len(lines)
}
