package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for local runs and tests. Every
// write is a compare-and-set under the store mutex, matching the conditional
// writes of the DynamoDB Store.
type MemoryStore struct {
	mu      sync.Mutex
	seq     int64
	orders  map[int64]*Order
	history map[int64][]HistoryEntry
	nowFunc func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:  map[int64]*Order{},
		history: map[int64][]HistoryEntry{},
		nowFunc: time.Now,
	}
}

func (m *MemoryStore) NextOrderID(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *MemoryStore) Create(_ context.Context, order *Order, first HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.OrderID]; ok {
		return ErrOrderExists
	}
	now := m.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	if first.CreatedAt.IsZero() {
		first.CreatedAt = order.CreatedAt
	}
	m.orders[order.OrderID] = order.Clone()
	m.history[order.OrderID] = append(m.history[order.OrderID], first)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, orderID int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID].Clone(), nil
}

func (m *MemoryStore) MarkPaid(_ context.Context, orderID int64, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.PaymentStatus != PaymentPending {
		return ErrStatusMismatch
	}
	if txID != "" && o.PaymentTransactionID != "" && o.PaymentTransactionID != txID {
		return ErrStatusMismatch
	}
	o.PaymentStatus = PaymentPaid
	if txID != "" {
		o.PaymentTransactionID = txID
	}
	m.touch(o)
	return nil
}

func (m *MemoryStore) AttachTransaction(_ context.Context, orderID int64, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.PaymentStatus != PaymentPaid || o.PaymentTransactionID != "" {
		return ErrStatusMismatch
	}
	o.PaymentTransactionID = txID
	m.touch(o)
	return nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, orderID int64, change StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.ShippingStatus != change.ExpectedShipping || o.PaymentStatus != change.ExpectedPayment {
		return ErrStatusMismatch
	}
	o.ShippingStatus = change.Shipping
	o.PaymentStatus = change.Payment
	m.touch(o)
	return nil
}

func (m *MemoryStore) ListPendingPayment(_ context.Context, cutoff time.Time) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.PaymentStatus == PaymentPending && o.PaymentMethod == PaymentOnlineGateway && o.CreatedAt.Before(cutoff) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (m *MemoryStore) AppendHistory(_ context.Context, entry HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.nowFunc().UTC()
	}
	m.history[entry.OrderID] = append(m.history[entry.OrderID], entry)
	return nil
}

func (m *MemoryStore) ListHistory(_ context.Context, orderID int64) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedHistory(orderID), nil
}

func (m *MemoryStore) AmendLatest(_ context.Context, orderID int64, from, to HistoryKind, note string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[orderID]
	latest := -1
	for i := range entries {
		if entries[i].Kind == from && (latest < 0 || entries[i].EventID > entries[latest].EventID) {
			latest = i
		}
	}
	if latest < 0 {
		return false, nil
	}
	at := m.nowFunc().UTC()
	entries[latest].Kind = to
	entries[latest].Note = note
	entries[latest].AmendedAt = &at
	return true, nil
}

func (m *MemoryStore) sortedHistory(orderID int64) []HistoryEntry {
	out := append([]HistoryEntry(nil), m.history[orderID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventID > out[j].EventID })
	return out
}

func (m *MemoryStore) touch(o *Order) {
	o.UpdatedAt = m.nowFunc().UTC()
	o.Version++
}
