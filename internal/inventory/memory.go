package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type stockCell struct {
	mu      sync.Mutex
	product Product
}

// MemoryStore is an in-process Store. Reserve and Release lock only the
// order and the products they touch, always in product id order.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*stockCell
	orders   map[int64]*sync.Mutex
	entries  map[int64]*Entry
	nowFunc  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: map[string]*stockCell{},
		orders:   map[int64]*sync.Mutex{},
		entries:  map[int64]*Entry{},
		nowFunc:  time.Now,
	}
}

// Seed sets a product's stock, creating the product if needed.
func (m *MemoryStore) Seed(productID string, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[productID] = &stockCell{product: Product{ProductID: productID, StockQuantity: qty, UpdatedAt: m.nowFunc().UTC()}}
}

func (m *MemoryStore) cell(productID string) *stockCell {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products[productID]
}

func (m *MemoryStore) orderLock(orderID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.orders[orderID]
	if !ok {
		l = &sync.Mutex{}
		m.orders[orderID] = l
	}
	return l
}

func (m *MemoryStore) GetProduct(_ context.Context, productID string) (*Product, error) {
	c := m.cell(productID)
	if c == nil {
		return nil, ErrProductNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.product
	return &p, nil
}

func (m *MemoryStore) AdjustStock(_ context.Context, productID string, delta int) (*Product, error) {
	c := m.cell(productID)
	if c == nil {
		return nil, ErrProductNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.product.StockQuantity+delta < 0 {
		return nil, &InsufficientStockError{ProductID: productID, Requested: -delta, Available: c.product.StockQuantity}
	}
	c.product.StockQuantity += delta
	c.product.UpdatedAt = m.nowFunc().UTC()
	p := c.product
	return &p, nil
}

// lockCells resolves and locks the cells for lines, which must be sorted.
func (m *MemoryStore) lockCells(lines []Line) ([]*stockCell, error) {
	cells := make([]*stockCell, 0, len(lines))
	for _, l := range lines {
		c := m.cell(l.ProductID)
		if c == nil {
			unlockCells(cells)
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, l.ProductID)
		}
		c.mu.Lock()
		cells = append(cells, c)
	}
	return cells, nil
}

func unlockCells(cells []*stockCell) {
	for i := len(cells) - 1; i >= 0; i-- {
		cells[i].mu.Unlock()
	}
}

func (m *MemoryStore) Reserve(_ context.Context, orderID int64, lines []Line) error {
	ol := m.orderLock(orderID)
	ol.Lock()
	defer ol.Unlock()

	m.mu.RLock()
	_, exists := m.entries[orderID]
	m.mu.RUnlock()
	if exists {
		return ErrAlreadyCommitted
	}

	cells, err := m.lockCells(lines)
	if err != nil {
		return err
	}
	defer unlockCells(cells)

	for i, l := range lines {
		if cells[i].product.StockQuantity < l.Quantity {
			return &InsufficientStockError{ProductID: l.ProductID, Requested: l.Quantity, Available: cells[i].product.StockQuantity}
		}
	}
	now := m.nowFunc().UTC()
	for i, l := range lines {
		cells[i].product.StockQuantity -= l.Quantity
		cells[i].product.UpdatedAt = now
	}

	m.mu.Lock()
	m.entries[orderID] = &Entry{
		OrderID:   orderID,
		State:     StateCommitted,
		Lines:     append([]Line(nil), lines...),
		CreatedAt: now,
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Release(_ context.Context, orderID int64) (*Entry, error) {
	ol := m.orderLock(orderID)
	ol.Lock()
	defer ol.Unlock()

	m.mu.RLock()
	entry := m.entries[orderID]
	m.mu.RUnlock()
	if entry == nil || entry.State != StateCommitted {
		return nil, ErrNothingToRestore
	}

	cells, err := m.lockCells(entry.Lines)
	if err != nil {
		return nil, err
	}
	now := m.nowFunc().UTC()
	for i, l := range entry.Lines {
		cells[i].product.StockQuantity += l.Quantity
		cells[i].product.UpdatedAt = now
	}
	unlockCells(cells)

	m.mu.Lock()
	entry.State = StateRestored
	entry.RestoredAt = &now
	out := *entry
	m.mu.Unlock()
	return &out, nil
}

func (m *MemoryStore) GetEntry(_ context.Context, orderID int64) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[orderID]
	if !ok {
		return nil, nil
	}
	out := *e
	out.Lines = append([]Line(nil), e.Lines...)
	return &out, nil
}

var _ Store = (*MemoryStore)(nil)
