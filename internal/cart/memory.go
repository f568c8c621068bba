package cart

import (
	"context"
	"sort"
	"sync"
)

// MemoryCart is an in-process Cart for local runs and tests.
type MemoryCart struct {
	mu    sync.Mutex
	carts map[string]map[string]Line
}

func NewMemoryCart() *MemoryCart {
	return &MemoryCart{carts: map[string]map[string]Line{}}
}

func (c *MemoryCart) Put(_ context.Context, accountID string, line Line) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.carts[accountID] == nil {
		c.carts[accountID] = map[string]Line{}
	}
	c.carts[accountID][line.ProductID] = line
	return nil
}

func (c *MemoryCart) Items(_ context.Context, accountID string) ([]Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]Line, 0, len(c.carts[accountID]))
	for _, l := range c.carts[accountID] {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (c *MemoryCart) Clear(_ context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, accountID)
	return nil
}

var _ Cart = (*MemoryCart)(nil)
