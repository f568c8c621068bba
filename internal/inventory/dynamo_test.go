package inventory

import (
	"context"
	"errors"
	"testing"
)

func newTestDynamoStore(stock map[string]int) *DynamoStore {
	m := newMockDynamo()
	for id, q := range stock {
		m.seed("products", Product{ProductID: id, StockQuantity: q})
	}
	return NewDynamoStore(m, "products", "stock_ledger")
}

func TestDynamoReserveAndRelease(t *testing.T) {
	s := newTestDynamoStore(map[string]int{"p-1": 5, "p-2": 2})
	ctx := context.Background()
	lines := []Line{{ProductID: "p-1", Quantity: 3}, {ProductID: "p-2", Quantity: 2}}

	if err := s.Reserve(ctx, 1, lines); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	p1, _ := s.GetProduct(ctx, "p-1")
	if p1.StockQuantity != 2 {
		t.Fatalf("expected p-1 at 2, got %d", p1.StockQuantity)
	}
	if err := s.Reserve(ctx, 1, lines); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("expected ErrAlreadyCommitted, got %v", err)
	}

	entry, err := s.Release(ctx, 1)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if entry.State != StateRestored {
		t.Fatalf("expected RESTORED, got %s", entry.State)
	}
	if _, err := s.Release(ctx, 1); !errors.Is(err, ErrNothingToRestore) {
		t.Fatalf("expected ErrNothingToRestore, got %v", err)
	}
	p1, _ = s.GetProduct(ctx, "p-1")
	p2, _ := s.GetProduct(ctx, "p-2")
	if p1.StockQuantity != 5 || p2.StockQuantity != 2 {
		t.Fatalf("expected stock restored, got p-1=%d p-2=%d", p1.StockQuantity, p2.StockQuantity)
	}
}

func TestDynamoReserve_Insufficient(t *testing.T) {
	s := newTestDynamoStore(map[string]int{"p-1": 5, "p-2": 1})
	ctx := context.Background()

	err := s.Reserve(ctx, 1, []Line{{ProductID: "p-1", Quantity: 3}, {ProductID: "p-2", Quantity: 2}})
	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ise.ProductID != "p-2" || ise.Available != 1 {
		t.Fatalf("unexpected detail: %+v", ise)
	}
	p1, _ := s.GetProduct(ctx, "p-1")
	if p1.StockQuantity != 5 {
		t.Fatalf("expected p-1 untouched, got %d", p1.StockQuantity)
	}
	if e, _ := s.GetEntry(ctx, 1); e != nil {
		t.Fatalf("expected no ledger entry, got %+v", e)
	}
}

func TestDynamoReserve_UnknownProduct(t *testing.T) {
	s := newTestDynamoStore(map[string]int{"p-1": 5})
	err := s.Reserve(context.Background(), 1, []Line{{ProductID: "ghost", Quantity: 1}})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestDynamoAdjustStock(t *testing.T) {
	s := newTestDynamoStore(map[string]int{"p-1": 2})
	ctx := context.Background()

	p, err := s.AdjustStock(ctx, "p-1", 4)
	if err != nil || p.StockQuantity != 6 {
		t.Fatalf("AdjustStock: p=%+v err=%v", p, err)
	}
	var ise *InsufficientStockError
	if _, err := s.AdjustStock(ctx, "p-1", -7); !errors.As(err, &ise) || ise.Available != 6 {
		t.Fatalf("expected InsufficientStockError with available 6, got %v", err)
	}
	if _, err := s.AdjustStock(ctx, "ghost", -1); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := s.GetProduct(ctx, "ghost"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}
