package cart

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisCart(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewRedisCart(rdb)
	ctx := context.Background()

	if err := c.Put(ctx, "acct-1", Line{ProductID: "p-2", Quantity: 1, UnitPrice: 500}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Put(ctx, "acct-1", Line{ProductID: "p-1", Quantity: 3, UnitPrice: 10000}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	lines, err := c.Items(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(lines) != 2 || lines[0].ProductID != "p-1" || lines[0].Quantity != 3 || lines[0].UnitPrice != 10000 {
		t.Fatalf("unexpected lines: %+v", lines)
	}

	if err := c.Clear(ctx, "acct-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	lines, _ = c.Items(ctx, "acct-1")
	if len(lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", lines)
	}
}

func TestMemoryCart_IsolatedPerAccount(t *testing.T) {
	c := NewMemoryCart()
	ctx := context.Background()
	_ = c.Put(ctx, "a", Line{ProductID: "p-1", Quantity: 1})
	_ = c.Put(ctx, "b", Line{ProductID: "p-1", Quantity: 2})

	_ = c.Clear(ctx, "a")
	if lines, _ := c.Items(ctx, "a"); len(lines) != 0 {
		t.Fatalf("expected a to be empty, got %+v", lines)
	}
	if lines, _ := c.Items(ctx, "b"); len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("expected b untouched, got %+v", lines)
	}
}
