package inventory

import (
	"sort"
	"time"
)

// Line is a quantity of one product taken from or returned to stock.
type Line struct {
	ProductID string `dynamodbav:"product_id" json:"product_id"`
	Quantity  int    `dynamodbav:"quantity" json:"quantity"`
}

// Product is the catalog row holding stock. StockQuantity never goes below zero.
type Product struct {
	ProductID     string    `dynamodbav:"product_id" json:"product_id"` // PK
	Name          string    `dynamodbav:"name,omitempty" json:"name,omitempty"`
	StockQuantity int       `dynamodbav:"stock_quantity" json:"stock_quantity"`
	UpdatedAt     time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// EntryState is the lifecycle of a ledger entry.
type EntryState string

const (
	StateCommitted EntryState = "COMMITTED"
	StateRestored  EntryState = "RESTORED"
)

// Entry records the stock taken for one order. It is written together with
// the decrements, so it exists if and only if the order's stock was taken.
type Entry struct {
	OrderID    int64      `dynamodbav:"order_id" json:"order_id"` // PK
	State      EntryState `dynamodbav:"state" json:"state"`
	Lines      []Line     `dynamodbav:"lines" json:"lines"`
	CreatedAt  time.Time  `dynamodbav:"created_at" json:"created_at"`
	RestoredAt *time.Time `dynamodbav:"restored_at,omitempty" json:"restored_at,omitempty"`
}

// Aggregate merges lines for the same product and sorts by product id. Lines
// with a non-positive quantity are dropped.
func Aggregate(lines []Line) []Line {
	totals := map[string]int{}
	for _, l := range lines {
		if l.Quantity > 0 {
			totals[l.ProductID] += l.Quantity
		}
	}
	out := make([]Line, 0, len(totals))
	for id, q := range totals {
		out = append(out, Line{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
