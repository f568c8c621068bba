package idempotency

import (
	"context"
	"time"
)

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is the shape persisted in the idempotency DynamoDB table. One record
// guards one order placement attempt for one account.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK, "<account>:<header key>"
	Status         string    `dynamodbav:"status"`
	OrderID        int64     `dynamodbav:"order_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`   // placement response replayed on retry
	ResponseStatus int       `dynamodbav:"response_status,omitempty"` // e.g., 201
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Keeper is what the placement handler needs from an idempotency backend.
type Keeper interface {
	CreateIfNotExists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (*Record, error)
	Retry(ctx context.Context, key string) (bool, error)
	MarkDone(ctx context.Context, key string, orderID int64, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// Key scopes a client supplied header value to the calling account so two
// accounts can never collide on the same value.
func Key(accountID, headerValue string) string {
	return accountID + ":" + headerValue
}
