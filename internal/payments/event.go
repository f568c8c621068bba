// Package payments carries gateway payment outcomes from the API to the worker.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/aws"
)

// Outcome is the gateway's verdict on a payment.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// Event is one payment notification. Events may be duplicated or arrive out of order.
type Event struct {
	OrderID       int64     `json:"order_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Sender is satisfied by *aws.Publisher.
type Sender interface {
	Send(ctx context.Context, messageBody string, attributes map[string]string) (string, error)
}

// Queue publishes payment events for asynchronous reconciliation.
type Queue struct {
	sender Sender
}

func NewQueue(sender Sender) *Queue {
	return &Queue{sender: sender}
}

// Enqueue publishes ev and returns the queue's message id.
func (q *Queue) Enqueue(ctx context.Context, ev Event) (string, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal payment event: %w", err)
	}
	return q.sender.Send(ctx, string(body), map[string]string{
		"order_id":       strconv.FormatInt(ev.OrderID, 10),
		"outcome":        string(ev.Outcome),
		"correlation_id": ev.CorrelationID,
	})
}

// Decode parses a queued event body.
func Decode(body string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return Event{}, fmt.Errorf("invalid payment event: %w", err)
	}
	if ev.OrderID <= 0 || !ev.Outcome.Valid() {
		return Event{}, fmt.Errorf("invalid payment event: order_id=%d outcome=%q", ev.OrderID, ev.Outcome)
	}
	return ev, nil
}

var _ Sender = (*aws.Publisher)(nil)
