package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

// DefaultPendingTTL is how long an online order may wait for its payment.
const DefaultPendingTTL = 24 * time.Hour

// SweepResult summarizes one expiry sweep.
type SweepResult struct {
	Examined int     `json:"examined"`
	Expired  []int64 `json:"expired"`
	Failed   []int64 `json:"failed,omitempty"`
}

// Expirer cancels online orders whose payment never arrived.
type Expirer struct {
	orders     OrderStore
	reconciler *Reconciler
	ttl        time.Duration
	logger     *zap.Logger
}

func NewExpirer(store OrderStore, reconciler *Reconciler, ttl time.Duration, logger *zap.Logger) *Expirer {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expirer{orders: store, reconciler: reconciler, ttl: ttl, logger: logger}
}

// Sweep expires every online order still PENDING that was created more than
// the TTL before now. Orders settled in the meantime are skipped.
func (e *Expirer) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	pending, err := e.orders.ListPendingPayment(ctx, now.Add(-e.ttl))
	if err != nil {
		return SweepResult{}, err
	}
	res := SweepResult{Examined: len(pending), Expired: []int64{}}
	note := fmt.Sprintf("Payment not received within %s. Order cancelled.", e.ttl)

	for i := range pending {
		o := pending[i]
		err := e.reconciler.failPending(ctx, &o, orders.KindExpired, note, "system")
		var settled *AlreadySettledError
		switch {
		case err == nil:
			res.Expired = append(res.Expired, o.OrderID)
		case errors.As(err, &settled):
			// settled between the scan and the write
		default:
			e.logger.Error("expire order failed", zap.Int64("order_id", o.OrderID), zap.Error(err))
			res.Failed = append(res.Failed, o.OrderID)
		}
	}
	e.logger.Info("pending payment sweep finished",
		zap.Int("examined", res.Examined),
		zap.Int("expired", len(res.Expired)),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}
