package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/idempotency"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/logging"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

const headerIdempotencyKey = "Idempotency-Key"

type placementResponse struct {
	Order *orders.Order `json:"order"`
	// AwaitingPayment tells the client to hand the customer to the gateway.
	AwaitingPayment bool `json:"awaiting_payment"`
}

// placeOrder completes a checkout intent into an order. With an
// Idempotency-Key header a retried request replays the first response.
func (a *api) placeOrder(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.FromContext(ctx, a.Logger)
	accountID := c.GetString(ctxAccountID)
	intentID := c.Param("id")

	var key string
	if h := c.GetHeader(headerIdempotencyKey); h != "" && a.Idempotency != nil {
		key = idempotency.Key(accountID, h)
		if handled := a.claimIdempotency(c, key); handled {
			return
		}
	}

	order, err := a.place(ctx, intentID, accountID)
	if err != nil {
		if key != "" {
			if markErr := a.Idempotency.MarkFailed(ctx, key, err.Error()); markErr != nil {
				logger.Error("mark idempotency failed", zap.Error(markErr))
			}
		}
		writeError(c, err)
		return
	}

	if err := a.Accumulator.Discard(ctx, intentID, accountID); err != nil {
		logger.Warn("discard checkout intent", zap.String("intent_id", intentID), zap.Error(err))
	}

	body, err := json.Marshal(placementResponse{
		Order:           order,
		AwaitingPayment: order.PaymentStatus == orders.PaymentPending && !order.IsCOD(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if key != "" {
		if err := a.Idempotency.MarkDone(ctx, key, order.OrderID, string(body), http.StatusCreated); err != nil {
			logger.Error("mark idempotency done", zap.Int64("order_id", order.OrderID), zap.Error(err))
		}
	}

	c.Header("Location", fmt.Sprintf("/orders/%d", order.OrderID))
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

func (a *api) place(ctx context.Context, intentID, accountID string) (*orders.Order, error) {
	intent, err := a.Accumulator.Complete(ctx, intentID, accountID)
	if err != nil {
		return nil, err
	}
	return a.Factory.Place(ctx, intent)
}

// claimIdempotency reserves key for this request. It reports true when it
// already wrote the response: a replay, a conflict, or an error.
func (a *api) claimIdempotency(c *gin.Context, key string) bool {
	ctx := c.Request.Context()
	created, err := a.Idempotency.CreateIfNotExists(ctx, key)
	if err != nil {
		writeError(c, err)
		return true
	}
	if created {
		return false
	}

	rec, err := a.Idempotency.Get(ctx, key)
	if err != nil {
		writeError(c, err)
		return true
	}
	if rec != nil {
		switch rec.Status {
		case idempotency.StatusDone:
			c.Header("Idempotent-Replayed", "true")
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return true
		case idempotency.StatusFailed:
			won, err := a.Idempotency.Retry(ctx, key)
			if err != nil {
				writeError(c, err)
				return true
			}
			if won {
				return false
			}
		}
	}
	abortError(c, http.StatusConflict, "request_in_progress", "a request with this Idempotency-Key is still being processed")
	return true
}

func (a *api) getOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c, c.Param("id"))
	if !ok {
		return
	}
	view, err := a.Reader.View(c.Request.Context(), orderID, c.GetString(ctxAccountID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *api) cancelOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c, c.Param("id"))
	if !ok {
		return
	}
	order, err := a.Machine.CancelByCustomer(c.Request.Context(), orderID, c.GetString(ctxAccountID))
	writeTransition(c, order, err)
}

// writeTransition renders a status change. A cancellation whose stock could
// not be returned still happened, so it is reported with a warning.
func writeTransition(c *gin.Context, order *orders.Order, err error) {
	var ff *fulfillment.FulfillmentError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"order": order})
	case order != nil && errors.As(err, &ff):
		c.JSON(http.StatusOK, gin.H{"order": order, "warning": ff.Error()})
	default:
		writeError(c, err)
	}
}

func orderIDParam(c *gin.Context, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		abortError(c, http.StatusBadRequest, "invalid_order_id", fmt.Sprintf("order id %q is not a positive integer", raw))
		return 0, false
	}
	return id, true
}
