package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/logging"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/payments"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/validation"
)

const (
	reasonGatewayFailure  = "gateway reported failure"
	reasonCustomerAborted = "customer cancelled at gateway"
)

// paymentWebhook accepts a gateway notification. With a queue configured the
// event is handed to the worker; otherwise it is reconciled in the request.
func (a *api) paymentWebhook(c *gin.Context) {
	var req validation.PaymentWebhookRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	ctx := c.Request.Context()
	if req.Outcome == string(payments.OutcomeSuccess) && req.TransactionID == "" {
		logging.FromContext(ctx, a.Logger).Warn("payment success without transaction id",
			zap.Int64("order_id", req.OrderID))
	}
	ev := payments.Event{
		OrderID:       req.OrderID,
		TransactionID: req.TransactionID,
		Outcome:       payments.Outcome(req.Outcome),
		Reason:        req.Reason,
		ReceivedAt:    time.Now().UTC(),
		CorrelationID: c.GetString(ctxRequestID),
	}

	if a.PaymentQueue != nil {
		msgID, err := a.PaymentQueue.Enqueue(ctx, ev)
		if err != nil {
			writeError(c, err)
			return
		}
		logging.FromContext(ctx, a.Logger).Info("payment event queued",
			zap.Int64("order_id", ev.OrderID), zap.String("message_id", msgID))
		c.JSON(http.StatusAccepted, gin.H{"queued": true, "message_id": msgID})
		return
	}

	ack, err := a.Reconciler.ReportOutcome(ctx, ev)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// redirectSuccess handles the customer's return from the gateway after paying.
func (a *api) redirectSuccess(c *gin.Context) {
	orderID, ok := a.ownedCallbackOrder(c)
	if !ok {
		return
	}
	ack, err := fulfillment.Acknowledge(a.Reconciler.ConfirmOnRedirect(c.Request.Context(), orderID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "ack": ack})
}

func (a *api) redirectFailure(c *gin.Context) {
	a.redirectUnpaid(c, reasonGatewayFailure)
}

func (a *api) redirectCancel(c *gin.Context) {
	a.redirectUnpaid(c, reasonCustomerAborted)
}

func (a *api) redirectUnpaid(c *gin.Context, reason string) {
	orderID, ok := a.ownedCallbackOrder(c)
	if !ok {
		return
	}
	ack, err := fulfillment.Acknowledge(a.Reconciler.RecordFailure(c.Request.Context(), orderID, reason))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "ack": ack})
}

// ownedCallbackOrder reads ?orderId= and checks the caller owns the order.
func (a *api) ownedCallbackOrder(c *gin.Context) (int64, bool) {
	orderID, ok := orderIDParam(c, c.Query("orderId"))
	if !ok {
		return 0, false
	}
	if _, err := a.Reader.View(c.Request.Context(), orderID, c.GetString(ctxAccountID)); err != nil {
		writeError(c, err)
		return 0, false
	}
	return orderID, true
}
