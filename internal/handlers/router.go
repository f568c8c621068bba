// Package handlers exposes the storefront's checkout, order, payment and
// admin operations over HTTP.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/checkout"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/idempotency"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/inventory"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/payments"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/validation"
)

// Deps groups the services behind the HTTP API.
type Deps struct {
	Accumulator *checkout.Accumulator
	Factory     *fulfillment.Factory
	Reconciler  *fulfillment.Reconciler
	Machine     *fulfillment.StatusMachine
	Expirer     *fulfillment.Expirer
	Reader      *fulfillment.Reader
	Inventory   inventory.Store
	Idempotency idempotency.Keeper
	// PaymentQueue defers webhook events to the worker. When nil, events are
	// reconciled inline.
	PaymentQueue *payments.Queue
	Logger       *zap.Logger
}

type api struct {
	Deps
	validate *validatorv10.Validate
}

// NewRouter builds the gin engine with middleware and every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), Metrics(), RequestLogger(d.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	Register(r, d)
	return r
}

// Register adds the API routes to r.
func Register(r *gin.Engine, d Deps) {
	a := &api{Deps: d, validate: validation.New()}

	r.POST("/webhooks/payments", a.paymentWebhook)

	customer := r.Group("/", RequireAccount())
	{
		customer.POST("/checkout", a.startCheckout)
		customer.GET("/checkout/:id", a.getCheckout)
		customer.PUT("/checkout/:id/address", a.setAddress)
		customer.PUT("/checkout/:id/delivery", a.setDelivery)
		customer.PUT("/checkout/:id/payment", a.setPayment)
		customer.DELETE("/checkout/:id", a.discardCheckout)
		customer.POST("/checkout/:id/complete", a.placeOrder)

		customer.GET("/orders/:id", a.getOrder)
		customer.POST("/orders/:id/cancel", a.cancelOrder)

		customer.GET("/payments/callback/success", a.redirectSuccess)
		customer.GET("/payments/callback/failure", a.redirectFailure)
		customer.GET("/payments/callback/cancel", a.redirectCancel)
	}

	admin := r.Group("/admin", RequireAdmin())
	{
		admin.GET("/orders/:id", a.adminGetOrder)
		admin.PUT("/orders/:id/status", a.transitionOrder)
		admin.POST("/products/:id/stock", a.adjustStock)
		admin.POST("/sweeps/pending", a.sweepPending)
	}
}
