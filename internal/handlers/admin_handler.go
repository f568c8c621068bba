package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/logging"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/validation"
)

func (a *api) adminGetOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c, c.Param("id"))
	if !ok {
		return
	}
	view, err := a.Reader.View(c.Request.Context(), orderID, "")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *api) transitionOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c, c.Param("id"))
	if !ok {
		return
	}
	var req validation.StatusUpdateRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	order, err := a.Machine.Transition(c.Request.Context(), orderID, orders.ShippingStatus(req.Status), "admin:"+c.GetString(ctxAdminID))
	writeTransition(c, order, err)
}

// adjustStock is the catalog's guarded stock edit. Decrements never take a
// product below zero.
func (a *api) adjustStock(c *gin.Context) {
	var req validation.StockAdjustRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	ctx := c.Request.Context()
	productID := c.Param("id")
	product, err := a.Inventory.AdjustStock(ctx, productID, req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}
	logging.FromContext(ctx, a.Logger).Info("stock adjusted",
		zap.String("product_id", productID),
		zap.Int("delta", req.Delta),
		zap.Int("stock_quantity", product.StockQuantity),
		zap.String("admin_id", c.GetString(ctxAdminID)),
		zap.String("reason", req.Reason))
	c.JSON(http.StatusOK, product)
}

func (a *api) sweepPending(c *gin.Context) {
	res, err := a.Expirer.Sweep(c.Request.Context(), time.Now().UTC())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
