package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/validation"
)

func (a *api) startCheckout(c *gin.Context) {
	intent, err := a.Accumulator.Start(c.Request.Context(), c.GetString(ctxAccountID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", "/checkout/"+intent.ID)
	c.JSON(http.StatusCreated, intent)
}

func (a *api) getCheckout(c *gin.Context) {
	intent, err := a.Accumulator.Get(c.Request.Context(), c.Param("id"), c.GetString(ctxAccountID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (a *api) setAddress(c *gin.Context) {
	var req validation.SetAddressRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	intent, err := a.Accumulator.SetAddress(c.Request.Context(), c.Param("id"), c.GetString(ctxAccountID), req.AddressID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (a *api) setDelivery(c *gin.Context) {
	var req validation.SetDeliveryRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	intent, err := a.Accumulator.SetDeliveryMethod(c.Request.Context(), c.Param("id"), c.GetString(ctxAccountID),
		orders.DeliveryMethod(req.DeliveryMethod), req.PickupStoreID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (a *api) setPayment(c *gin.Context) {
	var req validation.SetPaymentRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	intent, err := a.Accumulator.SetPaymentMethod(c.Request.Context(), c.Param("id"), c.GetString(ctxAccountID),
		orders.PaymentMethod(req.PaymentMethod))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

func (a *api) discardCheckout(c *gin.Context) {
	if err := a.Accumulator.Discard(c.Request.Context(), c.Param("id"), c.GetString(ctxAccountID)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
