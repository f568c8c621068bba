package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/apperr"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/checkout"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/inventory"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/logging"
)

func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// classify maps a domain error to an HTTP status and error code.
func classify(err error) (int, string) {
	var (
		notFound     *apperr.NotFoundError
		forbidden    *apperr.ForbiddenError
		illegal      *apperr.IllegalStateError
		sequence     *checkout.SequenceError
		incomplete   *checkout.IncompleteIntentError
		emptyCart    *checkout.EmptyCartError
		selection    *checkout.InvalidSelectionError
		insufficient *inventory.InsufficientStockError
		settled      *fulfillment.AlreadySettledError
		mismatch     *fulfillment.TransactionMismatchError
		ff           *fulfillment.FulfillmentError
	)
	switch {
	case errors.Is(err, checkout.ErrIntentNotFound):
		return http.StatusNotFound, "intent_not_found"
	case errors.As(err, &notFound), errors.Is(err, inventory.ErrProductNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &forbidden):
		return http.StatusForbidden, "forbidden"
	case errors.As(err, &selection):
		return http.StatusBadRequest, "invalid_selection"
	case errors.As(err, &sequence):
		return http.StatusConflict, "checkout_out_of_order"
	case errors.As(err, &incomplete):
		return http.StatusUnprocessableEntity, "checkout_incomplete"
	case errors.As(err, &emptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, inventory.ErrTooManyLines):
		return http.StatusUnprocessableEntity, "too_many_lines"
	case errors.As(err, &insufficient):
		return http.StatusConflict, "insufficient_stock"
	case errors.As(err, &settled):
		return http.StatusConflict, "already_settled"
	case errors.As(err, &mismatch):
		return http.StatusConflict, "transaction_mismatch"
	case errors.As(err, &illegal):
		return http.StatusConflict, "illegal_state"
	case errors.As(err, &ff):
		return http.StatusInternalServerError, "fulfillment_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError renders err in the JSON error envelope. Internal errors are
// logged and their detail withheld from the client.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if code == "internal_error" {
		logging.FromContext(c.Request.Context(), nil).Error("request failed", zap.Error(err))
		msg = "internal server error"
	}
	abortError(c, status, code, msg)
}
