package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-orders/internal/checkout"
	"github.com/imrishuroy/go-storefront-orders/internal/gateway"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/settings"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

// Error kinds carried in the "code" field of failure responses.
const (
	KindValidation        = "validation_failed"
	KindUnauthorized      = "unauthorized"
	KindForbidden         = "forbidden"
	KindNotFound          = "not_found"
	KindConflict          = "conflict"
	KindPaymentNotSettled = "payment_not_settled"
	KindGateway           = "gateway_error"
	KindInternal          = "internal_error"
)

type errorKind struct {
	target error
	status int
	code   string
	// message replaces err.Error() when set.
	message string
}

// kinds is checked in order; the first match wins.
var kinds = []errorKind{
	{validation.ErrInvalidRequest, http.StatusBadRequest, KindValidation, ""},
	{checkout.ErrInvalidOrder, http.StatusBadRequest, KindValidation, ""},
	{checkout.ErrAmountMismatch, http.StatusBadRequest, KindValidation, ""},
	{orders.ErrInvalidTransition, http.StatusBadRequest, KindValidation, ""},
	{orders.ErrUnknownStatus, http.StatusBadRequest, KindValidation, ""},
	{settings.ErrInvalidSettings, http.StatusBadRequest, KindValidation, ""},
	{orders.ErrNotFound, http.StatusNotFound, KindNotFound, ""},
	{orders.ErrStatusMismatch, http.StatusConflict, KindConflict, "order was modified concurrently, reload and retry"},
	{orders.ErrDuplicateRequest, http.StatusConflict, KindConflict, ""},
	{checkout.ErrRequestInProgress, http.StatusConflict, KindConflict, ""},
	{checkout.ErrPreviousAttemptFailed, http.StatusConflict, KindConflict, ""},
	{checkout.ErrPaymentNotSettled, http.StatusPaymentRequired, KindPaymentNotSettled, "Payment Failed"},
	{gateway.ErrGateway, http.StatusBadGateway, KindGateway, "payment gateway unavailable"},
}

// classify maps err to its HTTP status, kind and client-facing message.
// Unknown errors are internal and their text is not exposed.
func classify(err error) (int, string, string) {
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			msg := k.message
			if msg == "" {
				msg = err.Error()
			}
			return k.status, k.code, msg
		}
	}
	return http.StatusInternalServerError, KindInternal, "internal error"
}

// fail writes the failure envelope and logs server-side errors.
func fail(c *gin.Context, err error) {
	status, code, msg := classify(err)
	log := logging.WithCtx(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "code", code, "error", err)
	} else {
		log.Info("request rejected", "path", c.FullPath(), "code", code, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg, "code": code})
}
