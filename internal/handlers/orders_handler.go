package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-storefront-orders/internal/analytics"
	"github.com/imrishuroy/go-storefront-orders/internal/auth"
	"github.com/imrishuroy/go-storefront-orders/internal/checkout"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/settings"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

// IdempotencyKeyHeader is the optional client-supplied key for placements.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader is set on placement responses replayed from an earlier
// request with the same key.
const ReplayedHeader = "Idempotent-Replayed"

const maxIdempotencyKeyLen = 255

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	Checkout  *checkout.Service
	Workflow  *orders.Workflow
	Orders    orders.Repository
	Analytics *analytics.Aggregator
	Settings  *settings.Service
	Tokens    *auth.Tokens
}

type ordersHandler struct {
	cfg HandlerConfig
	v   *validatorv10.Validate
}

// RegisterOrdersRoutes registers the /api/order routes.
func RegisterOrdersRoutes(r gin.IRouter, cfg HandlerConfig) {
	h := &ordersHandler{cfg: cfg, v: validation.New()}
	user := auth.RequireUser(cfg.Tokens)
	admin := auth.RequireAdmin(cfg.Tokens)

	g := r.Group("/api/order")
	g.POST("/place", user, h.placeCOD)
	g.POST("/razorpay", user, h.placeGateway)
	g.POST("/verifyRazorpay", user, h.verify)
	g.POST("/userorders", user, h.userOrders)
	g.POST("/list", admin, h.list)
	g.POST("/status", admin, h.updateStatus)
	g.GET("/analytics", admin, h.analytics)
}

func (h *ordersHandler) placeRequest(c *gin.Context) (checkout.PlaceRequest, bool) {
	var req validation.PlaceOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		fail(c, err)
		return checkout.PlaceRequest{}, false
	}
	key := c.GetHeader(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		fail(c, validation.ErrInvalidRequest)
		return checkout.PlaceRequest{}, false
	}
	return req.ToPlaceRequest(auth.UserID(c), key), true
}

func markReplayed(c *gin.Context, r *checkout.Receipt) {
	if r.Replayed {
		c.Header(ReplayedHeader, "true")
	}
}

func (h *ordersHandler) placeCOD(c *gin.Context) {
	req, ok := h.placeRequest(c)
	if !ok {
		return
	}
	receipt, err := h.cfg.Checkout.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	markReplayed(c, receipt)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order Placed", "orderId": receipt.OrderID})
}

func (h *ordersHandler) placeGateway(c *gin.Context) {
	req, ok := h.placeRequest(c)
	if !ok {
		return
	}
	receipt, err := h.cfg.Checkout.PlaceOrderGateway(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	markReplayed(c, receipt)
	c.JSON(http.StatusOK, gin.H{"success": true, "order": receipt.GatewayOrder, "orderId": receipt.OrderID})
}

func (h *ordersHandler) verify(c *gin.Context) {
	var req validation.VerifyRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		fail(c, err)
		return
	}
	v, err := h.cfg.Checkout.VerifyPayment(c.Request.Context(), auth.UserID(c), req.OrderID())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment Successful", "orderId": v.OrderID, "alreadyPaid": v.AlreadyPaid})
}

func (h *ordersHandler) userOrders(c *gin.Context) {
	list, err := h.cfg.Orders.ListByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": nonNil(list)})
}

func (h *ordersHandler) list(c *gin.Context) {
	list, err := h.cfg.Orders.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": nonNil(list)})
}

func (h *ordersHandler) updateStatus(c *gin.Context) {
	var req validation.StatusRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		fail(c, err)
		return
	}
	o, err := h.cfg.Workflow.UpdateStatus(c.Request.Context(), req.OrderID, req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Status Updated", "order": o})
}

func (h *ordersHandler) analytics(c *gin.Context) {
	summary, err := h.cfg.Analytics.Compute(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analytics": summary})
}

func nonNil(list []orders.Order) []orders.Order {
	if list == nil {
		return []orders.Order{}
	}
	return list
}
