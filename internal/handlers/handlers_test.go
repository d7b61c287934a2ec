package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront-orders/internal/analytics"
	"github.com/imrishuroy/go-storefront-orders/internal/auth"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog/catalogtest"
	"github.com/imrishuroy/go-storefront-orders/internal/checkout"
	"github.com/imrishuroy/go-storefront-orders/internal/gateway"
	"github.com/imrishuroy/go-storefront-orders/internal/money"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/orders/orderstest"
	"github.com/imrishuroy/go-storefront-orders/internal/settings"
)

type stubGateway struct {
	mu        sync.Mutex
	orders    map[string]*gateway.Order
	createErr error
}

func (g *stubGateway) CreateOrder(_ context.Context, in gateway.CreateOrderInput) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	o := &gateway.Order{ID: "order_" + in.Receipt, Amount: in.Amount, Currency: in.Currency, Receipt: in.Receipt, Status: "created"}
	g.orders[o.ID] = o
	return o, nil
}

func (g *stubGateway) FetchOrder(_ context.Context, id string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return nil, &gateway.APIError{StatusCode: http.StatusBadRequest, Code: "BAD_REQUEST_ERROR", Description: "id does not exist"}
	}
	cp := *o
	return &cp, nil
}

func (g *stubGateway) settle(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[id].Status = gateway.StatusPaid
}

type settingsStore struct {
	saved *settings.Settings
}

func (s *settingsStore) Get(context.Context) (*settings.Settings, error) { return s.saved, nil }

func (s *settingsStore) Save(_ context.Context, v settings.Settings) error {
	s.saved = &v
	return nil
}

type env struct {
	router *gin.Engine
	mem    *orderstest.Memory
	gw     *stubGateway
	user   string
	other  string
	admin  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := orderstest.NewMemory()
	gw := &stubGateway{orders: map[string]*gateway.Order{}}
	cat := &catalogtest.Static{Products: []catalog.Product{
		{ProductID: "p1", Name: "Shirt", Category: "Men", Price: money.FromInt(100), Sizes: []string{"M", "L"}},
		{ProductID: "p2", Name: "Cap", Category: "Kids", Price: money.MustParse("12.50")},
	}}
	set := settings.NewService(&settingsStore{}, settings.Settings{
		StoreName: "Forever", Currency: "INR", Timezone: "UTC", DeliveryFee: money.FromInt(10),
	})
	require.NoError(t, set.Load(context.Background()))

	tokens := auth.NewTokens("test-secret")
	cfg := HandlerConfig{
		Checkout: checkout.NewService(checkout.Deps{
			Orders:      mem,
			Idempotency: mem.Idempotency(),
			Catalog:     cat,
			Settings:    set,
			Gateway:     gw,
		}),
		Workflow:  orders.NewWorkflow(mem, nil),
		Orders:    mem,
		Analytics: analytics.NewAggregator(mem, cat, set.Location),
		Settings:  set,
		Tokens:    tokens,
	}

	r := gin.New()
	RegisterOrdersRoutes(r, cfg)
	RegisterSettingsRoutes(r, cfg)

	issue := func(id, role string) string {
		tok, err := tokens.Issue(id, role, time.Hour)
		require.NoError(t, err)
		return tok
	}
	return &env{
		router: r,
		mem:    mem,
		gw:     gw,
		user:   issue("user-1", auth.RoleUser),
		other:  issue("user-2", auth.RoleUser),
		admin:  issue("admin-1", auth.RoleAdmin),
	}
}

func (e *env) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("token", token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const address = `{"firstName":"Asha","lastName":"Rao","email":"asha@example.com","street":"1 MG Road",
	"city":"Pune","state":"MH","zipcode":"411001","country":"India","phone":"9999999999"}`

// 2 × Shirt(100) + Cap(12.50) + delivery 10
func placeBody(amount string) string {
	return fmt.Sprintf(`{"items":[{"name":"Shirt","size":"M","quantity":2},{"name":"Cap","quantity":1}],"amount":%s,"address":%s}`, amount, address)
}

func TestPlaceCOD(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/api/order/place", e.user, placeBody("222.50"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Order Placed", body["message"])
	orderID, _ := body["orderId"].(string)
	require.NotEmpty(t, orderID)

	o, err := e.mem.Get(context.Background(), orderID)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "user-1", o.UserID)
	assert.Equal(t, orders.StatusPlaced, o.Status)
	assert.Equal(t, orders.PaymentCOD, o.PaymentMethod)
	assert.False(t, o.Payment)
	assert.True(t, o.Amount.Equal(money.MustParse("222.50")))
	assert.Equal(t, 1, e.mem.ClearedCarts["user-1"])
}

func TestPlace_Rejections(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/order/place", "", placeBody("222.50"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/api/order/place", e.user, `{"items":[],"amount":10,"address":`+address+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindValidation, decode(t, w)["code"])

	w = e.do(http.MethodPost, "/api/order/place", e.user, placeBody("1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["message"], "amount does not match")

	w = e.do(http.MethodPost, "/api/order/place", e.user, `{"items":[{"name":"Shirt","size":"M","quantity":1},{"name":"Shirt","size":"M","quantity":1}],"amount":210,"address":`+address+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/order/place", e.user, `{"items":[{"name":"Ghost","quantity":1}],"amount":10,"address":`+address+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 0, e.mem.Len())
	assert.Equal(t, 0, e.mem.ClearedCarts["user-1"])
}

func TestPlace_IdempotentRetry(t *testing.T) {
	e := newEnv(t)
	first := e.do(http.MethodPost, "/api/order/place", e.user, placeBody("222.50"), IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	second := e.do(http.MethodPost, "/api/order/place", e.user, placeBody("222.50"), IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.Equal(t, decode(t, first)["orderId"], decode(t, second)["orderId"])
	assert.Equal(t, 1, e.mem.Len())
}

func TestGatewayFlow(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/api/order/razorpay", e.user, placeBody("222.50"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	intent, _ := body["order"].(map[string]any)
	require.NotNil(t, intent)
	assert.EqualValues(t, 22250, intent["amount"])
	assert.Equal(t, "INR", intent["currency"])
	assert.Equal(t, body["orderId"], intent["receipt"])
	gwID := intent["id"].(string)
	assert.Equal(t, 0, e.mem.ClearedCarts["user-1"])

	verify := `{"razorpay_order_id":"` + gwID + `"}`
	w = e.do(http.MethodPost, "/api/order/verifyRazorpay", e.user, verify)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, map[string]any{"success": false, "message": "Payment Failed", "code": KindPaymentNotSettled}, decode(t, w))

	e.gw.settle(gwID)

	w = e.do(http.MethodPost, "/api/order/verifyRazorpay", e.other, verify)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/order/verifyRazorpay", e.user, verify)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Payment Successful", decode(t, w)["message"])

	w = e.do(http.MethodPost, "/api/order/verifyRazorpay", e.user, `{"gatewayOrderId":"`+gwID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["alreadyPaid"])

	o, _ := e.mem.Get(context.Background(), body["orderId"].(string))
	assert.True(t, o.Payment)
	assert.Equal(t, 1, e.mem.ClearedCarts["user-1"])
}

func TestGatewayFailureLeavesNoOrder(t *testing.T) {
	e := newEnv(t)
	e.gw.createErr = fmt.Errorf("%w: connection refused", gateway.ErrGateway)

	w := e.do(http.MethodPost, "/api/order/razorpay", e.user, placeBody("222.50"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, KindGateway, decode(t, w)["code"])
	assert.Equal(t, 0, e.mem.Len())
}

func seed(e *env, id, user string, status orders.Status, method orders.PaymentMethod) {
	e.mem.Put(orders.Order{
		OrderID: id, UserID: user, Status: status, PaymentMethod: method,
		Amount: money.FromInt(50), Date: time.Now().UnixMilli(),
		Items: []orders.LineItem{{Name: "Shirt", Size: "M", Quantity: 1, Price: money.FromInt(40)}},
	})
}

func TestUpdateStatus(t *testing.T) {
	e := newEnv(t)
	seed(e, "o1", "user-1", orders.StatusPlaced, orders.PaymentCOD)

	w := e.do(http.MethodPost, "/api/order/status", e.user, `{"orderId":"o1","status":"Packing"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/order/status", e.admin, `{"orderId":"missing","status":"Packing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/order/status", e.admin, `{"orderId":"o1","status":"Teleported"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/order/status", e.admin, `{"orderId":"o1","status":"Shipped"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Status Updated", decode(t, w)["message"])

	w = e.do(http.MethodPost, "/api/order/status", e.admin, `{"orderId":"o1","status":"Packing"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/order/status", e.admin, `{"orderId":"o1","status":"Delivered"}`)
	require.Equal(t, http.StatusOK, w.Code)
	order := decode(t, w)["order"].(map[string]any)
	assert.Equal(t, true, order["payment"])
}

func TestUpdateStatus_Conflict(t *testing.T) {
	e := newEnv(t)
	seed(e, "o1", "user-1", orders.StatusPlaced, orders.PaymentCOD)
	e.mem.BeforeUpdate = func(m *orderstest.Memory, id string) {
		m.BeforeUpdate = nil
		o, _ := m.Get(context.Background(), id)
		o.Status = orders.StatusPacking
		m.Put(*o)
	}

	w := e.do(http.MethodPost, "/api/order/status", e.admin, `{"orderId":"o1","status":"Shipped"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, KindConflict, decode(t, w)["code"])
}

func TestListings(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/order/list", e.admin, `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"orders":[]}`, w.Body.String())

	seed(e, "o1", "user-1", orders.StatusPlaced, orders.PaymentCOD)
	seed(e, "o2", "user-2", orders.StatusPlaced, orders.PaymentCOD)

	w = e.do(http.MethodPost, "/api/order/list", e.user, `{}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/order/list", e.admin, `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["orders"], 2)

	w = e.do(http.MethodPost, "/api/order/userorders", e.user, `{"userId":"user-2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["orders"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "o1", list[0].(map[string]any)["orderId"])
}

func TestAnalytics(t *testing.T) {
	e := newEnv(t)
	seed(e, "o1", "user-1", orders.StatusPlaced, orders.PaymentCOD)
	seed(e, "o2", "user-1", orders.StatusDelivered, orders.PaymentCOD)

	w := e.do(http.MethodGet, "/api/order/analytics", e.user, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodGet, "/api/order/analytics", e.admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	a := decode(t, w)["analytics"].(map[string]any)
	assert.EqualValues(t, 2, a["totalOrders"])
	assert.EqualValues(t, 100, a["totalRevenue"])
	assert.EqualValues(t, 1, a["pendingOrders"])
	assert.EqualValues(t, 1, a["deliveredOrders"])
	assert.EqualValues(t, 2, a["totalProducts"])
}

func TestSettingsRoutes(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/api/settings", e.admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Forever", decode(t, w)["settings"].(map[string]any)["storeName"])

	w = e.do(http.MethodPut, "/api/settings", e.admin, `{"currency":"usd","deliveryFee":"5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s := decode(t, w)["settings"].(map[string]any)
	assert.Equal(t, "USD", s["currency"])
	assert.Equal(t, "Forever", s["storeName"])

	w = e.do(http.MethodPut, "/api/settings", e.admin, `{"currency":"ZZZ"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPut, "/api/settings", e.user, `{"storeName":"Mine"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// the new delivery fee prices the next order
	w = e.do(http.MethodPost, "/api/order/place", e.user, placeBody("217.50"))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestClassify(t *testing.T) {
	status, code, msg := classify(errors.New("dynamodb: throttled"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, KindInternal, code)
	assert.Equal(t, "internal error", msg)

	status, code, _ = classify(fmt.Errorf("load: %w", orders.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, KindNotFound, code)

	status, _, _ = classify(checkout.ErrRequestInProgress)
	assert.Equal(t, http.StatusConflict, status)
}
