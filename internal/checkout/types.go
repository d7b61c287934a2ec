package checkout

import (
	"github.com/imrishuroy/go-storefront-orders/internal/gateway"
	"github.com/imrishuroy/go-storefront-orders/internal/money"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// ItemRequest is a cart line as sent by the storefront. The price, if any, is
// ignored: unit prices come from the catalog.
type ItemRequest struct {
	Name     string
	Size     string
	Quantity int
}

// PlaceRequest is the input of both placement paths.
type PlaceRequest struct {
	UserID  string
	Items   []ItemRequest
	Amount  money.Money
	Address orders.Address
	// IdempotencyKey is optional. Without one, retries create new orders.
	IdempotencyKey string
}

// Receipt is the result of a placement. It is stored with the idempotency
// record and replayed verbatim for retries.
type Receipt struct {
	OrderID       string               `json:"orderId"`
	PaymentMethod orders.PaymentMethod `json:"paymentMethod"`
	Amount        money.Money          `json:"amount"`
	GatewayOrder  *gateway.Order       `json:"gatewayOrder,omitempty"`
	// Replayed is set when the receipt comes from an earlier request.
	Replayed bool `json:"-"`
}

// Verification is the result of VerifyPayment.
type Verification struct {
	OrderID string
	// AlreadyPaid is set when an earlier verification flipped the flag.
	AlreadyPaid bool
}

// ReconcileMessage asks the worker to verify a gateway payment the client may
// never have confirmed.
type ReconcileMessage struct {
	OrderID        string `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	UserID         string `json:"user_id"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}
