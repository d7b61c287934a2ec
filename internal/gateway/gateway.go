// Package gateway talks to the hosted payment gateway.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrGateway matches every failure reported by the gateway or on the way to it.
var ErrGateway = errors.New("payment gateway error")

// StatusPaid is the payment-intent status that means the money was captured.
const StatusPaid = "paid"

// CreateOrderInput registers a payment intent.
type CreateOrderInput struct {
	Amount   int64 // minor units
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the gateway's payment intent. It is returned to the storefront as
// is, so the json names follow the gateway's.
type Order struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity,omitempty"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Attempts   int               `json:"attempts"`
	Notes      map[string]string `json:"notes,omitempty"`
	CreatedAt  int64             `json:"created_at"`
}

// Paid reports whether the intent is settled.
func (o Order) Paid() bool { return o.Status == StatusPaid }

// Gateway registers and looks up payment intents.
type Gateway interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
	FetchOrder(ctx context.Context, id string) (*Order, error)
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s (%s)", e.StatusCode, e.Description, e.Code)
}

func (e *APIError) Is(target error) bool { return target == ErrGateway }
