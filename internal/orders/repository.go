package orders

import (
	"context"
	"errors"

	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
)

var (
	// ErrNotFound is returned when an order id does not resolve.
	ErrNotFound = errors.New("order not found")
	// ErrStatusMismatch is returned when a conditional status write finds a
	// status other than the one expected (a concurrent update won).
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrAlreadyPaid is returned by MarkPaid when the order is not unpaid.
	ErrAlreadyPaid = errors.New("order already paid")
	// ErrDuplicateRequest is returned by Create when the idempotency key exists.
	ErrDuplicateRequest = errors.New("idempotency key already used")
)

// CreateOptions are the side writes committed atomically with a new order.
type CreateOptions struct {
	Idempotency *idempotency.Record
	// ClearCart resets the owner's cart to empty in the same transaction.
	ClearCart bool
}

// Repository is the order store. Implementations: DynamoStore and
// mongostore.Orders.
type Repository interface {
	Create(ctx context.Context, order Order, opts CreateOptions) error
	// Get returns (nil, nil) when the order does not exist.
	Get(ctx context.Context, orderID string) (*Order, error)
	// List returns every order, oldest first.
	List(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// UpdateStatus moves the order from expected to next, failing with
	// ErrStatusMismatch when the stored status is no longer expected.
	UpdateStatus(ctx context.Context, orderID string, expected, next Status, markPaid bool) error
	MarkPaid(ctx context.Context, orderID string) error
	ClearCart(ctx context.Context, userID string) error
}
