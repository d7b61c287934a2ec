package checkout

import "errors"

var (
	// ErrInvalidOrder is a placement request that cannot be priced or fails
	// the request schema.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrAmountMismatch means the client total differs from the server total.
	ErrAmountMismatch = errors.New("amount does not match order total")
	// ErrPaymentNotSettled means the gateway has not captured the payment.
	ErrPaymentNotSettled = errors.New("payment not settled")
	// ErrRequestInProgress means another request with the same idempotency
	// key has not finished.
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")
	// ErrPreviousAttemptFailed means the idempotency key belongs to a failed
	// attempt; the client must retry with a new key.
	ErrPreviousAttemptFailed = errors.New("previous attempt with this idempotency key failed")
)
