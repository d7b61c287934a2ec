package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// Verification outcomes reported to metrics.
const (
	OutcomePaid        = "paid"
	OutcomeAlreadyPaid = "already_paid"
	OutcomeNotSettled  = "not_settled"
)

// VerifyPayment asks the gateway whether gatewayOrderID was paid and, if so,
// marks the order paid and clears the owner's cart. Only the call that flips
// the flag clears the cart, so repeating it is harmless. An empty userID
// skips the ownership check (worker and operator use).
func (s *Service) VerifyPayment(ctx context.Context, userID, gatewayOrderID string) (*Verification, error) {
	log := logging.WithCtx(ctx).With("gateway_order_id", gatewayOrderID)

	gw, err := s.gateway.FetchOrder(ctx, gatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("fetch gateway order: %w", err)
	}
	if !gw.Paid() {
		log.Info("payment not settled", "gateway_status", gw.Status)
		s.metrics.PaymentVerified(ctx, OutcomeNotSettled)
		return nil, fmt.Errorf("%w: gateway status %q", ErrPaymentNotSettled, gw.Status)
	}

	o, err := s.orders.Get(ctx, gw.Receipt)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil || (userID != "" && o.UserID != userID) {
		return nil, fmt.Errorf("%w: receipt %s", orders.ErrNotFound, gw.Receipt)
	}
	log = log.With("order_id", o.OrderID, "user_id", o.UserID)

	if o.Payment {
		s.metrics.PaymentVerified(ctx, OutcomeAlreadyPaid)
		return &Verification{OrderID: o.OrderID, AlreadyPaid: true}, nil
	}

	err = s.orders.MarkPaid(ctx, o.OrderID)
	if errors.Is(err, orders.ErrAlreadyPaid) {
		// Lost the race to a concurrent verification, which owns the cart clear.
		s.metrics.PaymentVerified(ctx, OutcomeAlreadyPaid)
		return &Verification{OrderID: o.OrderID, AlreadyPaid: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	if err := s.orders.ClearCart(ctx, o.UserID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	log.Info("payment verified")
	s.metrics.PaymentVerified(ctx, OutcomePaid)
	return &Verification{OrderID: o.OrderID}, nil
}
