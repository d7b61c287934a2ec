package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-storefront-orders/internal/checkout"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// Verifier is the part of checkout.Service the worker needs.
type Verifier interface {
	VerifyPayment(ctx context.Context, userID, gatewayOrderID string) (*checkout.Verification, error)
}

// Processor reconciles gateway payments queued at placement time.
type Processor struct {
	verifier Verifier
}

func NewProcessor(v Verifier) *Processor {
	return &Processor{verifier: v}
}

// Handle processes an SQS batch. The first failure is returned so Lambda
// retries the batch; repeated failures end in the DLQ. Verification is
// idempotent, so redelivered records are harmless.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	logging.WithCtx(ctx).Info("received SQS batch", "records", len(ev.Records))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			logging.WithCtx(ctx).Error("worker error", "message_id", rec.MessageId, "error", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg checkout.ReconcileMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.GatewayOrderID == "" {
		return fmt.Errorf("invalid message body: missing gateway_order_id")
	}

	log := logging.WithCtx(ctx).With(
		"message_id", rec.MessageId,
		"order_id", msg.OrderID,
		"gateway_order_id", msg.GatewayOrderID,
		"correlation_id", msg.CorrelationID,
	)
	ctx = logging.WithRequestID(logging.InjectLogger(ctx, log), msg.CorrelationID)
	log.Info("reconciling payment")

	v, err := p.verifier.VerifyPayment(ctx, msg.UserID, msg.GatewayOrderID)
	switch {
	case errors.Is(err, checkout.ErrPaymentNotSettled):
		// The customer abandoned checkout or is still paying; nothing to do.
		log.Info("payment not settled, acknowledging")
		return nil
	case errors.Is(err, orders.ErrNotFound):
		log.Warn("no order for gateway receipt, acknowledging", "error", err)
		return nil
	case err != nil:
		return fmt.Errorf("verify payment for order %s: %w", msg.OrderID, err)
	}

	log.Info("payment reconciled", "already_paid", v.AlreadyPaid)
	return nil
}
