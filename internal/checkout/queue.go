package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
)

// Queue schedules reconciliation of gateway orders.
type Queue interface {
	EnqueueReconcile(ctx context.Context, msg ReconcileMessage) error
}

// SQSQueue publishes reconcile messages with a fixed delivery delay.
type SQSQueue struct {
	publisher *aws.Publisher
	delay     time.Duration
}

func NewSQSQueue(p *aws.Publisher, delay time.Duration) *SQSQueue {
	return &SQSQueue{publisher: p, delay: delay}
}

func (q *SQSQueue) EnqueueReconcile(ctx context.Context, msg ReconcileMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reconcile message: %w", err)
	}
	attrs := map[string]string{
		"order_id":       msg.OrderID,
		"correlation_id": msg.CorrelationID,
	}
	return q.publisher.SendMessage(ctx, string(body), attrs, int32(q.delay/time.Second))
}
