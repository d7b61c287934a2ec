package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/metrics"
)

// Workflow applies admin status changes through the state machine.
type Workflow struct {
	repo    Repository
	metrics metrics.Recorder
}

func NewWorkflow(repo Repository, rec metrics.Recorder) *Workflow {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Workflow{repo: repo, metrics: rec}
}

// UpdateStatus moves an order to next. The write is conditional on the status
// that was validated, so a concurrent change surfaces as ErrStatusMismatch
// instead of being overwritten. Delivering a cash-on-delivery order also
// records it as paid.
func (w *Workflow) UpdateStatus(ctx context.Context, orderID string, next Status) (*Order, error) {
	log := logging.WithCtx(ctx).With("order_id", orderID)

	o, err := w.repo.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	if err := CheckTransition(o.Status, next); err != nil {
		return nil, err
	}

	markPaid := next == StatusDelivered && o.PaymentMethod == PaymentCOD && !o.Payment
	if err := w.repo.UpdateStatus(ctx, orderID, o.Status, next, markPaid); err != nil {
		if errors.Is(err, ErrStatusMismatch) {
			log.Warn("status update lost race", "expected", o.Status, "next", next)
		}
		return nil, err
	}

	log.Info("order status changed", "from", o.Status, "to", next, "cod_paid", markPaid)
	w.metrics.StatusChanged(ctx, string(next))

	o.Status = next
	if markPaid {
		o.Payment = true
	}
	return o, nil
}
