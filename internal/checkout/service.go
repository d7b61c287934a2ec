// Package checkout places orders and reconciles gateway payments.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/gateway"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/metrics"
	"github.com/imrishuroy/go-storefront-orders/internal/money"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/settings"
)

// SettingsProvider returns the current store settings.
type SettingsProvider interface {
	Current() settings.Settings
}

// Deps groups the collaborators of Service.
type Deps struct {
	Orders      orders.Repository
	Idempotency idempotency.Store
	Catalog     catalog.Catalog
	Settings    SettingsProvider
	Gateway     gateway.Gateway
	// Queue is optional; without it gateway orders are only verified when
	// the client confirms them.
	Queue          Queue
	Metrics        metrics.Recorder
	IdempotencyTTL time.Duration
}

// Service implements order placement and payment verification.
type Service struct {
	orders   orders.Repository
	idem     idempotency.Store
	catalog  catalog.Catalog
	settings SettingsProvider
	gateway  gateway.Gateway
	queue    Queue
	metrics  metrics.Recorder
	ttl      time.Duration

	nowFunc func() time.Time
	newID   func() string
}

func NewService(d Deps) *Service {
	rec := d.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Service{
		orders:   d.Orders,
		idem:     d.Idempotency,
		catalog:  d.Catalog,
		settings: d.Settings,
		gateway:  d.Gateway,
		queue:    d.Queue,
		metrics:  rec,
		ttl:      ttl,
		nowFunc:  time.Now,
		newID:    uuid.NewString,
	}
}

// PlaceOrder creates a cash-on-delivery order. The order, the emptied cart
// and the idempotency record are written in one transaction.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceRequest) (*Receipt, error) {
	return s.place(ctx, req, orders.PaymentCOD)
}

// PlaceOrderGateway registers a payment intent with the gateway and then
// stores the order. The cart is kept until the payment is verified. A gateway
// failure leaves no order behind.
func (s *Service) PlaceOrderGateway(ctx context.Context, req PlaceRequest) (*Receipt, error) {
	return s.place(ctx, req, orders.PaymentRazorpay)
}

func (s *Service) place(ctx context.Context, req PlaceRequest, method orders.PaymentMethod) (*Receipt, error) {
	log := logging.WithCtx(ctx).With("user_id", req.UserID, "payment_method", method)

	if err := checkRequest(req); err != nil {
		return nil, err
	}

	clientKey := req.IdempotencyKey != ""
	key := req.IdempotencyKey
	if !clientKey {
		key = s.newID()
	} else if receipt, err := s.lookup(ctx, key); receipt != nil || err != nil {
		return receipt, err
	}

	current := s.settings.Current()
	items, total, err := s.price(ctx, req, current.DeliveryFee)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc()
	order := orders.Order{
		OrderID:       s.newID(),
		UserID:        req.UserID,
		Items:         items,
		Address:       req.Address,
		Amount:        total,
		PaymentMethod: method,
		Payment:       false,
		Status:        orders.StatusPlaced,
		Date:          now.UnixMilli(),
		UpdatedAt:     now.UTC(),
	}
	receipt := &Receipt{OrderID: order.OrderID, PaymentMethod: method, Amount: total}

	if method == orders.PaymentRazorpay {
		gw, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderInput{
			Amount:   total.MinorUnits(),
			Currency: current.Currency,
			Receipt:  order.OrderID,
			Notes:    map[string]string{"user_id": req.UserID},
		})
		if err != nil {
			log.Error("gateway order failed", "order_id", order.OrderID, "error", err)
			s.markFailed(ctx, clientKey, key, err)
			return nil, fmt.Errorf("create gateway order: %w", err)
		}
		order.GatewayOrderID = gw.ID
		receipt.GatewayOrder = gw
	}

	rec := idempotency.NewRecord(key, order.OrderID, now.UTC(), s.ttl)
	err = s.orders.Create(ctx, order, orders.CreateOptions{
		Idempotency: &rec,
		ClearCart:   method == orders.PaymentCOD,
	})
	if errors.Is(err, orders.ErrDuplicateRequest) {
		// A concurrent request with the same key committed first.
		if replay, lerr := s.lookup(ctx, key); replay != nil || lerr != nil {
			return replay, lerr
		}
		return nil, ErrRequestInProgress
	}
	if err != nil {
		log.Error("persist order failed", "order_id", order.OrderID, "error", err)
		s.markFailed(ctx, clientKey, key, err)
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.complete(ctx, key, receipt)
	log.Info("order placed", "order_id", order.OrderID, "amount", total.String())
	s.metrics.OrderPlaced(ctx, string(method))

	if method == orders.PaymentRazorpay && s.queue != nil {
		msg := ReconcileMessage{
			OrderID:        order.OrderID,
			GatewayOrderID: order.GatewayOrderID,
			UserID:         order.UserID,
			CorrelationID:  logging.RequestIDFrom(ctx),
		}
		if err := s.queue.EnqueueReconcile(ctx, msg); err != nil {
			log.Warn("enqueue reconcile failed", "order_id", order.OrderID, "error", err)
		}
	}
	return receipt, nil
}

// lookup resolves an idempotency key that may have been used before. It
// returns (nil, nil) when the key is new.
func (s *Service) lookup(ctx context.Context, key string) (*Receipt, error) {
	rec, err := s.idem.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read idempotency record: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	switch rec.Status {
	case idempotency.StatusDone:
		var r Receipt
		if err := json.Unmarshal([]byte(rec.ResponseBody), &r); err != nil {
			return nil, fmt.Errorf("decode stored receipt: %w", err)
		}
		r.Replayed = true
		logging.WithCtx(ctx).Info("replaying stored receipt", "idempotency_key", key, "order_id", r.OrderID)
		return &r, nil
	case idempotency.StatusFailed:
		return nil, ErrPreviousAttemptFailed
	default:
		return s.recoverInProgress(ctx, rec)
	}
}

// recoverInProgress finishes a record left IN_PROGRESS by a request that
// committed its order but died before marking the key done.
func (s *Service) recoverInProgress(ctx context.Context, rec *idempotency.Record) (*Receipt, error) {
	if rec.OrderID == "" {
		return nil, ErrRequestInProgress
	}
	o, err := s.orders.Get(ctx, rec.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, ErrRequestInProgress
	}
	receipt := &Receipt{OrderID: o.OrderID, PaymentMethod: o.PaymentMethod, Amount: o.Amount}
	if o.GatewayOrderID != "" {
		gw, err := s.gateway.FetchOrder(ctx, o.GatewayOrderID)
		if err != nil {
			return nil, fmt.Errorf("fetch gateway order: %w", err)
		}
		receipt.GatewayOrder = gw
	}
	s.complete(ctx, rec.Key, receipt)
	receipt.Replayed = true
	return receipt, nil
}

// complete stores the receipt on the idempotency record. Failure only costs
// a slower replay, so it is logged rather than returned.
func (s *Service) complete(ctx context.Context, key string, receipt *Receipt) {
	body, err := json.Marshal(receipt)
	if err == nil {
		err = s.idem.MarkDone(ctx, key, string(body), http.StatusOK)
	}
	if err != nil {
		logging.WithCtx(ctx).Warn("mark idempotency done failed", "idempotency_key", key, "error", err)
	}
}

func (s *Service) markFailed(ctx context.Context, clientKey bool, key string, cause error) {
	if !clientKey {
		return
	}
	if err := s.idem.MarkFailed(ctx, key, cause.Error(), s.nowFunc().Add(s.ttl)); err != nil {
		logging.WithCtx(ctx).Warn("mark idempotency failed failed", "idempotency_key", key, "error", err)
	}
}

// price snapshots catalog prices into line items and returns the
// authoritative total including the delivery fee.
func (s *Service) price(ctx context.Context, req PlaceRequest, deliveryFee money.Money) ([]orders.LineItem, money.Money, error) {
	products, err := s.catalog.List(ctx)
	if err != nil {
		return nil, money.Zero, fmt.Errorf("load catalog: %w", err)
	}
	byName := catalog.ByName(products)

	items := make([]orders.LineItem, 0, len(req.Items))
	total := money.Zero
	for _, it := range req.Items {
		p, ok := byName[it.Name]
		if !ok {
			return nil, money.Zero, fmt.Errorf("%w: unknown product %q", ErrInvalidOrder, it.Name)
		}
		if !p.HasSize(it.Size) {
			return nil, money.Zero, fmt.Errorf("%w: product %q has no size %q", ErrInvalidOrder, it.Name, it.Size)
		}
		li := orders.LineItem{Name: p.Name, Size: it.Size, Quantity: it.Quantity, Price: p.Price}
		items = append(items, li)
		total = total.Add(li.Subtotal())
	}
	total = total.Add(deliveryFee)

	if !req.Amount.Equal(total) {
		return nil, money.Zero, fmt.Errorf("%w: submitted %s, expected %s", ErrAmountMismatch, req.Amount, total)
	}
	return items, total, nil
}

// checkRequest repeats the boundary checks so the service is safe to call
// from places other than the HTTP layer.
func checkRequest(req PlaceRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidOrder)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}
	type lineKey struct{ name, size string }
	seen := make(map[lineKey]bool, len(req.Items))
	for _, it := range req.Items {
		if it.Name == "" || it.Quantity < 1 {
			return fmt.Errorf("%w: item needs a name and a quantity of at least 1", ErrInvalidOrder)
		}
		k := lineKey{it.Name, it.Size}
		if seen[k] {
			return fmt.Errorf("%w: duplicate item %s/%s", ErrInvalidOrder, it.Name, it.Size)
		}
		seen[k] = true
	}
	a := req.Address
	if a.FirstName == "" || a.Street == "" || a.City == "" || a.State == "" || a.Zipcode == "" || a.Country == "" || a.Phone == "" {
		return fmt.Errorf("%w: incomplete address", ErrInvalidOrder)
	}
	return nil
}
