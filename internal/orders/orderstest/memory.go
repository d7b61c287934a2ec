// Package orderstest provides an in-memory order store for tests.
package orderstest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
)

// Memory implements orders.Repository with the same conditional semantics as
// the DynamoDB store. Idempotency returns its idempotency.Store view.
type Memory struct {
	mu      sync.Mutex
	orders  map[string]orders.Order
	records map[string]idempotency.Record
	// ClearedCarts counts cart resets per user.
	ClearedCarts map[string]int

	// CreateErr, when set, is returned by Create without writing anything.
	CreateErr error
	// BeforeUpdate runs before UpdateStatus evaluates its condition. Tests use
	// it to slip in a competing write.
	BeforeUpdate func(m *Memory, orderID string)

	Now func() time.Time
}

var _ orders.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		orders:       map[string]orders.Order{},
		records:      map[string]idempotency.Record{},
		ClearedCarts: map[string]int{},
		Now:          time.Now,
	}
}

// Put stores o unconditionally.
func (m *Memory) Put(o orders.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.OrderID] = o
}

// PutRecord stores rec unconditionally.
func (m *Memory) PutRecord(rec idempotency.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = rec
}

// Record returns the stored record for key regardless of expiry.
func (m *Memory) Record(key string) (idempotency.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	return rec, ok
}

// Len returns the number of stored orders.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *Memory) Create(_ context.Context, o orders.Order, opts orders.CreateOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if opts.Idempotency != nil {
		if rec, ok := m.records[opts.Idempotency.Key]; ok && !rec.Expired(m.Now()) {
			return fmt.Errorf("%w: %s", orders.ErrDuplicateRequest, opts.Idempotency.Key)
		}
	}
	if _, ok := m.orders[o.OrderID]; ok {
		return fmt.Errorf("order %s already exists", o.OrderID)
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = m.Now()
	}
	o.Items = append([]orders.LineItem(nil), o.Items...)
	m.orders[o.OrderID] = o
	if opts.Idempotency != nil {
		m.records[opts.Idempotency.Key] = *opts.Idempotency
	}
	if opts.ClearCart {
		m.ClearedCarts[o.UserID]++
	}
	return nil
}

func (m *Memory) Get(_ context.Context, orderID string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *Memory) List(_ context.Context) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]orders.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sortOrders(out)
	return out, nil
}

func (m *Memory) ListByUser(_ context.Context, userID string) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []orders.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

func (m *Memory) UpdateStatus(_ context.Context, orderID string, expected, next orders.Status, markPaid bool) error {
	if m.BeforeUpdate != nil {
		m.BeforeUpdate(m, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != expected {
		return orders.ErrStatusMismatch
	}
	o.Status = next
	if markPaid {
		o.Payment = true
	}
	o.UpdatedAt = m.Now()
	m.orders[orderID] = o
	return nil
}

func (m *Memory) MarkPaid(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Payment {
		return orders.ErrAlreadyPaid
	}
	o.Payment = true
	o.UpdatedAt = m.Now()
	m.orders[orderID] = o
	return nil
}

func (m *Memory) ClearCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearedCarts[userID]++
	return nil
}

// GetRecord returns the live record for key, or nil when absent or expired.
func (m *Memory) GetRecord(_ context.Context, key string) (*idempotency.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || rec.Expired(m.Now()) {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) MarkDone(_ context.Context, key, responseBody string, responseStatus int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		rec = idempotency.Record{Key: key, CreatedAt: m.Now()}
	}
	rec.Status = idempotency.StatusDone
	rec.ResponseBody = responseBody
	rec.ResponseStatus = responseStatus
	rec.UpdatedAt = m.Now()
	m.records[key] = rec
	return nil
}

func (m *Memory) MarkFailed(_ context.Context, key, note string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		rec = idempotency.Record{Key: key, CreatedAt: m.Now()}
	}
	rec.Status = idempotency.StatusFailed
	rec.Note = note
	rec.UpdatedAt = m.Now()
	rec.ExpiresAt = expiresAt.Unix()
	m.records[key] = rec
	return nil
}

// Idempotency returns a view of m satisfying idempotency.Store.
func (m *Memory) Idempotency() idempotency.Store {
	return idempotencyView{m}
}

type idempotencyView struct{ m *Memory }

func (v idempotencyView) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	return v.m.GetRecord(ctx, key)
}

func (v idempotencyView) MarkDone(ctx context.Context, key, body string, status int) error {
	return v.m.MarkDone(ctx, key, body, status)
}

func (v idempotencyView) MarkFailed(ctx context.Context, key, note string, expiresAt time.Time) error {
	return v.m.MarkFailed(ctx, key, note, expiresAt)
}

func sortOrders(list []orders.Order) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date < list[j].Date
		}
		return list[i].OrderID < list[j].OrderID
	})
}
