package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/logging"
)

// Store persists the single settings document.
type Store interface {
	// Get returns (nil, nil) when nothing has been saved yet.
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Service holds the current settings in memory.
type Service struct {
	store    Store
	defaults Settings

	mu      sync.RWMutex
	current Settings
	loc     *time.Location

	nowFunc func() time.Time
}

// NewService returns a service serving defaults until Load is called.
func NewService(store Store, defaults Settings) *Service {
	return &Service{
		store:    store,
		defaults: defaults,
		current:  defaults,
		loc:      defaults.Location(),
		nowFunc:  time.Now,
	}
}

// Load reads the persisted settings, or keeps the defaults when none exist.
// Invalid persisted settings are an error: the process should not start with
// them.
func (s *Service) Load(ctx context.Context) error {
	stored, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	next := s.defaults
	if stored != nil {
		next = *stored
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.swap(next)
	logging.WithCtx(ctx).Info("settings loaded", "persisted", stored != nil, "currency", next.Currency, "timezone", next.Timezone)
	return nil
}

func (s *Service) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Location is the store timezone used for calendar bucketing.
func (s *Service) Location() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loc
}

// Update validates the merged settings, persists them, then makes them
// current. Nothing changes when validation or the write fails.
func (s *Service) Update(ctx context.Context, p Patch) (Settings, error) {
	next := p.Apply(s.Current())
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	next.UpdatedAt = s.nowFunc().UTC()
	if err := s.store.Save(ctx, next); err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.swap(next)
	logging.WithCtx(ctx).Info("settings updated", "store_name", next.StoreName, "currency", next.Currency)
	return next, nil
}

func (s *Service) swap(next Settings) {
	loc := next.Location()
	s.mu.Lock()
	s.current = next
	s.loc = loc
	s.mu.Unlock()
}
