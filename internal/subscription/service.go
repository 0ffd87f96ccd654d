// Package subscription holds the user's subscription tier and the limits it
// implies. Billing is handled elsewhere; this package only stores the tier.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"supernomad/internal/storage"
	dErrors "supernomad/pkg/domain-errors"
	"supernomad/pkg/requestcontext"
)

type Service struct {
	store  storage.Store
	logger *slog.Logger

	mu      sync.RWMutex
	current Subscription
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store storage.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("subscription store is required")
	}
	svc := &Service{
		store:   store,
		logger:  slog.Default(),
		current: Subscription{Tier: TierFree},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Load reads the persisted subscription. Missing, unreadable or unknown
// tiers fall back to free.
func (s *Service) Load(ctx context.Context) {
	var sub Subscription
	found, err := storage.LoadJSON(ctx, s.store, storage.KeySubscription, &sub)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load subscription, using free tier", "error", err)
		return
	}
	if !found {
		return
	}
	if !sub.Tier.IsValid() {
		s.logger.WarnContext(ctx, "unknown subscription tier, using free tier", "tier", sub.Tier)
		return
	}
	s.mu.Lock()
	s.current = sub
	s.mu.Unlock()
}

func (s *Service) Current(ctx context.Context) Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetTier changes the tier and persists it. Lowering the tier never removes
// tracked countries; it only blocks adding more.
func (s *Service) SetTier(ctx context.Context, tier Tier) (Subscription, error) {
	if !tier.IsValid() {
		return Subscription{}, dErrors.New(dErrors.CodeValidation, "tier must be one of free, premium, lifetime")
	}
	sub := Subscription{Tier: tier, UpdatedAt: requestcontext.Now(ctx)}
	if err := storage.SaveJSON(ctx, s.store, storage.KeySubscription, sub); err != nil {
		return Subscription{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save subscription")
	}

	s.mu.Lock()
	prev := s.current.Tier
	s.current = sub
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "subscription tier changed", "from", prev, "to", tier)
	return sub, nil
}

// MaxCountries implements the registry tier gate.
func (s *Service) MaxCountries(ctx context.Context) (int, error) {
	return s.Current(ctx).Tier.MaxCountries(), nil
}
