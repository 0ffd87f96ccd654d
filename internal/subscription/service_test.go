package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"supernomad/internal/platform/logger"
	"supernomad/internal/storage"
	"supernomad/internal/storage/memory"
	dErrors "supernomad/pkg/domain-errors"
	"supernomad/pkg/requestcontext"
)

// =============================================================================
// Subscription Service Test Suite
// =============================================================================
// Justification for unit tests: the tier is the only gate on registry size
// and must survive restarts and bad persisted data.

type brokenStore struct{}

func (brokenStore) Load(context.Context, string) ([]byte, error) { return nil, errors.New("io") }
func (brokenStore) Save(context.Context, string, []byte) error   { return errors.New("io") }

type SubscriptionSuite struct {
	suite.Suite
	ctx   context.Context
	store *memory.InMemoryStore
	svc   *Service
}

func TestSubscriptionSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionSuite))
}

func (s *SubscriptionSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	s.store = memory.New()
	var err error
	s.svc, err = New(s.store, WithLogger(logger.Discard()))
	s.Require().NoError(err)
}

func (s *SubscriptionSuite) TestDefaultsToFree() {
	s.svc.Load(s.ctx)
	s.Equal(TierFree, s.svc.Current(s.ctx).Tier)
	limit, err := s.svc.MaxCountries(s.ctx)
	s.Require().NoError(err)
	s.Equal(FreeMaxCountries, limit)
}

func (s *SubscriptionSuite) TestSetTierPersists() {
	sub, err := s.svc.SetTier(s.ctx, TierPremium)
	s.Require().NoError(err)
	s.Equal(TierPremium, sub.Tier)

	reloaded, err := New(s.store, WithLogger(logger.Discard()))
	s.Require().NoError(err)
	reloaded.Load(s.ctx)
	s.Equal(TierPremium, reloaded.Current(s.ctx).Tier)

	limit, err := reloaded.MaxCountries(s.ctx)
	s.Require().NoError(err)
	s.Equal(Unlimited, limit)
}

func (s *SubscriptionSuite) TestSetTierRejectsUnknown() {
	_, err := s.svc.SetTier(s.ctx, Tier("gold"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *SubscriptionSuite) TestSaveFailureKeepsTier() {
	svc, err := New(brokenStore{}, WithLogger(logger.Discard()))
	s.Require().NoError(err)
	_, err = svc.SetTier(s.ctx, TierLifetime)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(TierFree, svc.Current(s.ctx).Tier)
}

func (s *SubscriptionSuite) TestLoadFallsBackToFree() {
	s.Run("unknown tier", func() {
		s.Require().NoError(storage.SaveJSON(s.ctx, s.store, storage.KeySubscription, Subscription{Tier: "gold"}))
		s.svc.Load(s.ctx)
		s.Equal(TierFree, s.svc.Current(s.ctx).Tier)
	})
	s.Run("unreadable store", func() {
		svc, err := New(brokenStore{}, WithLogger(logger.Discard()))
		s.Require().NoError(err)
		svc.Load(s.ctx)
		s.Equal(TierFree, svc.Current(s.ctx).Tier)
	})
}

func (s *SubscriptionSuite) TestParseTier() {
	tier, err := ParseTier(" Lifetime ")
	s.Require().NoError(err)
	s.Equal(TierLifetime, tier)

	_, err = ParseTier("enterprise")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
