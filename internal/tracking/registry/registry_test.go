package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"supernomad/internal/platform/logger"
	"supernomad/internal/storage"
	"supernomad/internal/storage/memory"
	"supernomad/internal/tracking/metrics"
	"supernomad/internal/tracking/models"
	id "supernomad/pkg/domain"
	dErrors "supernomad/pkg/domain-errors"
	"supernomad/pkg/requestcontext"
)

// =============================================================================
// Registry Test Suite
// =============================================================================
// Justification for unit tests: tier gating, uniqueness and persistence after
// every mutation are registry invariants that the HTTP layer cannot observe
// directly.

type fixedTier int

func (f fixedTier) MaxCountries(context.Context) (int, error) { return int(f), nil }

type failingTier struct{}

func (failingTier) MaxCountries(context.Context) (int, error) {
	return 0, errors.New("subscription store down")
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk unreadable")
}

func (failingStore) Save(context.Context, string, []byte) error {
	return errors.New("disk full")
}

// cancelAwareStore fails writes on a cancelled context, as the SQL and Redis
// drivers do.
type cancelAwareStore struct {
	*memory.InMemoryStore
}

func (c cancelAwareStore) Save(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.InMemoryStore.Save(ctx, key, value)
}

type RegistrySuite struct {
	suite.Suite
	ctx      context.Context
	store    *memory.InMemoryStore
	metrics  *metrics.Metrics
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s.store = memory.New()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.registry = s.newRegistry(s.store, WithTierGate(fixedTier(3)))
}

func (s *RegistrySuite) newRegistry(store storage.Store, opts ...Option) *Registry {
	opts = append(opts, WithLogger(logger.Discard()), WithMetrics(s.metrics))
	r, err := New(store, opts...)
	s.Require().NoError(err)
	return r
}

func (s *RegistrySuite) add(code, name string, trackingType models.TrackingType, limit int) *models.TrackedCountry {
	c, err := s.registry.Add(s.ctx, NewCountry{Code: code, Name: name, TrackingType: trackingType, DayLimit: limit, CountTravelDays: true})
	s.Require().NoError(err)
	return c
}

func (s *RegistrySuite) persisted() []*models.TrackedCountry {
	var out []*models.TrackedCountry
	found, err := storage.LoadJSON(s.ctx, s.store, storage.KeyTravelCountries, &out)
	s.Require().NoError(err)
	s.Require().True(found)
	return out
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *RegistrySuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
	s.Contains(err.Error(), "registry store is required")
}

// =============================================================================
// Add Tests
// =============================================================================

func (s *RegistrySuite) TestAdd() {
	s.Run("normalizes code and persists", func() {
		c := s.add(" th ", "Thailand", models.TrackingTouristVisa, 180)
		s.Equal(id.CountryCode("TH"), c.Code)
		s.Equal(0, c.DaysSpent)
		s.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), c.CreatedAt)

		persisted := s.persisted()
		s.Require().Len(persisted, 1)
		s.Equal(c.ID, persisted[0].ID)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.TrackedCountries))
	})

	s.Run("same code under another tracking type is allowed", func() {
		s.add("TH", "Thailand", models.TrackingTaxResidency, 0)
		s.Len(s.registry.ByCode("TH"), 2)
	})

	s.Run("duplicate code and tracking type conflicts", func() {
		_, err := s.registry.Add(s.ctx, NewCountry{Code: "TH", Name: "Thailand", TrackingType: models.TrackingTouristVisa, DayLimit: 30})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("free tier caps the registry at three", func() {
		s.add("PT", "Portugal", models.TrackingTaxResidency, 0)
		_, err := s.registry.Add(s.ctx, NewCountry{Code: "ES", Name: "Spain", TrackingType: models.TrackingSchengen})
		s.True(dErrors.HasCode(err, dErrors.CodeTierLimit))
		s.Len(s.registry.List(), 3)
	})
}

func (s *RegistrySuite) TestAddValidation() {
	tests := []struct {
		name string
		in   NewCountry
	}{
		{"bad code", NewCountry{Code: "THA", Name: "Thailand", DayLimit: 30}},
		{"missing code", NewCountry{Name: "Thailand", DayLimit: 30}},
		{"missing name", NewCountry{Code: "TH", DayLimit: 30}},
		{"non-positive limit", NewCountry{Code: "TH", Name: "Thailand", DayLimit: -1}},
		{"custom without limit", NewCountry{Code: "TH", Name: "Thailand"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.registry.Add(s.ctx, tt.in)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
	s.Empty(s.registry.List())
}

func (s *RegistrySuite) TestAddUnlimitedAndGateFailure() {
	s.Run("negative max means unlimited", func() {
		r := s.newRegistry(memory.New(), WithTierGate(fixedTier(-1)))
		for _, code := range []string{"TH", "PT", "ES", "MX", "VN"} {
			_, err := r.Add(s.ctx, NewCountry{Code: code, Name: code, TrackingType: models.TrackingTouristVisa})
			s.Require().NoError(err)
		}
		s.Len(r.List(), 5)
	})

	s.Run("tier lookup failure is internal", func() {
		r := s.newRegistry(memory.New(), WithTierGate(failingTier{}))
		_, err := r.Add(s.ctx, NewCountry{Code: "TH", Name: "Thailand", TrackingType: models.TrackingTouristVisa})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

// =============================================================================
// Mutation Tests
// =============================================================================

func (s *RegistrySuite) TestRemove() {
	c := s.add("TH", "Thailand", models.TrackingTouristVisa, 180)
	s.Require().NoError(s.registry.Remove(s.ctx, c.ID))
	s.Empty(s.registry.List())
	s.Empty(s.persisted())

	err := s.registry.Remove(s.ctx, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistrySuite) TestUpdateLimit() {
	c := s.add("TH", "Thailand", models.TrackingTouristVisa, 180)

	s.Run("rejects non-positive limits", func() {
		_, err := s.registry.UpdateLimit(s.ctx, c.ID, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("keeps counters", func() {
		c.DaysSpent = 12
		s.registry.Update(s.ctx, c)

		updated, err := s.registry.UpdateLimit(s.ctx, c.ID, 60)
		s.Require().NoError(err)
		s.Equal(60, updated.DayLimit)
		s.Equal(12, updated.DaysSpent)
		s.Equal(60, s.persisted()[0].DayLimit)
	})

	s.Run("unknown id", func() {
		_, err := s.registry.UpdateLimit(s.ctx, id.NewCountryID(), 10)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegistrySuite) TestReset() {
	c := s.add("TH", "Thailand", models.TrackingTouristVisa, 180)
	c.Accrue("2026-03-01")
	c.RecordEntry(time.Now())
	s.registry.Update(s.ctx, c)

	reset, err := s.registry.Reset(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(0, reset.DaysSpent)
	s.Equal(0, reset.YearlyDaysSpent)
	s.Equal(0, reset.TotalEntries)
	s.Nil(reset.LastEntry)
	s.True(reset.LastUpdate.IsZero())
	s.Equal(180, reset.DayLimit)
}

func (s *RegistrySuite) TestToggleCounting() {
	c := s.add("TH", "Thailand", models.TrackingTouristVisa, 180)
	toggled, err := s.registry.ToggleCounting(s.ctx, c.ID)
	s.Require().NoError(err)
	s.False(toggled.CountTravelDays)

	toggled, err = s.registry.ToggleCounting(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(toggled.CountTravelDays)
}

func (s *RegistrySuite) TestUpdateSkipsRemovedRecords() {
	c := s.add("TH", "Thailand", models.TrackingTouristVisa, 180)
	s.Require().NoError(s.registry.Remove(s.ctx, c.ID))
	c.DaysSpent = 5
	s.registry.Update(s.ctx, c)
	s.Empty(s.registry.List())
}

// =============================================================================
// Read Tests
// =============================================================================

func (s *RegistrySuite) TestReadsReturnCopies() {
	c := s.add("TH", "Thailand", models.TrackingTouristVisa, 180)

	got, err := s.registry.Get(c.ID)
	s.Require().NoError(err)
	got.DaysSpent = 99
	s.registry.ByCode("TH")[0].DaysSpent = 42
	s.registry.List()[0].DaysSpent = 7

	again, err := s.registry.Get(c.ID)
	s.Require().NoError(err)
	s.Equal(0, again.DaysSpent)
	s.Empty(s.registry.ByCode("VN"))
}

// =============================================================================
// Load & Persistence Failure Tests
// =============================================================================

func (s *RegistrySuite) TestLoad() {
	s.Run("restores persisted records", func() {
		c := s.add("TH", "Thailand", models.TrackingTouristVisa, 180)
		reloaded := s.newRegistry(s.store)
		reloaded.Load(s.ctx)
		got, err := reloaded.Get(c.ID)
		s.Require().NoError(err)
		s.Equal("Thailand", got.Name)
	})

	s.Run("corrupt document starts empty", func() {
		store := memory.New()
		s.Require().NoError(store.Save(s.ctx, storage.KeyTravelCountries, []byte("{not json")))
		r := s.newRegistry(store)
		r.Load(s.ctx)
		s.Empty(r.List())
	})

	s.Run("unreadable store starts empty", func() {
		r := s.newRegistry(failingStore{})
		r.Load(s.ctx)
		s.Empty(r.List())
	})
}

func (s *RegistrySuite) TestSaveFailureKeepsMemoryState() {
	r := s.newRegistry(failingStore{})
	c, err := r.Add(s.ctx, NewCountry{Code: "TH", Name: "Thailand", TrackingType: models.TrackingTouristVisa})
	s.Require().NoError(err)
	_, err = r.Get(c.ID)
	s.NoError(err)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PersistFailures.WithLabelValues(storage.KeyTravelCountries)))
}

func (s *RegistrySuite) TestMutationIsSavedAfterCallerCancels() {
	r := s.newRegistry(cancelAwareStore{s.store})
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	c, err := r.Add(ctx, NewCountry{Code: "TH", Name: "Thailand", TrackingType: models.TrackingTouristVisa})
	s.Require().NoError(err)

	stored := s.persisted()
	s.Require().Len(stored, 1)
	s.Equal(c.ID, stored[0].ID)
	s.Zero(testutil.ToFloat64(s.metrics.PersistFailures.WithLabelValues(storage.KeyTravelCountries)))

	reloaded := s.newRegistry(s.store)
	reloaded.Load(s.ctx)
	s.Len(reloaded.List(), 1)
}
