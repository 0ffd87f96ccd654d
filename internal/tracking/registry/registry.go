// Package registry owns the set of tracked countries. Every mutation is
// persisted as one JSON document; reads return copies so callers never share
// state with the registry.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"supernomad/internal/storage"
	"supernomad/internal/tracking/metrics"
	"supernomad/internal/tracking/models"
	id "supernomad/pkg/domain"
	dErrors "supernomad/pkg/domain-errors"
	"supernomad/pkg/requestcontext"
)

// TierGate reports how many tracked countries the current subscription
// allows. A negative value means unlimited.
type TierGate interface {
	MaxCountries(ctx context.Context) (int, error)
}

// NewCountry is the input to Add.
type NewCountry struct {
	Code            string
	Name            string
	TrackingType    models.TrackingType
	DayLimit        int
	CountTravelDays bool
}

type Registry struct {
	store   storage.Store
	tiers   TierGate
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	countries []*models.TrackedCountry
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithTierGate caps Add by the subscription tier. Without a gate the
// registry is unlimited.
func WithTierGate(tiers TierGate) Option {
	return func(r *Registry) {
		r.tiers = tiers
	}
}

func New(store storage.Store, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("registry store is required")
	}
	r := &Registry{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Load reads the persisted registry. A missing or unreadable document leaves
// the registry empty; the failure is logged, never returned.
func (r *Registry) Load(ctx context.Context) {
	var countries []*models.TrackedCountry
	if _, err := storage.LoadJSON(ctx, r.store, storage.KeyTravelCountries, &countries); err != nil {
		r.logger.WarnContext(ctx, "failed to load tracked countries, starting empty", "error", err)
		countries = nil
	}
	countries = slices.DeleteFunc(countries, func(c *models.TrackedCountry) bool { return c == nil })

	r.mu.Lock()
	r.countries = countries
	n := len(r.countries)
	r.mu.Unlock()

	r.metrics.SetTrackedCountries(n)
	r.logger.InfoContext(ctx, "tracked countries loaded", "count", n)
}

// Add validates and appends a new record with zeroed counters.
func (r *Registry) Add(ctx context.Context, in NewCountry) (*models.TrackedCountry, error) {
	code, err := id.ParseCountryCode(in.Code)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid country code")
	}
	country, err := models.NewTrackedCountry(code, in.Name, in.TrackingType, in.DayLimit, in.CountTravelDays, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	limit := -1
	if r.tiers != nil {
		limit, err = r.tiers.MaxCountries(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve subscription tier")
		}
	}

	r.mu.Lock()
	if limit >= 0 && len(r.countries) >= limit {
		r.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeTierLimit,
			fmt.Sprintf("your plan allows %d tracked countries, upgrade to track more", limit))
	}
	for _, c := range r.countries {
		if c.Code == country.Code && c.TrackingType == country.TrackingType {
			r.mu.Unlock()
			return nil, dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("%s is already tracked as %s", country.Code, country.TrackingType))
		}
	}
	r.countries = append(r.countries, country)
	r.mu.Unlock()

	r.persist(ctx)
	r.logger.InfoContext(ctx, "country tracked",
		"country_id", country.ID,
		"code", country.Code,
		"tracking_type", country.TrackingType,
		"day_limit", country.DayLimit,
	)
	return country.Clone(), nil
}

// Remove deletes the record with the given id.
func (r *Registry) Remove(ctx context.Context, countryID id.CountryID) error {
	r.mu.Lock()
	idx := r.indexOf(countryID)
	if idx < 0 {
		r.mu.Unlock()
		return notFound(countryID)
	}
	r.countries = slices.Delete(r.countries, idx, idx+1)
	r.mu.Unlock()

	r.persist(ctx)
	r.logger.InfoContext(ctx, "country untracked", "country_id", countryID)
	return nil
}

// UpdateLimit sets a new day limit. Counters are kept.
func (r *Registry) UpdateLimit(ctx context.Context, countryID id.CountryID, dayLimit int) (*models.TrackedCountry, error) {
	if dayLimit <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "day limit must be a positive number of days")
	}
	return r.mutate(ctx, countryID, "day limit updated", func(c *models.TrackedCountry) {
		c.DayLimit = dayLimit
	})
}

// Reset zeroes every counter and marker of the record.
func (r *Registry) Reset(ctx context.Context, countryID id.CountryID) (*models.TrackedCountry, error) {
	return r.mutate(ctx, countryID, "country counters reset", func(c *models.TrackedCountry) {
		c.ResetCounters()
	})
}

// ToggleCounting flips whether days are counted for the record.
func (r *Registry) ToggleCounting(ctx context.Context, countryID id.CountryID) (*models.TrackedCountry, error) {
	return r.mutate(ctx, countryID, "day counting toggled", func(c *models.TrackedCountry) {
		c.CountTravelDays = !c.CountTravelDays
	})
}

// Update writes back records previously read through ByCode or Get. Records
// removed in the meantime are skipped.
func (r *Registry) Update(ctx context.Context, countries ...*models.TrackedCountry) {
	if len(countries) == 0 {
		return
	}
	r.mu.Lock()
	for _, c := range countries {
		if idx := r.indexOf(c.ID); idx >= 0 {
			r.countries[idx] = c.Clone()
		}
	}
	r.mu.Unlock()
	r.persist(ctx)
}

// List returns copies of all records in insertion order.
func (r *Registry) List() []*models.TrackedCountry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.TrackedCountry, 0, len(r.countries))
	for _, c := range r.countries {
		out = append(out, c.Clone())
	}
	return out
}

func (r *Registry) Get(countryID id.CountryID) (*models.TrackedCountry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexOf(countryID)
	if idx < 0 {
		return nil, notFound(countryID)
	}
	return r.countries[idx].Clone(), nil
}

// ByCode returns copies of every record tracking code, one per tracking type.
func (r *Registry) ByCode(code id.CountryCode) []*models.TrackedCountry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.TrackedCountry
	for _, c := range r.countries {
		if c.Code == code {
			out = append(out, c.Clone())
		}
	}
	return out
}

func (r *Registry) mutate(ctx context.Context, countryID id.CountryID, msg string, fn func(*models.TrackedCountry)) (*models.TrackedCountry, error) {
	r.mu.Lock()
	idx := r.indexOf(countryID)
	if idx < 0 {
		r.mu.Unlock()
		return nil, notFound(countryID)
	}
	fn(r.countries[idx])
	out := r.countries[idx].Clone()
	r.mu.Unlock()

	r.persist(ctx)
	r.logger.InfoContext(ctx, msg, "country_id", countryID, "code", out.Code)
	return out, nil
}

// persist saves a snapshot of the registry. The write outlives the caller's
// context so an applied mutation is never left unsaved. Save failures are
// logged and counted; in-memory state stays authoritative.
func (r *Registry) persist(ctx context.Context) {
	r.mu.RLock()
	snapshot := make([]*models.TrackedCountry, 0, len(r.countries))
	for _, c := range r.countries {
		snapshot = append(snapshot, c.Clone())
	}
	r.mu.RUnlock()

	r.metrics.SetTrackedCountries(len(snapshot))
	if err := storage.SaveJSON(context.WithoutCancel(ctx), r.store, storage.KeyTravelCountries, snapshot); err != nil {
		r.metrics.IncrementPersistFailure(storage.KeyTravelCountries)
		r.logger.ErrorContext(ctx, "failed to persist tracked countries", "error", err)
	}
}

func (r *Registry) indexOf(countryID id.CountryID) int {
	return slices.IndexFunc(r.countries, func(c *models.TrackedCountry) bool { return c.ID == countryID })
}

func notFound(countryID id.CountryID) error {
	return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("tracked country %s not found", countryID))
}
