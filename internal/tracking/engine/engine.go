// Package engine turns a stream of location samples into country-day
// counters and threshold events.
//
// The engine is not safe for concurrent mutation: OnLocationUpdate and
// ConfirmAmbiguousLocation must be called from a single serialized loop.
// Read accessors may be called from any goroutine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"supernomad/internal/storage"
	"supernomad/internal/tracking/metrics"
	"supernomad/internal/tracking/models"
	id "supernomad/pkg/domain"
	dErrors "supernomad/pkg/domain-errors"
	"supernomad/pkg/requestcontext"
)

const (
	DefaultVPNSuspectThreshold = time.Hour
	DefaultMaxPending          = 20
)

// Registry is the subset of the country registry the engine mutates.
type Registry interface {
	ByCode(code id.CountryCode) []*models.TrackedCountry
	Update(ctx context.Context, countries ...*models.TrackedCountry)
}

// Dispatcher delivers rendered notifications to the user.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) error
}

// Result describes what one sample did.
type Result struct {
	Events []models.ThresholdEvent
	// Dropped is set for malformed samples.
	Dropped bool
	// Pending is set when the sample was parked for confirmation.
	Pending bool
}

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks
type Engine struct {
	registry   Registry
	store      storage.Store
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer

	location     *time.Location
	vpnThreshold time.Duration
	taxPolicy    TaxResidentPolicy
	maxPending   int

	mu       sync.RWMutex
	previous *models.LocationSample
	pending  []models.LocationSample
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithDispatcher(d Dispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithLocation sets the time zone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

func WithVPNSuspectThreshold(d time.Duration) Option {
	return func(e *Engine) {
		e.vpnThreshold = d
	}
}

func WithTaxResidentPolicy(p TaxResidentPolicy) Option {
	return func(e *Engine) {
		e.taxPolicy = p
	}
}

// WithMaxPending bounds the number of samples awaiting confirmation. The
// oldest sample is discarded when the bound is hit.
func WithMaxPending(n int) Option {
	return func(e *Engine) {
		e.maxPending = n
	}
}

func New(registry Registry, store storage.Store, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("country registry is required")
	}
	if store == nil {
		return nil, fmt.Errorf("engine store is required")
	}
	e := &Engine{
		registry:     registry,
		store:        store,
		logger:       slog.Default(),
		tracer:       otel.Tracer("supernomad/tracking/engine"),
		location:     time.UTC,
		vpnThreshold: DefaultVPNSuspectThreshold,
		taxPolicy:    TaxResidentOnce,
		maxPending:   DefaultMaxPending,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.taxPolicy.IsValid() {
		return nil, fmt.Errorf("invalid tax resident policy %q", e.taxPolicy)
	}
	if e.maxPending <= 0 {
		return nil, fmt.Errorf("max pending must be positive")
	}
	return e, nil
}

// Load restores the previous sample. Missing or unreadable state starts the
// engine without one; the failure is logged.
func (e *Engine) Load(ctx context.Context) {
	var prev models.LocationSample
	found, err := storage.LoadJSON(ctx, e.store, storage.KeyPreviousLocation, &prev)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to load previous location, starting fresh", "error", err)
		return
	}
	if !found {
		return
	}
	if reason, bad := prev.Malformed(requestcontext.Now(ctx)); bad {
		e.logger.WarnContext(ctx, "ignoring stored previous location", "reason", reason, "captured_at", prev.CapturedAt)
		return
	}
	e.mu.Lock()
	e.previous = &prev
	e.mu.Unlock()
	e.logger.InfoContext(ctx, "previous location restored", "country", prev.CountryCode, "captured_at", prev.CapturedAt)
}

// OnLocationUpdate processes one sample: entry/exit detection, day accrual,
// threshold evaluation, persistence, then dispatch of the resulting events in
// order. Malformed samples are dropped and VPN-suspect samples are parked
// for confirmation; neither mutates the registry.
func (e *Engine) OnLocationUpdate(ctx context.Context, sample models.LocationSample) (*Result, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "tracking.OnLocationUpdate", trace.WithAttributes(
		attribute.String("country", sample.CountryCode.String()),
		attribute.String("confidence", string(sample.Confidence)),
	))
	defer span.End()

	if sample.ID.IsNil() {
		sample.ID = id.NewSampleID()
	}
	sample.CountryCode = id.NormalizeCountryCode(sample.CountryCode.String())
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = requestcontext.Now(ctx)
	}

	if reason, ok := sample.Malformed(requestcontext.Now(ctx)); ok {
		e.logger.WarnContext(ctx, "location sample dropped",
			"sample_id", sample.ID,
			"reason", reason,
			"captured_at", sample.CapturedAt,
		)
		span.SetAttributes(attribute.Bool("dropped", true))
		e.metrics.ObserveSample(metrics.OutcomeDropped, start)
		return &Result{Dropped: true}, nil
	}

	if sample.NeedsConfirmation(e.vpnThreshold) {
		ev := e.park(ctx, sample)
		span.SetAttributes(attribute.Bool("pending", true))
		e.dispatch(ctx, []models.ThresholdEvent{ev})
		e.metrics.ObserveSample(metrics.OutcomePending, start)
		return &Result{Events: []models.ThresholdEvent{ev}, Pending: true}, nil
	}

	events := e.process(ctx, sample)
	span.SetAttributes(attribute.Int("events", len(events)))
	e.metrics.ObserveSample(metrics.OutcomeProcessed, start)
	return &Result{Events: events}, nil
}

// ConfirmAmbiguousLocation resolves a parked sample. A confirmed sample is
// processed as a direct sample dated at its capture time; a rejected one is
// discarded with a VPN advisory.
func (e *Engine) ConfirmAmbiguousLocation(ctx context.Context, sampleID id.SampleID, isCorrect bool) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "tracking.ConfirmAmbiguousLocation", trace.WithAttributes(
		attribute.String("sample_id", sampleID.String()),
		attribute.Bool("confirmed", isCorrect),
	))
	defer span.End()

	sample, ok := e.takePending(sampleID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no pending location %s", sampleID))
	}

	if !isCorrect {
		e.logger.InfoContext(ctx, "ambiguous location rejected", "sample_id", sampleID, "country", sample.CountryCode)
		ev := models.ThresholdEvent{
			Kind:        models.EventVPNDisableAdvised,
			CountryCode: sample.CountryCode,
			CountryName: sample.CountryName,
			SampleID:    sample.ID,
			OccurredAt:  requestcontext.Now(ctx),
		}
		e.dispatch(ctx, []models.ThresholdEvent{ev})
		return &Result{Events: []models.ThresholdEvent{ev}}, nil
	}

	e.logger.InfoContext(ctx, "ambiguous location confirmed", "sample_id", sampleID, "country", sample.CountryCode)
	sample.Confidence = models.ConfidenceDirect
	sample.VPNActiveDuration = 0
	return &Result{Events: e.process(ctx, sample)}, nil
}

// PendingConfirmations lists parked samples, oldest first.
func (e *Engine) PendingConfirmations() []models.LocationSample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.pending)
}

// Previous returns the last processed sample, or nil before the first one.
func (e *Engine) Previous() *models.LocationSample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.previous == nil {
		return nil
	}
	prev := *e.previous
	return &prev
}

func (e *Engine) process(ctx context.Context, sample models.LocationSample) []models.ThresholdEvent {
	at := sample.CapturedAt
	today := models.DateOf(at, e.location)

	e.mu.RLock()
	prev := e.previous
	e.mu.RUnlock()

	// Samples older than the previous one only accrue; they cannot say
	// anything about transitions that already happened.
	stale := prev != nil && sample.CapturedAt.Before(prev.CapturedAt)

	var events []models.ThresholdEvent
	records := e.registry.ByCode(sample.CountryCode)
	touched := make(map[id.CountryID]*models.TrackedCountry, len(records))

	if prev != nil && !stale && prev.CountryCode != sample.CountryCode {
		for _, c := range e.registry.ByCode(prev.CountryCode) {
			events = append(events, models.CountryEvent(models.EventCountryExited, c, at))
		}
		if len(records) == 0 {
			events = append(events, models.ThresholdEvent{
				Kind:        models.EventUntrackedCountryEntered,
				CountryCode: sample.CountryCode,
				CountryName: sample.CountryName,
				OccurredAt:  at,
			})
		}
		for _, c := range records {
			c.RecordEntry(at)
			touched[c.ID] = c
			events = append(events, models.CountryEvent(models.EventCountryEntered, c, at))
		}
		e.logger.InfoContext(ctx, "country transition",
			"from", prev.CountryCode,
			"to", sample.CountryCode,
			"distance_km", int(prev.DistanceMeters(sample)/1000),
		)
	}

	for _, c := range records {
		if !c.Accrue(today) {
			continue
		}
		touched[c.ID] = c
		e.metrics.IncrementDaysAccrued()
		e.logger.InfoContext(ctx, "day counted",
			"country_id", c.ID,
			"code", c.Code,
			"tracking_type", c.TrackingType,
			"day", today,
			"days_spent", c.DaysSpent,
			"yearly_days_spent", c.YearlyDaysSpent,
		)
		events = append(events, Evaluate(c, today, e.taxPolicy, at)...)
	}

	if len(touched) > 0 {
		updated := make([]*models.TrackedCountry, 0, len(touched))
		for _, c := range records {
			if t, ok := touched[c.ID]; ok {
				updated = append(updated, t)
			}
		}
		e.registry.Update(ctx, updated...)
	}

	if !stale {
		e.setPrevious(ctx, sample)
	}
	e.dispatch(ctx, events)
	return events
}

func (e *Engine) setPrevious(ctx context.Context, sample models.LocationSample) {
	e.mu.Lock()
	e.previous = &sample
	e.mu.Unlock()

	if err := storage.SaveJSON(context.WithoutCancel(ctx), e.store, storage.KeyPreviousLocation, sample); err != nil {
		e.metrics.IncrementPersistFailure(storage.KeyPreviousLocation)
		e.logger.ErrorContext(ctx, "failed to persist previous location", "error", err)
	}
}

func (e *Engine) park(ctx context.Context, sample models.LocationSample) models.ThresholdEvent {
	e.mu.Lock()
	if len(e.pending) >= e.maxPending {
		dropped := e.pending[0]
		e.pending = slices.Delete(e.pending, 0, 1)
		e.logger.WarnContext(ctx, "pending confirmation discarded", "sample_id", dropped.ID)
	}
	e.pending = append(e.pending, sample)
	n := len(e.pending)
	e.mu.Unlock()

	e.metrics.SetPendingSamples(n)
	e.logger.InfoContext(ctx, "location confirmation required",
		"sample_id", sample.ID,
		"country", sample.CountryCode,
		"vpn_active", sample.VPNActiveDuration,
	)
	return models.ThresholdEvent{
		Kind:        models.EventLocationConfirmationRequired,
		CountryCode: sample.CountryCode,
		CountryName: sample.CountryName,
		SampleID:    sample.ID,
		VPNActive:   sample.VPNActiveDuration,
		OccurredAt:  sample.CapturedAt,
	}
}

func (e *Engine) takePending(sampleID id.SampleID) (models.LocationSample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := slices.IndexFunc(e.pending, func(s models.LocationSample) bool { return s.ID == sampleID })
	if idx < 0 {
		return models.LocationSample{}, false
	}
	sample := e.pending[idx]
	e.pending = slices.Delete(e.pending, idx, idx+1)
	e.metrics.SetPendingSamples(len(e.pending))
	return sample, true
}

// dispatch hands events to the dispatcher in order. Failures are logged and
// never abort processing.
func (e *Engine) dispatch(ctx context.Context, events []models.ThresholdEvent) {
	for _, ev := range events {
		e.metrics.IncrementEvent(string(ev.Kind))
		if e.dispatcher == nil {
			continue
		}
		if err := e.dispatcher.Dispatch(ctx, ev.Notification()); err != nil {
			e.logger.ErrorContext(ctx, "failed to dispatch notification", "kind", ev.Kind, "error", err)
		}
	}
}
