// Package service is the entry point for every tracking mutation. It runs
// user edits and location samples on the serialized loop and serves reads
// from registry snapshots.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"supernomad/internal/tracking/engine"
	"supernomad/internal/tracking/loop"
	"supernomad/internal/tracking/models"
	"supernomad/internal/tracking/registry"
	id "supernomad/pkg/domain"
	dErrors "supernomad/pkg/domain-errors"
)

type Service struct {
	loop     *loop.Loop
	registry *registry.Registry
	engine   *engine.Engine
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(l *loop.Loop, reg *registry.Registry, eng *engine.Engine, opts ...Option) (*Service, error) {
	if l == nil {
		return nil, fmt.Errorf("tracking loop is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("country registry is required")
	}
	if eng == nil {
		return nil, fmt.Errorf("tracking engine is required")
	}
	svc := &Service{loop: l, registry: reg, engine: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) ListCountries(ctx context.Context) []*models.TrackedCountry {
	return s.registry.List()
}

func (s *Service) GetCountry(ctx context.Context, countryID id.CountryID) (*models.TrackedCountry, error) {
	return s.registry.Get(countryID)
}

func (s *Service) AddCountry(ctx context.Context, in registry.NewCountry) (*models.TrackedCountry, error) {
	var out *models.TrackedCountry
	err := s.submit(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.registry.Add(ctx, in)
		return err
	})
	return out, err
}

func (s *Service) RemoveCountry(ctx context.Context, countryID id.CountryID) error {
	return s.submit(ctx, func(ctx context.Context) error {
		return s.registry.Remove(ctx, countryID)
	})
}

func (s *Service) UpdateLimit(ctx context.Context, countryID id.CountryID, dayLimit int) (*models.TrackedCountry, error) {
	return s.mutate(ctx, func(ctx context.Context) (*models.TrackedCountry, error) {
		return s.registry.UpdateLimit(ctx, countryID, dayLimit)
	})
}

func (s *Service) ResetCountry(ctx context.Context, countryID id.CountryID) (*models.TrackedCountry, error) {
	return s.mutate(ctx, func(ctx context.Context) (*models.TrackedCountry, error) {
		return s.registry.Reset(ctx, countryID)
	})
}

func (s *Service) ToggleCounting(ctx context.Context, countryID id.CountryID) (*models.TrackedCountry, error) {
	return s.mutate(ctx, func(ctx context.Context) (*models.TrackedCountry, error) {
		return s.registry.ToggleCounting(ctx, countryID)
	})
}

// RecordLocation runs one sample through the engine. It matches the
// location.Callback signature so a provider can deliver straight into it.
func (s *Service) RecordLocation(ctx context.Context, sample models.LocationSample) error {
	_, err := s.ProcessLocation(ctx, sample)
	return err
}

// ProcessLocation is RecordLocation returning the engine result.
func (s *Service) ProcessLocation(ctx context.Context, sample models.LocationSample) (*engine.Result, error) {
	var res *engine.Result
	err := s.submit(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.engine.OnLocationUpdate(ctx, sample)
		return err
	})
	return res, err
}

func (s *Service) ConfirmLocation(ctx context.Context, sampleID id.SampleID, isCorrect bool) (*engine.Result, error) {
	var res *engine.Result
	err := s.submit(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.engine.ConfirmAmbiguousLocation(ctx, sampleID, isCorrect)
		return err
	})
	return res, err
}

func (s *Service) PendingConfirmations(ctx context.Context) []models.LocationSample {
	return s.engine.PendingConfirmations()
}

// LastLocation is the last sample the engine processed, or nil.
func (s *Service) LastLocation(ctx context.Context) *models.LocationSample {
	return s.engine.Previous()
}

func (s *Service) mutate(ctx context.Context, fn func(context.Context) (*models.TrackedCountry, error)) (*models.TrackedCountry, error) {
	var out *models.TrackedCountry
	err := s.submit(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// submit runs job on the loop and translates loop failures into coded
// errors. Job errors pass through unchanged.
func (s *Service) submit(ctx context.Context, job loop.Job) error {
	err := s.loop.Submit(ctx, job)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, loop.ErrQueueFull):
		s.logger.WarnContext(ctx, "tracking loop saturated")
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "tracking is busy, retry shortly")
	case errors.Is(err, loop.ErrLoopClosed):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "tracking is shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "tracking request timed out")
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "request canceled")
	}
	return err
}
