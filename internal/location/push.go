package location

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"supernomad/internal/tracking/models"
	id "supernomad/pkg/domain"
	dErrors "supernomad/pkg/domain-errors"
	"supernomad/pkg/requestcontext"
)

// VPNStatus is what the device knows about an active VPN tunnel.
type VPNStatus struct {
	Active      bool       `json:"active"`
	ActiveSince *time.Time `json:"active_since,omitempty"`
}

// Fix is a raw position reported by a device, already reverse geocoded.
type Fix struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CountryCode string    `json:"country_code"`
	CountryName string    `json:"country_name,omitempty"`
	City        string    `json:"city,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
	VPN         VPNStatus `json:"vpn"`
}

// PushProvider is a Provider fed by devices pushing fixes over HTTP.
type PushProvider struct {
	logger *slog.Logger

	// order serializes delivery so fixes reach the callback, and become
	// current, in arrival order.
	order sync.Mutex

	mu       sync.Mutex
	cb       Callback
	last     *models.LocationSample
	vpnSince time.Time
}

type Option func(*PushProvider)

func WithLogger(logger *slog.Logger) Option {
	return func(p *PushProvider) {
		p.logger = logger
	}
}

func NewPushProvider(opts ...Option) *PushProvider {
	p := &PushProvider{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CurrentLocation returns the most recent accepted fix.
func (p *PushProvider) CurrentLocation(ctx context.Context) (models.LocationSample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return models.LocationSample{}, ErrLocationUnavailable
	}
	return *p.last, nil
}

// StartBackgroundTracking registers cb for every subsequent fix. Starting
// twice replaces the callback.
func (p *PushProvider) StartBackgroundTracking(ctx context.Context, cb Callback) error {
	if cb == nil {
		return fmt.Errorf("location callback is required")
	}
	p.mu.Lock()
	p.cb = cb
	p.mu.Unlock()
	p.logger.InfoContext(ctx, "background location tracking started")
	return nil
}

// StopBackgroundTracking stops delivery. A callback already running
// completes.
func (p *PushProvider) StopBackgroundTracking() {
	p.mu.Lock()
	p.cb = nil
	p.mu.Unlock()
	p.logger.Info("background location tracking stopped")
}

// Push turns a fix into a sample and hands it to the background callback.
// Fixes without a country, off the globe or dated ahead of the clock are
// still delivered so the engine can drop them, but are never remembered for
// CurrentLocation. A fix becomes current only once delivery succeeded;
// pushes are delivered one at a time in arrival order. Fixes arriving while
// tracking is stopped are remembered but not delivered.
func (p *PushProvider) Push(ctx context.Context, fix Fix) (models.LocationSample, error) {
	now := requestcontext.Now(ctx)
	if fix.CapturedAt.IsZero() {
		fix.CapturedAt = now
	}
	var code id.CountryCode
	if strings.TrimSpace(fix.CountryCode) != "" {
		var err error
		code, err = id.ParseCountryCode(fix.CountryCode)
		if err != nil {
			return models.LocationSample{}, dErrors.Wrap(err, dErrors.CodeValidation, "country_code must be a two-letter country code")
		}
	}

	sample := models.LocationSample{
		ID:          id.NewSampleID(),
		Latitude:    fix.Latitude,
		Longitude:   fix.Longitude,
		CountryCode: code,
		CountryName: fix.CountryName,
		City:        fix.City,
		CapturedAt:  fix.CapturedAt,
		Confidence:  models.ConfidenceDirect,
	}
	reason, unusable := sample.Malformed(now)

	p.order.Lock()
	defer p.order.Unlock()

	p.mu.Lock()
	if !unusable {
		sample.Confidence, sample.VPNActiveDuration = p.assess(fix)
	}
	prev := p.last
	cb := p.cb
	p.mu.Unlock()

	switch {
	case unusable:
		p.logger.WarnContext(ctx, "unusable location fix", "sample_id", sample.ID, "reason", reason)
	case prev != nil:
		p.logger.DebugContext(ctx, "location fix received",
			"country", sample.CountryCode,
			"moved_m", int(prev.DistanceMeters(sample)),
			"confidence", sample.Confidence,
		)
	}

	if cb != nil {
		if err := cb(ctx, sample); err != nil {
			return sample, err
		}
	}
	if !unusable {
		p.mu.Lock()
		p.last = &sample
		p.mu.Unlock()
	}
	return sample, nil
}

// assess grades a fix. Without a device-reported start time the VPN is
// considered active since the first fix that reported it. Callers hold p.mu.
func (p *PushProvider) assess(fix Fix) (models.Confidence, time.Duration) {
	if !fix.VPN.Active {
		p.vpnSince = time.Time{}
		return models.ConfidenceDirect, 0
	}
	since := p.vpnSince
	if fix.VPN.ActiveSince != nil {
		since = *fix.VPN.ActiveSince
	}
	if since.IsZero() || since.After(fix.CapturedAt) {
		since = fix.CapturedAt
	}
	p.vpnSince = since
	return Assess(true, fix.CapturedAt.Sub(since))
}

// Assess maps a VPN observation to a sample confidence.
func Assess(vpnActive bool, activeFor time.Duration) (models.Confidence, time.Duration) {
	if !vpnActive {
		return models.ConfidenceDirect, 0
	}
	return models.ConfidenceVPNSuspect, max(0, activeFor)
}
