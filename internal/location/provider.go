// Package location supplies resolved location samples to the tracking core.
// Reverse geocoding and permission handling happen on the device; the
// provider only validates fixes, grades VPN confidence and delivers samples.
package location

import (
	"context"

	"supernomad/internal/tracking/models"
	dErrors "supernomad/pkg/domain-errors"
	"supernomad/pkg/platform/sentinel"
)

// ErrLocationUnavailable is returned when no fix has been received yet.
var ErrLocationUnavailable = dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeUnavailable, "no location fix received yet")

// Callback receives samples in arrival order. Its error is reported back to
// whoever pushed the fix.
type Callback func(ctx context.Context, sample models.LocationSample) error

type Provider interface {
	CurrentLocation(ctx context.Context) (models.LocationSample, error)
	StartBackgroundTracking(ctx context.Context, cb Callback) error
	StopBackgroundTracking()
}
