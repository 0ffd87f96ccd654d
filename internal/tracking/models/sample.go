package models

import (
	"time"

	"github.com/golang/geo/s2"

	id "supernomad/pkg/domain"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371008.8

// MaxClockSkew is how far ahead of the server clock a device may date a
// sample before the sample is treated as malformed.
const MaxClockSkew = 5 * time.Minute

// Confidence grades how far a sample's resolved country can be trusted.
type Confidence string

const (
	ConfidenceDirect     Confidence = "direct"
	ConfidenceVPNSuspect Confidence = "vpn-suspect"
)

// LocationSample is one resolved position. Samples are never mutated after
// creation; the next sample supersedes it.
type LocationSample struct {
	ID          id.SampleID    `json:"id"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	CountryCode id.CountryCode `json:"country_code"`
	CountryName string         `json:"country_name,omitempty"`
	City        string         `json:"city,omitempty"`
	CapturedAt  time.Time      `json:"captured_at"`
	Confidence  Confidence     `json:"confidence"`
	// VPNActiveDuration is how long a VPN had been active when the sample
	// was captured; zero for direct samples.
	VPNActiveDuration time.Duration `json:"vpn_active_duration,omitempty"`
}

// IsResolved reports whether reverse geocoding produced a country.
func (s LocationSample) IsResolved() bool {
	return !s.CountryCode.IsNil()
}

// HasValidCoordinates reports whether the position lies on the globe.
// NaN coordinates are invalid.
func (s LocationSample) HasValidCoordinates() bool {
	return s.LatLng().IsValid()
}

func (s LocationSample) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(s.Latitude, s.Longitude)
}

// DistanceMeters is the great-circle distance between two samples.
func (s LocationSample) DistanceMeters(other LocationSample) float64 {
	return s.LatLng().Distance(other.LatLng()).Radians() * EarthRadiusMeters
}

// Malformed reports why the sample cannot be counted at now. Samples dated
// more than MaxClockSkew past now are malformed.
func (s LocationSample) Malformed(now time.Time) (string, bool) {
	switch {
	case !s.IsResolved():
		return "missing country resolution", true
	case !s.HasValidCoordinates():
		return "invalid coordinates", true
	case s.CapturedAt.After(now.Add(MaxClockSkew)):
		return "captured in the future", true
	}
	return "", false
}

// NeedsConfirmation reports whether the sample is VPN-suspect for longer
// than threshold.
func (s LocationSample) NeedsConfirmation(threshold time.Duration) bool {
	return s.Confidence == ConfidenceVPNSuspect && s.VPNActiveDuration > threshold
}

// DisplayName prefers the resolved name and falls back to the code.
func (s LocationSample) DisplayName() string {
	if s.CountryName != "" {
		return s.CountryName
	}
	return s.CountryCode.String()
}
