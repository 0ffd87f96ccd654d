package handler

import (
	"strings"
	"time"

	"supernomad/internal/location"
	"supernomad/internal/tracking/models"
	"supernomad/internal/tracking/registry"
	id "supernomad/pkg/domain"
	dErrors "supernomad/pkg/domain-errors"
)

// AddCountryRequest is the body of POST /countries.
type AddCountryRequest struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	TrackingType string `json:"tracking_type"`
	DayLimit     int    `json:"day_limit"`
	// CountTravelDays defaults to true when omitted.
	CountTravelDays *bool `json:"count_travel_days"`
}

func (r *AddCountryRequest) Validate() error {
	if len(r.Name) > 100 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 100 characters")
	}
	code, err := id.ParseCountryCode(r.Code)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "code must be a two-letter country code")
	}
	r.Code = code.String()
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	r.TrackingType = strings.ToLower(strings.TrimSpace(r.TrackingType))
	if r.TrackingType != "" && !models.TrackingType(r.TrackingType).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "tracking_type must be one of tourist-visa, schengen, tax-residency, custom")
	}
	if r.DayLimit < 0 {
		return dErrors.New(dErrors.CodeValidation, "day_limit must be positive")
	}
	return nil
}

func (r *AddCountryRequest) toNewCountry() registry.NewCountry {
	count := true
	if r.CountTravelDays != nil {
		count = *r.CountTravelDays
	}
	return registry.NewCountry{
		Code:            r.Code,
		Name:            r.Name,
		TrackingType:    models.TrackingType(r.TrackingType),
		DayLimit:        r.DayLimit,
		CountTravelDays: count,
	}
}

// UpdateLimitRequest is the body of PUT /countries/{id}/limit.
type UpdateLimitRequest struct {
	DayLimit int `json:"day_limit"`
}

func (r *UpdateLimitRequest) Validate() error {
	if r.DayLimit <= 0 {
		return dErrors.New(dErrors.CodeValidation, "day_limit must be a positive number of days")
	}
	return nil
}

// ConfirmRequest is the body of POST /location/pending/{id}/confirm.
type ConfirmRequest struct {
	Correct *bool `json:"correct"`
}

func (r *ConfirmRequest) Validate() error {
	if r.Correct == nil {
		return dErrors.New(dErrors.CodeValidation, "correct is required")
	}
	return nil
}

// LocationRequest is the body of POST /location, a device fix. A fix the
// device could not reverse geocode omits country_code; it is accepted and
// dropped by the engine.
type LocationRequest struct {
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	CountryCode string     `json:"country_code"`
	CountryName string     `json:"country_name"`
	City        string     `json:"city"`
	CapturedAt  time.Time  `json:"captured_at"`
	VPNActive   bool       `json:"vpn_active"`
	VPNSince    *time.Time `json:"vpn_active_since"`
}

func (r *LocationRequest) Validate() error {
	r.CountryCode = strings.TrimSpace(r.CountryCode)
	if len(r.CountryName) > 100 || len(r.City) > 100 {
		return dErrors.New(dErrors.CodeValidation, "country_name and city must be at most 100 characters")
	}
	return nil
}

func (r *LocationRequest) toFix() location.Fix {
	return location.Fix{
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		CountryCode: r.CountryCode,
		CountryName: strings.TrimSpace(r.CountryName),
		City:        strings.TrimSpace(r.City),
		CapturedAt:  r.CapturedAt,
		VPN:         location.VPNStatus{Active: r.VPNActive, ActiveSince: r.VPNSince},
	}
}
