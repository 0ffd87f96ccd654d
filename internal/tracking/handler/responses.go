package handler

import (
	"time"

	"supernomad/internal/tracking/models"
	id "supernomad/pkg/domain"
)

// CountryResponse is a tracked country with derived figures.
type CountryResponse struct {
	ID               id.CountryID        `json:"id"`
	Code             id.CountryCode      `json:"code"`
	Name             string              `json:"name"`
	TrackingType     models.TrackingType `json:"tracking_type"`
	DayLimit         int                 `json:"day_limit"`
	DaysSpent        int                 `json:"days_spent"`
	YearlyDaysSpent  int                 `json:"yearly_days_spent"`
	WindowDays       int                 `json:"window_days"`
	DaysRemaining    int                 `json:"days_remaining"`
	TaxDaysRemaining int                 `json:"tax_days_remaining"`
	Progress         float64             `json:"progress"`
	CountTravelDays  bool                `json:"count_travel_days"`
	TotalEntries     int                 `json:"total_entries"`
	LastEntry        *time.Time          `json:"last_entry,omitempty"`
	LastUpdate       models.Date         `json:"last_update,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func toCountryResponse(c *models.TrackedCountry, today models.Date) CountryResponse {
	window := c.RollingDays(today)
	return CountryResponse{
		ID:               c.ID,
		Code:             c.Code,
		Name:             c.Name,
		TrackingType:     c.TrackingType,
		DayLimit:         c.DayLimit,
		DaysSpent:        c.DaysSpent,
		YearlyDaysSpent:  c.YearlyDaysSpent,
		WindowDays:       window,
		DaysRemaining:    max(0, c.DayLimit-window),
		TaxDaysRemaining: c.TaxDaysRemaining(),
		Progress:         c.Progress(),
		CountTravelDays:  c.CountTravelDays,
		TotalEntries:     c.TotalEntries,
		LastEntry:        c.LastEntry,
		LastUpdate:       c.LastUpdate,
		CreatedAt:        c.CreatedAt,
	}
}

type CountriesResponse struct {
	Countries []CountryResponse `json:"countries"`
}

// SampleResponse is a location sample as shown to clients.
type SampleResponse struct {
	ID                id.SampleID       `json:"id"`
	Latitude          float64           `json:"latitude"`
	Longitude         float64           `json:"longitude"`
	CountryCode       id.CountryCode    `json:"country_code"`
	CountryName       string            `json:"country_name,omitempty"`
	City              string            `json:"city,omitempty"`
	CapturedAt        time.Time         `json:"captured_at"`
	Confidence        models.Confidence `json:"confidence"`
	VPNActiveDuration string            `json:"vpn_active_duration,omitempty"`
	// Dropped marks a pushed fix that could not be counted.
	Dropped bool `json:"dropped,omitempty"`
}

func toSampleResponse(s models.LocationSample) SampleResponse {
	resp := SampleResponse{
		ID:          s.ID,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		CountryCode: s.CountryCode,
		CountryName: s.CountryName,
		City:        s.City,
		CapturedAt:  s.CapturedAt,
		Confidence:  s.Confidence,
	}
	if s.VPNActiveDuration > 0 {
		resp.VPNActiveDuration = s.VPNActiveDuration.Round(time.Second).String()
	}
	return resp
}

type PendingResponse struct {
	Pending []SampleResponse `json:"pending"`
}

type ConfirmResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

type NotificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
}
