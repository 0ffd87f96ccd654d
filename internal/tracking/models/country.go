package models

import (
	"slices"
	"strings"
	"time"

	id "supernomad/pkg/domain"
	dErrors "supernomad/pkg/domain-errors"
)

// Tax residency is assessed against fixed day counts regardless of the
// per-country limit the user configured.
const (
	TaxResidencyThreshold = 183
	TaxResidencyWarningAt = 150
	ApproachingLimitRatio = 0.90
)

// TrackingType labels why a country is tracked. The same country may be
// tracked once per type.
type TrackingType string

const (
	TrackingTouristVisa  TrackingType = "tourist-visa"
	TrackingSchengen     TrackingType = "schengen"
	TrackingTaxResidency TrackingType = "tax-residency"
	TrackingCustom       TrackingType = "custom"
)

// IsValid checks if the tracking type is one of the supported enum values.
func (t TrackingType) IsValid() bool {
	switch t {
	case TrackingTouristVisa, TrackingSchengen, TrackingTaxResidency, TrackingCustom:
		return true
	}
	return false
}

// DefaultLimit is the day limit used when the user does not supply one.
// Custom tracking has no default.
func (t TrackingType) DefaultLimit() int {
	switch t {
	case TrackingTouristVisa, TrackingSchengen:
		return 90
	case TrackingTaxResidency:
		return TaxResidencyThreshold
	}
	return 0
}

// RollingWindow is the trailing window, in days, the limit applies to.
// Zero means the limit applies to the cumulative counter.
func (t TrackingType) RollingWindow() int {
	if t == TrackingSchengen {
		return 180
	}
	return 0
}

// TrackedCountry is one monitored (country, tracking type) pair and its
// accumulated counters.
type TrackedCountry struct {
	ID              id.CountryID   `json:"id"`
	Code            id.CountryCode `json:"code"`
	Name            string         `json:"name"`
	TrackingType    TrackingType   `json:"tracking_type"`
	DayLimit        int            `json:"day_limit"`
	DaysSpent       int            `json:"days_spent"`
	YearlyDaysSpent int            `json:"yearly_days_spent"`
	CountTravelDays bool           `json:"count_travel_days"`
	LastUpdate      Date           `json:"last_update,omitempty"`
	TotalEntries    int            `json:"total_entries"`
	LastEntry       *time.Time     `json:"last_entry,omitempty"`
	// StayDays lists counted days inside the rolling window; only kept for
	// rolling-window tracking types.
	StayDays  []Date    `json:"stay_days,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTrackedCountry creates a TrackedCountry with domain invariant validation.
// A zero dayLimit falls back to the tracking type default.
func NewTrackedCountry(code id.CountryCode, name string, trackingType TrackingType, dayLimit int, countTravelDays bool, now time.Time) (*TrackedCountry, error) {
	if code.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "country code is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "country name is required")
	}
	if trackingType == "" {
		trackingType = TrackingCustom
	}
	if !trackingType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid tracking type")
	}
	if dayLimit == 0 {
		dayLimit = trackingType.DefaultLimit()
	}
	if dayLimit <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "day limit must be a positive number of days")
	}

	return &TrackedCountry{
		ID:              id.NewCountryID(),
		Code:            code,
		Name:            name,
		TrackingType:    trackingType,
		DayLimit:        dayLimit,
		CountTravelDays: countTravelDays,
		CreatedAt:       now,
	}, nil
}

// Clone returns a deep copy safe to mutate.
func (c *TrackedCountry) Clone() *TrackedCountry {
	out := *c
	if c.LastEntry != nil {
		t := *c.LastEntry
		out.LastEntry = &t
	}
	out.StayDays = slices.Clone(c.StayDays)
	return &out
}

// Accrue counts today against the country. It reports false, changing
// nothing, when counting is disabled or today has already been counted (or
// lies before the last counted day). A new calendar year restarts the yearly
// counter before the increment.
func (c *TrackedCountry) Accrue(today Date) bool {
	if !c.CountTravelDays || today.IsZero() {
		return false
	}
	if !c.LastUpdate.IsZero() && !today.After(c.LastUpdate) {
		return false
	}

	if !c.LastUpdate.IsZero() && today.Year() > c.LastUpdate.Year() {
		c.YearlyDaysSpent = 0
	}
	c.DaysSpent++
	c.YearlyDaysSpent++
	c.LastUpdate = today

	if window := c.TrackingType.RollingWindow(); window > 0 {
		c.StayDays = append(c.StayDays, today)
		c.pruneStayDays(today, window)
	}
	return true
}

// RecordEntry registers a detected entry into the country.
func (c *TrackedCountry) RecordEntry(at time.Time) {
	c.TotalEntries++
	c.LastEntry = &at
}

// ResetCounters zeroes every counter and marker.
func (c *TrackedCountry) ResetCounters() {
	c.DaysSpent = 0
	c.YearlyDaysSpent = 0
	c.TotalEntries = 0
	c.LastEntry = nil
	c.LastUpdate = ""
	c.StayDays = nil
}

// Progress is DaysSpent as a fraction of DayLimit.
func (c *TrackedCountry) Progress() float64 {
	if c.DayLimit <= 0 {
		return 0
	}
	return float64(c.DaysSpent) / float64(c.DayLimit)
}

// DaysRemaining is DayLimit minus DaysSpent, floored at zero.
func (c *TrackedCountry) DaysRemaining() int {
	return max(0, c.DayLimit-c.DaysSpent)
}

// TaxDaysRemaining is the distance to the tax residency threshold, floored at zero.
func (c *TrackedCountry) TaxDaysRemaining() int {
	return max(0, TaxResidencyThreshold-c.YearlyDaysSpent)
}

// RollingDays counts counted days within the trailing rolling window ending
// today. For cumulative types it returns DaysSpent.
func (c *TrackedCountry) RollingDays(today Date) int {
	window := c.TrackingType.RollingWindow()
	if window == 0 {
		return c.DaysSpent
	}
	start := today.AddDays(-(window - 1))
	n := 0
	for _, d := range c.StayDays {
		if !d.Before(start) && !d.After(today) {
			n++
		}
	}
	return n
}

func (c *TrackedCountry) pruneStayDays(today Date, window int) {
	start := today.AddDays(-(window - 1))
	c.StayDays = slices.DeleteFunc(c.StayDays, func(d Date) bool { return d.Before(start) })
}
