package models

import (
	"fmt"
	"time"

	id "supernomad/pkg/domain"
)

// EventKind names a tracking event.
type EventKind string

const (
	EventApproachingLimit             EventKind = "approaching-limit"
	EventLimitExceeded                EventKind = "limit-exceeded"
	EventTaxResidenceWarning          EventKind = "tax-residence-warning"
	EventTaxResident                  EventKind = "tax-resident"
	EventCountryEntered               EventKind = "country-entered"
	EventCountryExited                EventKind = "country-exited"
	EventUntrackedCountryEntered      EventKind = "untracked-country-entered"
	EventLocationConfirmationRequired EventKind = "location-confirmation-required"
	EventVPNDisableAdvised            EventKind = "vpn-disable-advised"
)

// Severity drives how prominently the notification surface renders an event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ThresholdEvent is produced by the tracking engine and dispatched
// immediately; it is never persisted.
type ThresholdEvent struct {
	Kind             EventKind
	CountryID        id.CountryID
	CountryCode      id.CountryCode
	CountryName      string
	TrackingType     TrackingType
	DaysSpent        int
	DayLimit         int
	DaysRemaining    int
	YearlyDaysSpent  int
	TaxDaysRemaining int
	TotalEntries     int
	SampleID         id.SampleID
	VPNActive        time.Duration
	OccurredAt       time.Time
}

// CountryEvent fills the country reference and counters from c.
func CountryEvent(kind EventKind, c *TrackedCountry, at time.Time) ThresholdEvent {
	return ThresholdEvent{
		Kind:             kind,
		CountryID:        c.ID,
		CountryCode:      c.Code,
		CountryName:      c.Name,
		TrackingType:     c.TrackingType,
		DaysSpent:        c.DaysSpent,
		DayLimit:         c.DayLimit,
		DaysRemaining:    c.DaysRemaining(),
		YearlyDaysSpent:  c.YearlyDaysSpent,
		TaxDaysRemaining: c.TaxDaysRemaining(),
		TotalEntries:     c.TotalEntries,
		OccurredAt:       at,
	}
}

// Notification is the {title, description, severity} shape handed to the
// notification surface.
type Notification struct {
	Kind        EventKind      `json:"kind"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Severity    Severity       `json:"severity"`
	CountryCode id.CountryCode `json:"country_code,omitempty"`
	SampleID    *id.SampleID   `json:"sample_id,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// Notification renders the event for the user.
func (e ThresholdEvent) Notification() Notification {
	n := Notification{
		Kind:        e.Kind,
		CountryCode: e.CountryCode,
		OccurredAt:  e.OccurredAt,
	}
	name := e.CountryName
	if name == "" {
		name = e.CountryCode.String()
	}

	switch e.Kind {
	case EventApproachingLimit:
		n.Severity = SeverityWarning
		n.Title = fmt.Sprintf("Approaching your %s day limit", name)
		n.Description = fmt.Sprintf("%d of %d days used. %d days remaining.", e.DaysSpent, e.DayLimit, e.DaysRemaining)
	case EventLimitExceeded:
		n.Severity = SeverityCritical
		n.Title = fmt.Sprintf("Day limit reached in %s", name)
		n.Description = fmt.Sprintf("You have spent %d days against a limit of %d.", e.DaysSpent, e.DayLimit)
	case EventTaxResidenceWarning:
		n.Severity = SeverityWarning
		n.Title = fmt.Sprintf("Tax residency approaching in %s", name)
		n.Description = fmt.Sprintf("%d days this year. %d days left before the %d-day tax residency threshold.",
			e.YearlyDaysSpent, e.TaxDaysRemaining, TaxResidencyThreshold)
	case EventTaxResident:
		n.Severity = SeverityCritical
		n.Title = fmt.Sprintf("You may be a tax resident of %s", name)
		n.Description = fmt.Sprintf("%d days this year reaches the %d-day tax residency threshold.",
			e.YearlyDaysSpent, TaxResidencyThreshold)
	case EventCountryEntered:
		n.Severity = SeverityInfo
		n.Title = fmt.Sprintf("Welcome to %s", name)
		n.Description = fmt.Sprintf("Entry #%d recorded. %d days left before tax residency.", e.TotalEntries, e.TaxDaysRemaining)
	case EventCountryExited:
		n.Severity = SeverityInfo
		n.Title = fmt.Sprintf("You left %s", name)
		n.Description = fmt.Sprintf("%d days counted so far.", e.DaysSpent)
	case EventUntrackedCountryEntered:
		n.Severity = SeverityInfo
		n.Title = fmt.Sprintf("Entered %s", name)
		n.Description = fmt.Sprintf("%s is not tracked. Add it to start counting days here.", name)
	case EventLocationConfirmationRequired:
		n.Severity = SeverityWarning
		n.Title = "Confirm your location"
		n.Description = fmt.Sprintf("A VPN has been active for %s. Confirm you are in %s so the day can be counted.",
			e.VPNActive.Round(time.Minute), name)
	case EventVPNDisableAdvised:
		n.Severity = SeverityInfo
		n.Title = "Location not counted"
		n.Description = "Disable your VPN for accurate day tracking."
	default:
		n.Severity = SeverityInfo
		n.Title = string(e.Kind)
	}

	if !e.SampleID.IsNil() {
		sampleID := e.SampleID
		n.SampleID = &sampleID
	}
	return n
}
