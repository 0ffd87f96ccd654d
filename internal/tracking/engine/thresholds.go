package engine

import (
	"time"

	"supernomad/internal/tracking/models"
)

// TaxResidentPolicy controls how often tax-resident is raised once the
// yearly counter is at or above the threshold.
type TaxResidentPolicy string

const (
	// TaxResidentOnce fires only on the accrual that reaches the threshold.
	TaxResidentOnce TaxResidentPolicy = "once"
	// TaxResidentRecurring fires on every accrual at or above the threshold.
	TaxResidentRecurring TaxResidentPolicy = "recurring"
)

func (p TaxResidentPolicy) IsValid() bool {
	return p == TaxResidentOnce || p == TaxResidentRecurring
}

// limitEvent evaluates the day-limit thresholds for a record that was just
// accrued. Rolling-window types are measured on the trailing window.
func limitEvent(c *models.TrackedCountry, today models.Date, at time.Time) (models.ThresholdEvent, bool) {
	if c.DayLimit <= 0 {
		return models.ThresholdEvent{}, false
	}
	days := c.RollingDays(today)
	ratio := float64(days) / float64(c.DayLimit)

	var kind models.EventKind
	switch {
	case ratio >= 1:
		kind = models.EventLimitExceeded
	case ratio >= models.ApproachingLimitRatio:
		kind = models.EventApproachingLimit
	default:
		return models.ThresholdEvent{}, false
	}

	ev := models.CountryEvent(kind, c, at)
	ev.DaysSpent = days
	ev.DaysRemaining = max(0, c.DayLimit-days)
	return ev, true
}

// taxEvent evaluates the calendar-year tax residency thresholds.
func taxEvent(c *models.TrackedCountry, policy TaxResidentPolicy, at time.Time) (models.ThresholdEvent, bool) {
	yearly := c.YearlyDaysSpent
	switch {
	case yearly == models.TaxResidencyWarningAt:
		return models.CountryEvent(models.EventTaxResidenceWarning, c, at), true
	case yearly == models.TaxResidencyThreshold:
		return models.CountryEvent(models.EventTaxResident, c, at), true
	case yearly > models.TaxResidencyThreshold && policy == TaxResidentRecurring:
		return models.CountryEvent(models.EventTaxResident, c, at), true
	}
	return models.ThresholdEvent{}, false
}

// Evaluate returns the threshold events for a record right after today was
// accrued, limit events first.
func Evaluate(c *models.TrackedCountry, today models.Date, policy TaxResidentPolicy, at time.Time) []models.ThresholdEvent {
	var events []models.ThresholdEvent
	if ev, ok := limitEvent(c, today, at); ok {
		events = append(events, ev)
	}
	if ev, ok := taxEvent(c, policy, at); ok {
		events = append(events, ev)
	}
	return events
}
