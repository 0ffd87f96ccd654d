package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"supernomad/internal/tracking/models"
)

func TestEvaluateIsPureInCounters(t *testing.T) {
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	today := models.Date("2026-05-01")

	for limit := 1; limit <= 40; limit++ {
		for days := 0; days <= limit+3; days++ {
			c := &models.TrackedCountry{TrackingType: models.TrackingCustom, DayLimit: limit, DaysSpent: days}
			progress := float64(days) / float64(limit)

			for _, ev := range Evaluate(c, today, TaxResidentOnce, at) {
				switch ev.Kind {
				case models.EventApproachingLimit:
					assert.GreaterOrEqual(t, progress, models.ApproachingLimitRatio, "limit=%d days=%d", limit, days)
					assert.Less(t, progress, 1.0)
					assert.Equal(t, limit-days, ev.DaysRemaining)
				case models.EventLimitExceeded:
					assert.GreaterOrEqual(t, progress, 1.0, "limit=%d days=%d", limit, days)
				}
			}
		}
	}
}

func TestTaxEventsByYearlyCount(t *testing.T) {
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		yearly    int
		policy    TaxResidentPolicy
		wantKind  models.EventKind
		wantFired bool
	}{
		{149, TaxResidentOnce, "", false},
		{150, TaxResidentOnce, models.EventTaxResidenceWarning, true},
		{151, TaxResidentOnce, "", false},
		{182, TaxResidentRecurring, "", false},
		{183, TaxResidentOnce, models.EventTaxResident, true},
		{184, TaxResidentOnce, "", false},
		{184, TaxResidentRecurring, models.EventTaxResident, true},
	}
	for _, tt := range tests {
		c := &models.TrackedCountry{YearlyDaysSpent: tt.yearly, DayLimit: 1000}
		ev, ok := taxEvent(c, tt.policy, at)
		assert.Equal(t, tt.wantFired, ok, "yearly=%d policy=%s", tt.yearly, tt.policy)
		if ok {
			assert.Equal(t, tt.wantKind, ev.Kind)
			assert.Equal(t, max(0, models.TaxResidencyThreshold-tt.yearly), ev.TaxDaysRemaining)
		}
	}
}
