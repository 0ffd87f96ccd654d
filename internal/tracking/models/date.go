package models

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day in YYYY-MM-DD form. The layout sorts
// lexicographically, so plain string comparison orders dates.
type Date string

// DateOf returns the calendar day of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return Date(t.In(loc).Format(dateLayout))
}

// ParseDate validates s as a YYYY-MM-DD day.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

func (d Date) IsZero() bool { return d == "" }

func (d Date) String() string { return string(d) }

// Time returns midnight UTC of the day. Zero dates return the zero time.
func (d Date) Time() time.Time {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Year returns the calendar year, or 0 for a zero date.
func (d Date) Year() int {
	if d.IsZero() {
		return 0
	}
	return d.Time().Year()
}

func (d Date) Before(other Date) bool { return d < other }

func (d Date) After(other Date) bool { return d > other }

// AddDays shifts the day by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date(d.Time().AddDate(0, 0, n).Format(dateLayout))
}
