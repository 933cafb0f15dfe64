// Package recur implements the pure calendar logic behind recurring todos:
// deciding whether a date is an occurrence of a pattern and finding the next
// occurrence after a date. Nothing here touches storage or the clock; every
// function is a pure function of its inputs and callable with any date, past
// or future.
package recur

import (
	"math"
	"time"

	"github.com/julianstephens/evertodo/internal/constants"
	"github.com/julianstephens/evertodo/internal/models"
)

// DateOnly normalizes t to midnight in its own location. All calendar-date
// comparisons go through this to avoid timezone-boundary drift.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same local calendar date.
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

// ParseDate parses a YYYY-MM-DD string as a local calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(constants.DateFormat, s, time.Local)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// DaysBetween returns the number of calendar days from a to b (negative when
// b precedes a). Rounding absorbs DST transitions.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(DateOnly(b).Sub(DateOnly(a)).Hours() / 24))
}

// Matches reports whether date is an occurrence of the pattern. A nil
// pattern never matches, and no pattern matches past its end date.
func Matches(p *models.RecurringPattern, date time.Time) bool {
	if p == nil {
		return false
	}
	d := DateOnly(date)
	if p.EndDate != nil && d.After(DateOnly(*p.EndDate)) {
		return false
	}

	switch p.Type {
	case models.PatternDaily:
		return dayAligned(p, d)
	case models.PatternWeekly, models.PatternCustom:
		return p.HasWeekday(d.Weekday()) && weekAligned(p, d)
	case models.PatternMonthly:
		return d.Day() == p.DayOfMonth && monthAligned(p, d)
	case models.PatternYearly:
		return d.Month() == p.MonthOfYear && d.Day() == p.DayOfMonth && yearAligned(p, d)
	default:
		return false
	}
}

// NextOccurrence returns the first occurrence of the pattern strictly after
// the given date. ok is false when no further occurrence exists within the
// pattern's end date or the search horizon.
func NextOccurrence(p *models.RecurringPattern, after time.Time) (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}

	d := DateOnly(after)
	for i := 0; i < searchHorizonDays(p); i++ {
		d = d.AddDate(0, 0, 1)
		if p.EndDate != nil && d.After(DateOnly(*p.EndDate)) {
			return time.Time{}, false
		}
		if Matches(p, d) {
			return d, true
		}
	}
	return time.Time{}, false
}

// searchHorizonDays bounds the day-by-day scan in NextOccurrence. Yearly
// patterns with a large interval need the widest horizon; everything else is
// covered well within it.
func searchHorizonDays(p *models.RecurringPattern) int {
	interval := p.EffectiveInterval()
	switch p.Type {
	case models.PatternYearly:
		return 366 * (interval + 1)
	case models.PatternMonthly:
		// Day-of-month 31 can skip several months in a row.
		return 31*interval + 366
	default:
		return 7*interval + 366
	}
}

// Interval alignment. Intervals above 1 only take effect when the pattern
// carries an anchor date; without one the pattern matches every occurrence,
// preserving interval-1 behavior.

func dayAligned(p *models.RecurringPattern, d time.Time) bool {
	interval := p.EffectiveInterval()
	if interval == 1 || p.Anchor == nil {
		return true
	}
	return floorMod(DaysBetween(*p.Anchor, d), interval) == 0
}

func weekAligned(p *models.RecurringPattern, d time.Time) bool {
	interval := p.EffectiveInterval()
	if interval == 1 || p.Anchor == nil {
		return true
	}
	weeks := DaysBetween(weekStart(*p.Anchor), weekStart(d)) / 7
	return floorMod(weeks, interval) == 0
}

func monthAligned(p *models.RecurringPattern, d time.Time) bool {
	interval := p.EffectiveInterval()
	if interval == 1 || p.Anchor == nil {
		return true
	}
	a := DateOnly(*p.Anchor)
	months := (d.Year()-a.Year())*12 + int(d.Month()) - int(a.Month())
	return floorMod(months, interval) == 0
}

func yearAligned(p *models.RecurringPattern, d time.Time) bool {
	interval := p.EffectiveInterval()
	if interval == 1 || p.Anchor == nil {
		return true
	}
	return floorMod(d.Year()-DateOnly(*p.Anchor).Year(), interval) == 0
}

// weekStart returns the Sunday that starts the week containing d.
func weekStart(d time.Time) time.Time {
	d = DateOnly(d)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

func floorMod(a, n int) int {
	return ((a % n) + n) % n
}
