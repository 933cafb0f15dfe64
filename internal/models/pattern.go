package models

import (
	"fmt"
	"strings"
	"time"
)

type PatternType string

const (
	PatternDaily   PatternType = "daily"
	PatternWeekly  PatternType = "weekly"
	PatternMonthly PatternType = "monthly"
	PatternYearly  PatternType = "yearly"
	PatternCustom  PatternType = "custom"
)

// RecurringPattern describes when occurrences of a todo fall. It is a value
// object: editing a schedule replaces the whole pattern, it is never mutated
// in place once a toggle decision has seen it.
type RecurringPattern struct {
	Type PatternType `json:"type"`

	// Interval is "every N units" (N days, N weeks, ...). Values above 1
	// are counted from Anchor; 0 is treated as 1.
	Interval int `json:"interval,omitempty"`

	// DaysOfWeek carries the weekday set for weekly and custom patterns
	// (time.Sunday = 0).
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`

	// DayOfMonth is the occurrence day (1-31) for monthly and yearly
	// patterns. Months without that day simply have no occurrence.
	DayOfMonth int `json:"day_of_month,omitempty"`

	// MonthOfYear is the occurrence month (1-12) for yearly patterns.
	MonthOfYear time.Month `json:"month_of_year,omitempty"`

	// EndDate, when set, is the last calendar date on which an occurrence
	// may fall.
	EndDate *time.Time `json:"end_date,omitempty"`

	// Occurrences, when positive, caps the total number of series
	// completions. Reaching the cap stops successor creation.
	Occurrences int `json:"occurrences,omitempty"`

	// NotifyAt is an optional HH:MM time of day used only for display
	// ordering and notification, never for date matching.
	NotifyAt string `json:"notify_at,omitempty"`

	// Anchor is the date interval counting starts from, fixed when the
	// pattern is attached (the todo's due date, or its creation date).
	// Without an anchor, Interval above 1 degrades to 1.
	Anchor *time.Time `json:"anchor,omitempty"`
}

// EffectiveInterval returns the interval with the default applied.
func (p *RecurringPattern) EffectiveInterval() int {
	if p.Interval <= 1 {
		return 1
	}
	return p.Interval
}

// HasWeekday reports whether wd is in the pattern's weekday set.
func (p *RecurringPattern) HasWeekday(wd time.Weekday) bool {
	for _, d := range p.DaysOfWeek {
		if d == wd {
			return true
		}
	}
	return false
}

// String renders the pattern for list output, e.g. "weekly on Mon,Thu" or
// "every 3 days".
func (p *RecurringPattern) String() string {
	interval := p.EffectiveInterval()
	switch p.Type {
	case PatternDaily:
		if interval > 1 {
			return fmt.Sprintf("every %d days", interval)
		}
		return "daily"
	case PatternWeekly, PatternCustom:
		var days []string
		for _, wd := range p.DaysOfWeek {
			days = append(days, wd.String()[:3])
		}
		label := string(p.Type)
		if interval > 1 {
			label = fmt.Sprintf("every %d weeks", interval)
		}
		if len(days) > 0 {
			return fmt.Sprintf("%s on %s", label, strings.Join(days, ","))
		}
		return label
	case PatternMonthly:
		if interval > 1 {
			return fmt.Sprintf("every %d months on day %d", interval, p.DayOfMonth)
		}
		return fmt.Sprintf("monthly on day %d", p.DayOfMonth)
	case PatternYearly:
		return fmt.Sprintf("yearly on %s %d", p.MonthOfYear.String()[:3], p.DayOfMonth)
	default:
		return "unknown"
	}
}
