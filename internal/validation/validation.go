// Package validation rejects malformed todos and recurring patterns before
// they reach the schedule engine. Errors are returned synchronously to the
// caller; values are never silently coerced.
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/evertodo/internal/constants"
	"github.com/julianstephens/evertodo/internal/models"
)

// Pattern checks a recurring pattern for structural validity.
func Pattern(p *models.RecurringPattern) error {
	if p == nil {
		return nil
	}

	switch p.Type {
	case models.PatternDaily, models.PatternWeekly, models.PatternMonthly,
		models.PatternYearly, models.PatternCustom:
	default:
		return fmt.Errorf("unknown pattern type %q", p.Type)
	}

	// Interval 0 is allowed: the schedule engine treats it as the type's
	// natural cadence, the same as 1.
	if p.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %d", p.Interval)
	}
	if p.Occurrences < 0 {
		return fmt.Errorf("occurrences cap must not be negative, got %d", p.Occurrences)
	}

	switch p.Type {
	case models.PatternWeekly, models.PatternCustom:
		if len(p.DaysOfWeek) == 0 {
			return fmt.Errorf("%s pattern requires at least one weekday", p.Type)
		}
		for _, wd := range p.DaysOfWeek {
			if wd < time.Sunday || wd > time.Saturday {
				return fmt.Errorf("weekday out of range: %d", wd)
			}
		}
	case models.PatternMonthly:
		if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
			return fmt.Errorf("day of month out of range: %d", p.DayOfMonth)
		}
	case models.PatternYearly:
		if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
			return fmt.Errorf("day of month out of range: %d", p.DayOfMonth)
		}
		if p.MonthOfYear < time.January || p.MonthOfYear > time.December {
			return fmt.Errorf("month of year out of range: %d", p.MonthOfYear)
		}
	}

	if p.NotifyAt != "" && !isValidTimeFormat(p.NotifyAt) {
		return fmt.Errorf("notify_at must be HH:MM, got %q", p.NotifyAt)
	}

	return nil
}

// Todo checks a todo for validity, including its pattern if present.
func Todo(t models.Todo) error {
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("todo text must not be empty")
	}
	return Pattern(t.RecurringPattern)
}

func isValidTimeFormat(timeStr string) bool {
	_, err := time.Parse(constants.TimeFormat, timeStr)
	return err == nil
}
