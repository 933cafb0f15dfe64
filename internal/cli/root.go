// Package cli holds the command implementations. Each command is a kong
// struct with a Run method taking the shared Context.
package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/evertodo/internal/config"
	"github.com/julianstephens/evertodo/internal/constants"
	"github.com/julianstephens/evertodo/internal/engine"
	"github.com/julianstephens/evertodo/internal/models"
	"github.com/julianstephens/evertodo/internal/recur"
	"github.com/julianstephens/evertodo/internal/storage"
)

type Context struct {
	Store   storage.Provider
	Session *engine.Session
	Engine  *engine.Engine
	Config  *config.Config
}

// weekdayNames maps full and three-letter lowercase weekday names to their
// values, e.g. "monday" and "mon".
var weekdayNames = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, 14)
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		m[name] = d
		m[name[:3]] = d
	}
	return m
}()

// ParseWeekdays parses a comma-separated weekday list. Each element is a
// name, case-insensitive, or a digit with Sunday as 0.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var weekdays []time.Weekday
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if wd, ok := weekdayNames[name]; ok {
			weekdays = append(weekdays, wd)
			continue
		}
		num, err := strconv.Atoi(name)
		if err != nil || num < int(time.Sunday) || num > int(time.Saturday) {
			return nil, fmt.Errorf("invalid weekday: %s", name)
		}
		weekdays = append(weekdays, time.Weekday(num))
	}
	return weekdays, nil
}

// PatternFlags are the recurrence flags shared by add and schedule.
type PatternFlags struct {
	Repeat   string `short:"r" help:"Recurrence type (daily|weekly|monthly|yearly|custom)."`
	Interval int    `short:"i" help:"Repeat every N units (anchored to the due date)." default:"1"`
	Weekdays string `short:"w" help:"Comma-separated weekdays for weekly/custom recurrence."`
	MonthDay int    `help:"Day of month (1-31) for monthly/yearly recurrence."`
	Month    int    `help:"Month (1-12) for yearly recurrence."`
	Until    string `help:"Last date an occurrence may fall on (YYYY-MM-DD)."`
	Count    int    `help:"Stop the series after this many completions."`
	NotifyAt string `help:"Time of day (HH:MM) used for ordering and notification."`
}

// BuildPattern assembles the recurring pattern from the flags, anchoring
// interval counting to the given date. A blank --repeat yields nil.
func (f *PatternFlags) BuildPattern(anchor *time.Time) (*models.RecurringPattern, error) {
	if f.Repeat == "" {
		return nil, nil
	}

	pattern := &models.RecurringPattern{
		Type:        models.PatternType(f.Repeat),
		Interval:    f.Interval,
		DayOfMonth:  f.MonthDay,
		MonthOfYear: time.Month(f.Month),
		Occurrences: f.Count,
		NotifyAt:    f.NotifyAt,
	}
	if f.Weekdays != "" {
		wds, err := ParseWeekdays(f.Weekdays)
		if err != nil {
			return nil, err
		}
		pattern.DaysOfWeek = wds
	}
	if f.Until != "" {
		end, err := recur.ParseDate(f.Until)
		if err != nil {
			return nil, fmt.Errorf("invalid --until date: %w", err)
		}
		pattern.EndDate = &end
	}
	if anchor != nil {
		a := recur.DateOnly(*anchor)
		pattern.Anchor = &a
	}
	return pattern, nil
}

// FormatEntry renders one occurrence for list output.
func FormatEntry(v models.VirtualTodo) string {
	var b strings.Builder
	if v.Done() {
		b.WriteString("[x] ")
	} else {
		b.WriteString("[ ] ")
	}
	b.WriteString(v.Text)
	if v.IsRecurringInstance && v.RecurringPattern != nil {
		fmt.Fprintf(&b, " (%s)", v.RecurringPattern.String())
	}
	if v.RecurringPattern != nil && v.RecurringPattern.NotifyAt != "" {
		fmt.Fprintf(&b, " @ %s", v.RecurringPattern.NotifyAt)
	} else if v.ReminderAt != nil {
		fmt.Fprintf(&b, " @ %s", v.ReminderAt.Format(constants.TimeFormat))
	}
	fmt.Fprintf(&b, "  #%s", v.ID)
	return b.String()
}

// FormatTodo renders one stored todo for list output.
func FormatTodo(t models.Todo) string {
	var b strings.Builder
	if t.Completed {
		b.WriteString("[x] ")
	} else {
		b.WriteString("[ ] ")
	}
	b.WriteString(t.Text)
	if t.IsRecurring() {
		fmt.Fprintf(&b, " (%s)", t.RecurringPattern.String())
	}
	if t.DueDate != nil {
		fmt.Fprintf(&b, " due %s", recur.FormatDate(*t.DueDate))
	}
	fmt.Fprintf(&b, "  #%s", t.ID)
	return b.String()
}

func parseFilter(s string) (engine.Filter, error) {
	switch engine.Filter(s) {
	case engine.FilterAll, engine.FilterActive, engine.FilterCompleted:
		return engine.Filter(s), nil
	case "":
		return engine.FilterAll, nil
	default:
		return "", fmt.Errorf("invalid filter %q (want all|active|completed)", s)
	}
}

func groupHeading(date, today time.Time) string {
	switch recur.DaysBetween(today, date) {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	case -1:
		return "Yesterday"
	}
	return date.Format("Mon Jan 2")
}
