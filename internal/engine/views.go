package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/evertodo/internal/constants"
	"github.com/julianstephens/evertodo/internal/models"
	"github.com/julianstephens/evertodo/internal/recur"
)

// Filter selects entries by effective completion state.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// DateGroup is one date bucket of a grouped view.
type DateGroup struct {
	Date    time.Time
	Entries []models.VirtualTodo
}

// Today returns today's occurrences, filtered by completion state and an
// optional free-text search over the todo text.
func (e *Engine) Today(ctx context.Context, filter Filter, search string) ([]models.VirtualTodo, error) {
	today := recur.DateOnly(e.now())
	todos, ledger, err := e.snapshot(ctx, today, today)
	if err != nil {
		return nil, err
	}
	return TodayView(todos, ledger, today, filter, search), nil
}

// Upcoming returns occurrences from today through today plus the configured
// upcoming window, grouped by date ascending.
func (e *Engine) Upcoming(ctx context.Context) ([]DateGroup, error) {
	today := recur.DateOnly(e.now())
	windowDays := e.upcomingDays
	todos, ledger, err := e.snapshot(ctx, today, today.AddDate(0, 0, windowDays))
	if err != nil {
		return nil, err
	}
	return UpcomingView(todos, ledger, today, windowDays), nil
}

// Overdue returns past-due entries grouped by date, most recent first.
func (e *Engine) Overdue(ctx context.Context, filter Filter) ([]DateGroup, error) {
	today := recur.DateOnly(e.now())
	lookbackDays := e.overdueDays
	todos, ledger, err := e.snapshot(ctx, today.AddDate(0, 0, -lookbackDays), today)
	if err != nil {
		return nil, err
	}
	return OverdueView(todos, ledger, today, lookbackDays, filter), nil
}

func (e *Engine) snapshot(ctx context.Context, from, to time.Time) ([]models.Todo, CompletionIndex, error) {
	todos, err := e.store.ListTodos(ctx, e.owner)
	if err != nil {
		return nil, nil, fmt.Errorf("listing todos: %w", err)
	}
	ledger, err := e.Ledger().IndexRange(ctx, from, to)
	if err != nil {
		return nil, nil, err
	}
	return todos, ledger, nil
}

// TodayView materializes a single-day window over today and applies the
// completion and text filters.
func TodayView(todos []models.Todo, ledger CompletionIndex, today time.Time, filter Filter, search string) []models.VirtualTodo {
	entries := MaterializeAll(todos, today, 0, ledger)
	entries = applyFilter(entries, filter)
	return applySearch(entries, search)
}

// UpcomingView materializes [today, today+windowDays] and groups the result
// into ascending date buckets. Within a bucket, entries sort by effective
// time of day descending; entries without any time of day sort last.
func UpcomingView(todos []models.Todo, ledger CompletionIndex, today time.Time, windowDays int) []DateGroup {
	entries := MaterializeAll(todos, today, windowDays, ledger)

	groups := groupByDate(entries)
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Date.Before(groups[j].Date)
	})
	for _, g := range groups {
		sortByEffectiveTime(g.Entries)
	}
	return groups
}

// OverdueView collects past-due entries: non-recurring todos due strictly
// before today regardless of completion, and recurring occurrences from the
// trailing lookback window excluding today. Completed occurrences stay
// visible under FilterAll so a missed-then-done date is distinguishable;
// FilterActive drops them. Groups sort by date descending, and within a
// date active entries come before completed ones.
func OverdueView(todos []models.Todo, ledger CompletionIndex, today time.Time, lookbackDays int, filter Filter) []DateGroup {
	b := newOccurrenceSet()
	windowStart := today.AddDate(0, 0, -lookbackDays)

	for _, todo := range todos {
		if !todo.IsRecurring() {
			if todo.DueDate == nil {
				continue
			}
			due := recur.DateOnly(*todo.DueDate)
			if !due.Before(today) {
				continue
			}
			b.add(models.VirtualTodo{
				Todo:        todo,
				VirtualDate: due,
				VirtualKey:  todo.ID,
			})
			continue
		}

		for d := windowStart; d.Before(today); d = d.AddDate(0, 0, 1) {
			if recur.Matches(todo.RecurringPattern, d) {
				b.add(virtualOccurrence(todo, d, ledger))
			}
		}
	}

	entries := applyFilter(b.entries, filter)
	groups := groupByDate(entries)
	sort.Slice(groups, func(i, j int) bool {
		return groups[j].Date.Before(groups[i].Date)
	})
	for _, g := range groups {
		sort.SliceStable(g.Entries, func(i, j int) bool {
			return !g.Entries[i].Done() && g.Entries[j].Done()
		})
	}
	return groups
}

func applyFilter(entries []models.VirtualTodo, filter Filter) []models.VirtualTodo {
	if filter == FilterAll || filter == "" {
		return entries
	}
	out := make([]models.VirtualTodo, 0, len(entries))
	for _, v := range entries {
		if (filter == FilterCompleted) == v.Done() {
			out = append(out, v)
		}
	}
	return out
}

func applySearch(entries []models.VirtualTodo, search string) []models.VirtualTodo {
	query := strings.ToLower(strings.TrimSpace(search))
	if query == "" {
		return entries
	}
	out := make([]models.VirtualTodo, 0, len(entries))
	for _, v := range entries {
		if strings.Contains(strings.ToLower(v.Text), query) {
			out = append(out, v)
		}
	}
	return out
}

func groupByDate(entries []models.VirtualTodo) []DateGroup {
	byDate := make(map[time.Time]*DateGroup)
	var groups []DateGroup
	order := make([]time.Time, 0)
	for _, v := range entries {
		date := recur.DateOnly(v.VirtualDate)
		g, ok := byDate[date]
		if !ok {
			order = append(order, date)
			byDate[date] = &DateGroup{Date: date}
			g = byDate[date]
		}
		g.Entries = append(g.Entries, v)
	}
	for _, date := range order {
		groups = append(groups, *byDate[date])
	}
	return groups
}

// sortByEffectiveTime orders a bucket's entries by their time of day,
// latest first. The time of day comes from notifyAt, then the reminder
// clock, then the due date clock when nonzero; entries with none sort last.
func sortByEffectiveTime(entries []models.VirtualTodo) {
	sort.SliceStable(entries, func(i, j int) bool {
		return effectiveMinutes(entries[i]) > effectiveMinutes(entries[j])
	})
}

func effectiveMinutes(v models.VirtualTodo) int {
	if v.RecurringPattern != nil && v.RecurringPattern.NotifyAt != "" {
		if t, err := time.Parse(constants.TimeFormat, v.RecurringPattern.NotifyAt); err == nil {
			return t.Hour()*60 + t.Minute()
		}
	}
	if v.ReminderAt != nil {
		return v.ReminderAt.Hour()*60 + v.ReminderAt.Minute()
	}
	if v.DueDate != nil {
		if m := v.DueDate.Hour()*60 + v.DueDate.Minute(); m > 0 {
			return m
		}
	}
	return -1
}
