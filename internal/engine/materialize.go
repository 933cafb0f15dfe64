package engine

import (
	"time"

	"github.com/julianstephens/evertodo/internal/models"
	"github.com/julianstephens/evertodo/internal/recur"
)

// Materialize expands a todo into its virtual occurrence entries over
// [windowStart, windowStart+windowDays]; both endpoints are included, so
// windowDays=7 covers eight calendar dates.
//
// Recurring todos are always represented as virtual occurrences, even on
// their literal due date, so per-occurrence completion tracking stays
// uniform. An explicit due date inside the window that the pattern does not
// match is materialized as an extra occurrence. Non-recurring todos with a
// due date inside the window pass through unmodified.
func Materialize(todo models.Todo, windowStart time.Time, windowDays int, ledger CompletionIndex) []models.VirtualTodo {
	b := newOccurrenceSet()
	materializeInto(b, todo, windowStart, windowDays, ledger)
	return b.entries
}

// MaterializeAll expands every todo over the same window; de-duplication by
// occurrence key spans the whole batch.
func MaterializeAll(todos []models.Todo, windowStart time.Time, windowDays int, ledger CompletionIndex) []models.VirtualTodo {
	b := newOccurrenceSet()
	for _, todo := range todos {
		materializeInto(b, todo, windowStart, windowDays, ledger)
	}
	return b.entries
}

func materializeInto(b *occurrenceSet, todo models.Todo, windowStart time.Time, windowDays int, ledger CompletionIndex) {
	start := recur.DateOnly(windowStart)
	end := start.AddDate(0, 0, windowDays)

	if !todo.IsRecurring() {
		if todo.DueDate == nil {
			return
		}
		due := recur.DateOnly(*todo.DueDate)
		if due.Before(start) || due.After(end) {
			return
		}
		b.add(models.VirtualTodo{
			Todo:        todo,
			VirtualDate: due,
			VirtualKey:  todo.ID,
		})
		return
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if recur.Matches(todo.RecurringPattern, d) {
			b.add(virtualOccurrence(todo, d, ledger))
		}
	}

	// An explicit due date the pattern does not generate still gets an
	// occurrence; the set drops it if a pattern match already covered it.
	if todo.DueDate != nil {
		due := recur.DateOnly(*todo.DueDate)
		if !due.Before(start) && !due.After(end) {
			b.add(virtualOccurrence(todo, due, ledger))
		}
	}
}

func virtualOccurrence(todo models.Todo, date time.Time, ledger CompletionIndex) models.VirtualTodo {
	return models.VirtualTodo{
		Todo:                todo,
		IsRecurringInstance: true,
		VirtualDate:         date,
		VirtualKey:          models.VirtualKeyFor(todo.ID, date),
		OccurrenceCompleted: ledger.Lookup(todo.ID, date),
	}
}

// occurrenceSet accumulates virtual entries, dropping duplicates by key so
// materializing the same occurrence twice is a no-op.
type occurrenceSet struct {
	seen    map[string]struct{}
	entries []models.VirtualTodo
}

func newOccurrenceSet() *occurrenceSet {
	return &occurrenceSet{seen: make(map[string]struct{})}
}

func (b *occurrenceSet) add(v models.VirtualTodo) {
	if _, dup := b.seen[v.VirtualKey]; dup {
		return
	}
	b.seen[v.VirtualKey] = struct{}{}
	b.entries = append(b.entries, v)
}
