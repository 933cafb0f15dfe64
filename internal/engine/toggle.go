package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/evertodo/internal/constants"
	"github.com/julianstephens/evertodo/internal/logger"
	"github.com/julianstephens/evertodo/internal/models"
	"github.com/julianstephens/evertodo/internal/recur"
	"github.com/julianstephens/evertodo/internal/storage"
)

// ActionKind tags the outcome of toggle classification.
type ActionKind string

const (
	// DirectWrite flips the completed flag on a non-recurring todo row.
	DirectWrite ActionKind = "direct-write"

	// AdvanceSeries completes the current pending occurrence of a
	// recurring todo and creates its successor.
	AdvanceSeries ActionKind = "advance-series"

	// RecordHistory writes a ledger entry for a non-current occurrence
	// without touching the todo row.
	RecordHistory ActionKind = "record-history"

	// NoOp covers toggles with no defined effect, such as unchecking the
	// current occurrence of a recurring todo (there is no inverse of
	// advance-series).
	NoOp ActionKind = "no-op"
)

// Action is a classified toggle, ready for dispatch.
type Action struct {
	Kind ActionKind

	// OccurrenceDate is the calendar date the action applies to. Set for
	// RecordHistory always; for AdvanceSeries it is zero when neither a
	// virtual date nor a due date pinned the occurrence, and dispatch
	// falls back to today.
	OccurrenceDate time.Time
}

// Classify decides what a toggle request means. It is a pure function of its
// inputs; dispatch happens separately in Engine.Toggle.
//
// A nil virtualDate targets the todo itself. For a recurring todo that is the
// current pending occurrence; so is a virtualDate landing on the todo's due
// date. A recurring todo without a due date has no current occurrence, so
// any dated toggle falls through to history recording.
func Classify(todo models.Todo, desired bool, virtualDate *time.Time) Action {
	if !todo.IsRecurring() {
		return Action{Kind: DirectWrite}
	}

	current := virtualDate == nil ||
		(todo.DueDate != nil && recur.SameDay(*virtualDate, *todo.DueDate))
	if current {
		if !desired {
			return Action{Kind: NoOp}
		}
		return Action{Kind: AdvanceSeries, OccurrenceDate: currentOccurrenceDate(todo, virtualDate)}
	}

	return Action{Kind: RecordHistory, OccurrenceDate: recur.DateOnly(*virtualDate)}
}

func currentOccurrenceDate(todo models.Todo, virtualDate *time.Time) time.Time {
	switch {
	case virtualDate != nil:
		return recur.DateOnly(*virtualDate)
	case todo.DueDate != nil:
		return recur.DateOnly(*todo.DueDate)
	default:
		return time.Time{}
	}
}

// Engine executes toggle decisions and builds view projections for one owner
// against a single storage backend chosen at construction.
type Engine struct {
	store storage.Provider
	owner string

	upcomingDays int
	overdueDays  int

	// now is swapped out in tests.
	now func() time.Time
}

func New(store storage.Provider, owner string) *Engine {
	return &Engine{
		store:        store,
		owner:        owner,
		upcomingDays: constants.DefaultUpcomingDays,
		overdueDays:  constants.DefaultOverdueDays,
		now:          time.Now,
	}
}

// SetWindows overrides the Upcoming and Overdue window sizes, in days.
// Non-positive values keep the defaults.
func (e *Engine) SetWindows(upcomingDays, overdueDays int) {
	if upcomingDays > 0 {
		e.upcomingDays = upcomingDays
	}
	if overdueDays > 0 {
		e.overdueDays = overdueDays
	}
}

// Ledger returns the completion ledger facade bound to this engine's owner.
func (e *Engine) Ledger() *Ledger {
	return NewLedger(e.store, e.owner)
}

// Toggle applies a completion toggle to a todo or one of its occurrences.
// The returned todo is the successor created by an advance, or nil when the
// action did not create one.
func (e *Engine) Toggle(ctx context.Context, todo models.Todo, desired bool, virtualDate *time.Time) (*models.Todo, error) {
	action := Classify(todo, desired, virtualDate)
	logger.Debug("toggle classified", "todo", todo.ID, "kind", action.Kind, "desired", desired)

	switch action.Kind {
	case DirectWrite:
		todo.Completed = desired
		if err := e.store.UpdateTodo(ctx, e.owner, todo); err != nil {
			return nil, fmt.Errorf("toggling todo %s: %w", todo.ID, err)
		}
		return nil, nil

	case AdvanceSeries:
		occurrenceDate := action.OccurrenceDate
		if occurrenceDate.IsZero() {
			occurrenceDate = recur.DateOnly(e.now())
		}
		return e.advance(ctx, todo, occurrenceDate)

	case RecordHistory:
		var completedAt *time.Time
		if desired {
			now := e.now()
			completedAt = &now
		}
		if err := e.Ledger().Record(ctx, todo.ID, action.OccurrenceDate, completedAt); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, nil
	}
}

// advance archives the current occurrence and creates the successor in one
// storage transaction. The successor's due date is the next pattern match
// strictly after the completed occurrence; end date and occurrence caps stop
// the series instead.
func (e *Engine) advance(ctx context.Context, todo models.Todo, occurrenceDate time.Time) (*models.Todo, error) {
	pattern := todo.RecurringPattern
	count := todo.CompletedOccurrences + 1

	archived := todo
	archived.Completed = true
	archived.CompletedOccurrences = count

	var successor *models.Todo
	capReached := pattern.Occurrences > 0 && count >= pattern.Occurrences
	if !capReached {
		if nextDate, ok := recur.NextOccurrence(pattern, occurrenceDate); ok {
			nextDue := withClockOf(nextDate, todo.DueDate)
			next := todo
			next.ID = ""
			next.Completed = false
			next.DueDate = &nextDue
			next.CompletedOccurrences = count
			successor = &next
		}
	}

	stored, err := e.store.AdvanceTodo(ctx, e.owner, archived, successor)
	if err != nil {
		return nil, fmt.Errorf("advancing todo %s: %w", todo.ID, err)
	}
	if stored == nil {
		logger.Info("recurring series ended", "todo", todo.ID, "occurrences", count)
	}
	return stored, nil
}

// withClockOf places the original due date's time of day onto the new
// occurrence date so display ordering survives the advance.
func withClockOf(date time.Time, prev *time.Time) time.Time {
	if prev == nil {
		return date
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		prev.Hour(), prev.Minute(), prev.Second(), 0, time.Local)
}
