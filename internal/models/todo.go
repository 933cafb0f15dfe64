package models

import (
	"fmt"
	"strconv"
	"time"
)

// Todo is a single task. For a recurring todo, DueDate is the next pending
// occurrence of the series, not a fixed deadline, and Completed reflects the
// last known state of the series rather than any individual occurrence.
type Todo struct {
	// ID is opaque to the engine: the local backend assigns UUIDs, the
	// remote backend assigns decimal strings of positive integers. Negative
	// decimal strings mark unconfirmed optimistic entries.
	ID                   string            `json:"id" db:"id"`
	OwnerID              string            `json:"owner_id" db:"owner_id"`
	Text                 string            `json:"text" db:"text"`
	Completed            bool              `json:"completed" db:"completed"`
	FolderID             *string           `json:"folder_id,omitempty" db:"folder_id"`
	DueDate              *time.Time        `json:"due_date,omitempty" db:"due_date"`
	ReminderAt           *time.Time        `json:"reminder_at,omitempty" db:"reminder_at"`
	RecurringPattern     *RecurringPattern `json:"recurring_pattern,omitempty" db:"-"`
	CompletedOccurrences int               `json:"completed_occurrences" db:"completed_occurrences"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" db:"updated_at"`
}

// IsRecurring reports whether the todo carries a recurring pattern.
func (t Todo) IsRecurring() bool {
	return t.RecurringPattern != nil
}

// IsOptimistic reports whether the todo is an unconfirmed optimistic entry
// minted by the in-memory session cache (negative integer ID).
func (t Todo) IsOptimistic() bool {
	n, err := strconv.ParseInt(t.ID, 10, 64)
	return err == nil && n < 0
}

// CompletionRecord is one entry in the completion ledger: the completion fact
// for a single occurrence of a todo. At most one record exists per
// (TodoID, ScheduledDate) pair; writing again with the same key overwrites.
//
// A nil CompletedAt means the occurrence was explicitly marked incomplete.
// The absence of a record altogether means the state is unknown, which all
// callers treat as incomplete but which is distinguishable from explicit
// false.
type CompletionRecord struct {
	ID            string     `json:"id" db:"id"`
	OwnerID       string     `json:"owner_id" db:"owner_id"`
	TodoID        string     `json:"todo_id" db:"todo_id"`
	ScheduledDate time.Time  `json:"scheduled_date" db:"scheduled_date"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// VirtualTodo is a read-only projection of one occurrence of a todo. It is
// constructed fresh on every read, never persisted, and never mutated.
type VirtualTodo struct {
	Todo

	// IsRecurringInstance is true for pattern-generated entries and false
	// for non-recurring todos passed through unmodified.
	IsRecurringInstance bool

	// VirtualDate is the calendar date of this occurrence (local midnight).
	VirtualDate time.Time

	// VirtualKey uniquely identifies the occurrence: "{todoID}-{date}" for
	// recurring instances, the bare todo ID for passthrough entries.
	VirtualKey string

	// OccurrenceCompleted is the ledger state joined in for this occurrence.
	// nil means no ledger entry exists (unknown, treated as incomplete).
	OccurrenceCompleted *bool
}

// Done reports the effective completion state of the entry: the ledger state
// for recurring instances, the todo's own flag otherwise.
func (v VirtualTodo) Done() bool {
	if v.IsRecurringInstance {
		return v.OccurrenceCompleted != nil && *v.OccurrenceCompleted
	}
	return v.Completed
}

// VirtualKeyFor builds the de-duplication key for a todo occurrence on the
// given calendar date.
func VirtualKeyFor(todoID string, date time.Time) string {
	return fmt.Sprintf("%s-%s", todoID, date.Format("2006-01-02"))
}
