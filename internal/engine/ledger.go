// Package engine implements the recurring schedule engine: occurrence
// materialization, completion bookkeeping, toggle resolution, and the view
// projections built on top of them. It is written against storage.Provider
// and holds no durable state of its own.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/evertodo/internal/models"
	"github.com/julianstephens/evertodo/internal/recur"
	"github.com/julianstephens/evertodo/internal/storage"
)

// CompletionIndex is an in-memory view of a date range of the completion
// ledger, keyed by occurrence key. Views hydrate one index per read pass
// instead of issuing a lookup per occurrence.
type CompletionIndex map[string]models.CompletionRecord

// Lookup returns the recorded completion state for the occurrence, or nil
// when no ledger entry exists. A non-nil false means the occurrence was
// explicitly marked incomplete, which callers may render differently from
// never-touched.
func (ix CompletionIndex) Lookup(todoID string, date time.Time) *bool {
	rec, ok := ix[models.VirtualKeyFor(todoID, recur.DateOnly(date))]
	if !ok {
		return nil
	}
	completed := rec.CompletedAt != nil
	return &completed
}

// Ledger is the completion ledger facade for one owner.
type Ledger struct {
	store storage.Provider
	owner string
}

func NewLedger(store storage.Provider, owner string) *Ledger {
	return &Ledger{store: store, owner: owner}
}

// Record upserts the completion fact for one occurrence. A nil completedAt
// marks the occurrence explicitly incomplete. Writing the same key again
// overwrites; records are never deleted.
func (l *Ledger) Record(ctx context.Context, todoID string, scheduledDate time.Time, completedAt *time.Time) error {
	rec := models.CompletionRecord{
		OwnerID:       l.owner,
		TodoID:        todoID,
		ScheduledDate: recur.DateOnly(scheduledDate),
		CompletedAt:   completedAt,
	}
	if err := l.store.UpsertCompletionRecord(ctx, l.owner, rec); err != nil {
		return fmt.Errorf("recording completion for todo %s on %s: %w",
			todoID, recur.FormatDate(scheduledDate), err)
	}
	return nil
}

// IsCompleted returns the ledger state for one occurrence: non-nil true or
// false when a record exists, nil when none does. Prefer IndexRange when
// checking many occurrences.
func (l *Ledger) IsCompleted(ctx context.Context, todoID string, scheduledDate time.Time) (*bool, error) {
	day := recur.DateOnly(scheduledDate)
	ix, err := l.IndexRange(ctx, day, day)
	if err != nil {
		return nil, err
	}
	return ix.Lookup(todoID, day), nil
}

// IndexRange bulk-loads the ledger entries for [from, to] into an index.
func (l *Ledger) IndexRange(ctx context.Context, from, to time.Time) (CompletionIndex, error) {
	records, err := l.store.ListCompletionRecords(ctx, l.owner, recur.DateOnly(from), recur.DateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("loading completion records: %w", err)
	}
	ix := make(CompletionIndex, len(records))
	for _, rec := range records {
		ix[models.VirtualKeyFor(rec.TodoID, rec.ScheduledDate)] = rec
	}
	return ix, nil
}
