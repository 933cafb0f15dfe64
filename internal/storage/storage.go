// Package storage provides the persistence backends for todos and the
// completion ledger. Two implementations exist: SQLiteStore for guest/local
// use and PostgresStore for authenticated/remote use. The backend is chosen
// once at construction; callers hold a Provider and never branch on which
// one they got.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/julianstephens/evertodo/internal/models"
)

// ErrNotFound is returned when a requested todo does not exist.
var ErrNotFound = errors.New("not found")

// ChangeKind identifies which table a change event refers to.
type ChangeKind string

const (
	ChangeTodos       ChangeKind = "todos"
	ChangeCompletions ChangeKind = "completions"
)

// ChangeEvent signals that something changed for an owner. It carries no
// payload beyond the scope; the expected reaction is to re-run the read path.
type ChangeEvent struct {
	Owner string
	Kind  ChangeKind
}

// Provider is the persistence interface consumed by the schedule engine.
type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error

	// Todos
	ListTodos(ctx context.Context, owner string) ([]models.Todo, error)
	GetTodo(ctx context.Context, owner, id string) (models.Todo, error)
	CreateTodo(ctx context.Context, owner string, todo models.Todo) (models.Todo, error)
	UpdateTodo(ctx context.Context, owner string, todo models.Todo) error
	DeleteTodo(ctx context.Context, owner, id string) error

	// AdvanceTodo archives the completed occurrence and inserts its
	// successor in a single transaction, so no half-advanced state is ever
	// observable. A nil successor archives only (occurrence cap reached).
	// The returned todo is the stored successor with its assigned ID, or
	// nil when none was created.
	AdvanceTodo(ctx context.Context, owner string, completed models.Todo, successor *models.Todo) (*models.Todo, error)

	// Completion ledger
	UpsertCompletionRecord(ctx context.Context, owner string, rec models.CompletionRecord) error
	ListCompletionRecords(ctx context.Context, owner string, from, to time.Time) ([]models.CompletionRecord, error)

	// Subscribe registers fn for change events scoped to owner. The
	// returned function cancels the subscription. Delivery is eventual and
	// carries no ordering guarantee across devices.
	Subscribe(owner string, fn func(ChangeEvent)) (func(), error)
}

// observerSet is a subscription registry owned by a single store instance.
// It replaces the module-global listener registries of earlier designs so
// that independent stores can coexist in one process.
type observerSet struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(ChangeEvent)
}

func newObserverSet() *observerSet {
	return &observerSet{fns: make(map[int]func(ChangeEvent))}
}

func (o *observerSet) add(owner string, fn func(ChangeEvent)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	o.fns[id] = func(ev ChangeEvent) {
		if ev.Owner == owner {
			fn(ev)
		}
	}
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

func (o *observerSet) emit(ev ChangeEvent) {
	o.mu.Lock()
	fns := make([]func(ChangeEvent), 0, len(o.fns))
	for _, fn := range o.fns {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
