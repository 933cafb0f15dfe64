package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/julianstephens/evertodo/internal/models"
	"github.com/julianstephens/evertodo/internal/recur"
	"github.com/julianstephens/evertodo/internal/storage"
)

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory storage.Provider for engine tests, with
// per-method failure injection.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	todos   map[string]models.Todo
	records map[string]models.CompletionRecord

	failCreate  bool
	failUpdate  bool
	failDelete  bool
	failAdvance bool
	failUpsert  bool

	subscribers []func(storage.ChangeEvent)
}

var _ storage.Provider = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		todos:   make(map[string]models.Todo),
		records: make(map[string]models.CompletionRecord),
	}
}

func (f *fakeStore) Init(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) CreateTodo(ctx context.Context, owner string, todo models.Todo) (models.Todo, error) {
	if f.failCreate {
		return models.Todo{}, errInjected
	}
	f.mu.Lock()
	f.nextID++
	todo.ID = strconv.FormatInt(f.nextID, 10)
	todo.OwnerID = owner
	f.todos[todo.ID] = todo
	f.mu.Unlock()
	f.emit(storage.ChangeEvent{Owner: owner, Kind: storage.ChangeTodos})
	return todo, nil
}

func (f *fakeStore) UpdateTodo(ctx context.Context, owner string, todo models.Todo) error {
	if f.failUpdate {
		return errInjected
	}
	f.mu.Lock()
	if _, ok := f.todos[todo.ID]; !ok {
		f.mu.Unlock()
		return storage.ErrNotFound
	}
	f.todos[todo.ID] = todo
	f.mu.Unlock()
	f.emit(storage.ChangeEvent{Owner: owner, Kind: storage.ChangeTodos})
	return nil
}

func (f *fakeStore) DeleteTodo(ctx context.Context, owner, id string) error {
	if f.failDelete {
		return errInjected
	}
	f.mu.Lock()
	if _, ok := f.todos[id]; !ok {
		f.mu.Unlock()
		return storage.ErrNotFound
	}
	delete(f.todos, id)
	f.mu.Unlock()
	f.emit(storage.ChangeEvent{Owner: owner, Kind: storage.ChangeTodos})
	return nil
}

func (f *fakeStore) GetTodo(ctx context.Context, owner, id string) (models.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	todo, ok := f.todos[id]
	if !ok {
		return models.Todo{}, storage.ErrNotFound
	}
	return todo, nil
}

func (f *fakeStore) ListTodos(ctx context.Context, owner string) ([]models.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Todo
	for i := int64(1); i <= f.nextID; i++ {
		if todo, ok := f.todos[strconv.FormatInt(i, 10)]; ok && todo.OwnerID == owner {
			out = append(out, todo)
		}
	}
	return out, nil
}

func (f *fakeStore) AdvanceTodo(ctx context.Context, owner string, completed models.Todo, successor *models.Todo) (*models.Todo, error) {
	if f.failAdvance {
		return nil, errInjected
	}
	f.mu.Lock()
	if _, ok := f.todos[completed.ID]; !ok {
		f.mu.Unlock()
		return nil, storage.ErrNotFound
	}
	f.todos[completed.ID] = completed

	var stored *models.Todo
	if successor != nil {
		next := *successor
		f.nextID++
		next.ID = strconv.FormatInt(f.nextID, 10)
		next.OwnerID = owner
		f.todos[next.ID] = next
		stored = &next
	}
	f.mu.Unlock()
	f.emit(storage.ChangeEvent{Owner: owner, Kind: storage.ChangeTodos})
	return stored, nil
}

func (f *fakeStore) UpsertCompletionRecord(ctx context.Context, owner string, rec models.CompletionRecord) error {
	if f.failUpsert {
		return errInjected
	}
	f.mu.Lock()
	rec.OwnerID = owner
	key := fmt.Sprintf("%s|%s", rec.TodoID, recur.FormatDate(rec.ScheduledDate))
	f.records[key] = rec
	f.mu.Unlock()
	f.emit(storage.ChangeEvent{Owner: owner, Kind: storage.ChangeCompletions})
	return nil
}

func (f *fakeStore) ListCompletionRecords(ctx context.Context, owner string, from, to time.Time) ([]models.CompletionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CompletionRecord
	for _, rec := range f.records {
		if rec.OwnerID != owner {
			continue
		}
		if rec.ScheduledDate.Before(from) || rec.ScheduledDate.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) Subscribe(owner string, fn func(storage.ChangeEvent)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, func(ev storage.ChangeEvent) {
		if ev.Owner == owner {
			fn(ev)
		}
	})
	return func() {}, nil
}

// emit runs outside f.mu so subscribers may call back into the store.
func (f *fakeStore) emit(ev storage.ChangeEvent) {
	f.mu.Lock()
	subs := make([]func(storage.ChangeEvent), len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (f *fakeStore) todoCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.todos)
}

func (f *fakeStore) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}
