package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/julianstephens/evertodo/internal/logger"
	"github.com/julianstephens/evertodo/internal/models"
	"github.com/julianstephens/evertodo/internal/storage"
)

// Session is the in-memory todo cache for one owner. Mutations apply to the
// cache first, then go to storage; a failed durable write restores the
// pre-mutation snapshot. At most one in-flight delta per call is assumed:
// calls serialize on the session lock, so a second toggle of the same entry
// simply overwrites the first's optimistic state.
type Session struct {
	store storage.Provider
	owner string

	mu         sync.Mutex
	todos      []models.Todo
	nextTempID int64
}

func NewSession(store storage.Provider, owner string) *Session {
	return &Session{store: store, owner: owner, nextTempID: -1}
}

// Refresh replaces the cache with the current storage contents.
func (s *Session) Refresh(ctx context.Context) error {
	todos, err := s.store.ListTodos(ctx, s.owner)
	if err != nil {
		return fmt.Errorf("refreshing session: %w", err)
	}
	s.mu.Lock()
	s.todos = todos
	s.mu.Unlock()
	return nil
}

// Todos returns a copy of the cached todos.
func (s *Session) Todos() []models.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Todo, len(s.todos))
	copy(out, s.todos)
	return out
}

// Get returns the cached todo with the given ID.
func (s *Session) Get(id string) (models.Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.todos {
		if t.ID == id {
			return t, true
		}
	}
	return models.Todo{}, false
}

// Create appends the todo optimistically under a placeholder ID, then issues
// the durable write. On success the placeholder entry is replaced by the
// stored todo; on failure the cache reverts.
func (s *Session) Create(ctx context.Context, todo models.Todo) (models.Todo, error) {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	todo.ID = strconv.FormatInt(s.nextTempID, 10)
	s.nextTempID--
	tempID := todo.ID
	s.todos = append(s.todos, todo)
	s.mu.Unlock()

	stored, err := s.store.CreateTodo(ctx, s.owner, todo)
	if err != nil {
		s.restore(snapshot)
		return models.Todo{}, fmt.Errorf("creating todo: %w", err)
	}

	s.mu.Lock()
	s.replaceLocked(tempID, stored)
	s.mu.Unlock()
	return stored, nil
}

// Update applies the change to the cache, then to storage, reverting on
// failure.
func (s *Session) Update(ctx context.Context, todo models.Todo) error {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	s.replaceLocked(todo.ID, todo)
	s.mu.Unlock()

	if err := s.store.UpdateTodo(ctx, s.owner, todo); err != nil {
		s.restore(snapshot)
		return fmt.Errorf("updating todo %s: %w", todo.ID, err)
	}
	return nil
}

// Delete removes the todo from the cache, then from storage, reverting on
// failure.
func (s *Session) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	kept := s.todos[:0:0]
	for _, t := range s.todos {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.todos = kept
	s.mu.Unlock()

	if err := s.store.DeleteTodo(ctx, s.owner, id); err != nil {
		s.restore(snapshot)
		return fmt.Errorf("deleting todo %s: %w", id, err)
	}
	return nil
}

// AutoRefresh subscribes to the store's change channel and reloads the cache
// whenever the owner's data changes. The returned function cancels the
// subscription.
func (s *Session) AutoRefresh() (func(), error) {
	return s.store.Subscribe(s.owner, func(ev storage.ChangeEvent) {
		if err := s.Refresh(context.Background()); err != nil {
			logger.Warn("session refresh after change event failed",
				"kind", ev.Kind, "error", err)
		}
	})
}

func (s *Session) snapshotLocked() []models.Todo {
	snapshot := make([]models.Todo, len(s.todos))
	copy(snapshot, s.todos)
	return snapshot
}

func (s *Session) restore(snapshot []models.Todo) {
	s.mu.Lock()
	s.todos = snapshot
	s.mu.Unlock()
}

func (s *Session) replaceLocked(id string, todo models.Todo) {
	for i, t := range s.todos {
		if t.ID == id {
			s.todos[i] = todo
			return
		}
	}
	s.todos = append(s.todos, todo)
}
