package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/todostream/todostream/libs/events"
	"github.com/todostream/todostream/services/todo-service/internal/todo"
)

var ErrNotFound = errors.New("todo not found")

type record struct {
	id          string
	title       string
	description string
	priority    events.Priority
	completed   bool
	createdAt   time.Time
	completedAt *time.Time
}

// TodoRepository keeps todos in process memory. Persistence backends are
// out of scope here; the pipeline only needs a collaborator that stores
// the new state before events are drained and published.
type TodoRepository struct {
	mu    sync.RWMutex
	todos map[string]record
}

func NewTodoRepository() *TodoRepository {
	return &TodoRepository{todos: map[string]record{}}
}

func (r *TodoRepository) Save(_ context.Context, t *todo.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var completedAt *time.Time
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		completedAt = &at
	}
	r.todos[t.ID] = record{
		id:          t.ID,
		title:       t.Title,
		description: t.Description,
		priority:    t.Priority,
		completed:   t.Completed,
		createdAt:   t.CreatedAt,
		completedAt: completedAt,
	}
	return nil
}

func (r *TodoRepository) Get(_ context.Context, id string) (*todo.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.todos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return restore(rec), nil
}

func (r *TodoRepository) List(_ context.Context) ([]*todo.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*todo.Todo, 0, len(r.todos))
	for _, rec := range r.todos {
		out = append(out, restore(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *TodoRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.todos[id]; !ok {
		return ErrNotFound
	}
	delete(r.todos, id)
	return nil
}

func restore(rec record) *todo.Todo {
	var completedAt *time.Time
	if rec.completedAt != nil {
		at := *rec.completedAt
		completedAt = &at
	}
	return todo.Restore(rec.id, rec.title, rec.description, rec.priority, rec.completed, rec.createdAt, completedAt)
}
