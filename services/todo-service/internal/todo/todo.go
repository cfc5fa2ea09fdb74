package todo

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/todostream/todostream/libs/events"
)

var ErrEmptyTitle = errors.New("title cannot be empty")

// Todo records one domain event per mutation. Pending events are drained
// by the caller after the new state has been persisted, and are never
// re-recorded afterwards.
type Todo struct {
	ID          string
	Title       string
	Description string
	Priority    events.Priority
	Completed   bool
	CreatedAt   time.Time
	CompletedAt *time.Time

	pending []events.Event
}

func New(title, description string, priority events.Priority) (*Todo, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	if !priority.Valid() {
		priority = events.PriorityMedium
	}

	now := time.Now().UTC()
	t := &Todo{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Priority:    priority,
		CreatedAt:   now,
	}
	t.record(events.TodoCreated{
		TodoID:      t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		OccurredAt:  now,
	})
	return t, nil
}

// Restore rehydrates a persisted Todo without recording events.
func Restore(id, title, description string, priority events.Priority, completed bool, createdAt time.Time, completedAt *time.Time) *Todo {
	return &Todo{
		ID:          id,
		Title:       title,
		Description: description,
		Priority:    priority,
		Completed:   completed,
		CreatedAt:   createdAt,
		CompletedAt: completedAt,
	}
}

func (t *Todo) UpdateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}

	old := t.Title
	t.Title = title
	t.record(events.TodoUpdated{
		TodoID:     t.ID,
		OldValue:   old,
		NewValue:   t.Title,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

func (t *Todo) UpdateDescription(description string) {
	old := t.Description
	t.Description = description
	t.record(events.TodoUpdated{
		TodoID:     t.ID,
		OldValue:   old,
		NewValue:   t.Description,
		OccurredAt: time.Now().UTC(),
	})
}

func (t *Todo) SetPriority(priority events.Priority) {
	t.Priority = priority
	t.record(events.TodoPriorityChanged{
		TodoID:      t.ID,
		NewPriority: t.Priority,
		OccurredAt:  time.Now().UTC(),
	})
}

// Complete is a no-op on an already-completed todo.
func (t *Todo) Complete() {
	if t.Completed {
		return
	}

	now := time.Now().UTC()
	t.Completed = true
	t.CompletedAt = &now
	t.record(events.TodoCompleted{
		TodoID:      t.ID,
		Title:       t.Title,
		CompletedAt: now,
		OccurredAt:  now,
	})
}

// Reopen is a no-op on a todo that is not completed.
func (t *Todo) Reopen() {
	if !t.Completed {
		return
	}

	t.Completed = false
	t.CompletedAt = nil
	t.record(events.TodoReopened{
		TodoID:     t.ID,
		Title:      t.Title,
		OccurredAt: time.Now().UTC(),
	})
}

// DrainEvents returns the pending events and clears the buffer. Callers
// hand the result to the publisher after persisting the aggregate.
func (t *Todo) DrainEvents() []events.Event {
	pending := t.pending
	t.pending = nil
	return pending
}

// PendingEvents returns a copy of the unpublished event buffer.
func (t *Todo) PendingEvents() []events.Event {
	out := make([]events.Event, len(t.pending))
	copy(out, t.pending)
	return out
}

func (t *Todo) record(ev events.Event) {
	t.pending = append(t.pending, ev)
}
