package events

import (
	"strings"
	"time"
)

// Type identifies a domain event kind. The set is closed; the consumer
// dead-letters anything it does not recognize.
type Type string

const (
	TypeTodoCreated         Type = "TodoCreatedEvent"
	TypeTodoCompleted       Type = "TodoCompletedEvent"
	TypeTodoUpdated         Type = "TodoUpdatedEvent"
	TypeTodoReopened        Type = "TodoReopenedEvent"
	TypeTodoPriorityChanged Type = "TodoPriorityChangedEvent"
)

// Types lists every known event kind, in the order queue bindings are declared.
func Types() []Type {
	return []Type{
		TypeTodoCreated,
		TypeTodoCompleted,
		TypeTodoUpdated,
		TypeTodoReopened,
		TypeTodoPriorityChanged,
	}
}

const routingKeyDomain = "todo"

// RoutingKey derives the broker routing key for an event kind,
// e.g. TodoCreatedEvent -> "todo.todocreatedevent".
func RoutingKey(t Type) string {
	return routingKeyDomain + "." + strings.ToLower(string(t))
}

// RoutingKeys returns the routing key for every known event kind.
func RoutingKeys() []string {
	types := Types()
	keys := make([]string, 0, len(types))
	for _, t := range types {
		keys = append(keys, RoutingKey(t))
	}
	return keys
}

// Event is an immutable fact about a Todo state transition. Events are
// recorded on the aggregate and published after the mutation persists.
type Event interface {
	EventType() Type
}

type TodoCreated struct {
	TodoID      string    `json:"todoId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    Priority  `json:"priority"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func (TodoCreated) EventType() Type { return TypeTodoCreated }

type TodoCompleted struct {
	TodoID      string    `json:"todoId"`
	Title       string    `json:"title"`
	CompletedAt time.Time `json:"completedAt"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func (TodoCompleted) EventType() Type { return TypeTodoCompleted }

type TodoUpdated struct {
	TodoID     string    `json:"id"`
	OldValue   string    `json:"oldValue"`
	NewValue   string    `json:"newValue"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (TodoUpdated) EventType() Type { return TypeTodoUpdated }

type TodoReopened struct {
	TodoID     string    `json:"todoId"`
	Title      string    `json:"title"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (TodoReopened) EventType() Type { return TypeTodoReopened }

type TodoPriorityChanged struct {
	TodoID      string    `json:"todoId"`
	NewPriority Priority  `json:"newPriority"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func (TodoPriorityChanged) EventType() Type { return TypeTodoPriorityChanged }
