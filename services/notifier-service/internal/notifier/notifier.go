package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/todostream/todostream/libs/events"
	"github.com/todostream/todostream/services/notifier-service/internal/hub"
)

// Broadcaster fans one notification out to all connected clients.
type Broadcaster interface {
	Broadcast(n hub.Notification) error
}

// Service maps typed domain events to user-facing notifications. It holds
// no durable state, so repeating a broadcast for the same logical event
// is harmless; at-least-once delivery upstream makes that a requirement.
type Service struct {
	hub    Broadcaster
	logger *slog.Logger
}

func New(b Broadcaster, logger *slog.Logger) *Service {
	return &Service{hub: b, logger: logger}
}

type todoCreatedData struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    events.Priority `json:"priority"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type todoCompletedData struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CompletedAt time.Time `json:"completedAt"`
}

type todoUpdatedData struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	ChangeDescription string `json:"changeDescription"`
}

type todoReopenedData struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type todoPriorityChangedData struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	NewPriority events.Priority `json:"newPriority"`
}

func (s *Service) NotifyTodoCreated(_ context.Context, id, title, description string, priority events.Priority, createdAt time.Time) error {
	return s.send(id, hub.Notification{
		Type:    "TodoCreated",
		Message: "New todo created: " + title,
		Data: todoCreatedData{
			ID:          id,
			Title:       title,
			Description: description,
			Priority:    priority,
			CreatedAt:   createdAt,
		},
	})
}

func (s *Service) NotifyTodoCompleted(_ context.Context, id, title string, completedAt time.Time) error {
	return s.send(id, hub.Notification{
		Type:    "TodoCompleted",
		Message: "Todo completed: " + title,
		Data: todoCompletedData{
			ID:          id,
			Title:       title,
			CompletedAt: completedAt,
		},
	})
}

func (s *Service) NotifyTodoUpdated(_ context.Context, id, title, changeDescription string) error {
	return s.send(id, hub.Notification{
		Type:    "TodoUpdated",
		Message: "Todo updated: " + title,
		Data: todoUpdatedData{
			ID:                id,
			Title:             title,
			ChangeDescription: changeDescription,
		},
	})
}

func (s *Service) NotifyTodoReopened(_ context.Context, id, title string) error {
	return s.send(id, hub.Notification{
		Type:    "TodoReopened",
		Message: "Todo reopened: " + title,
		Data:    todoReopenedData{ID: id, Title: title},
	})
}

func (s *Service) NotifyTodoPriorityChanged(_ context.Context, id, title string, newPriority events.Priority) error {
	return s.send(id, hub.Notification{
		Type:    "TodoPriorityChanged",
		Message: fmt.Sprintf("Todo priority changed: %s - %s", title, newPriority),
		Data: todoPriorityChangedData{
			ID:          id,
			Title:       title,
			NewPriority: newPriority,
		},
	})
}

func (s *Service) send(todoID string, n hub.Notification) error {
	n.Timestamp = time.Now().UTC()
	if err := s.hub.Broadcast(n); err != nil {
		return err
	}
	s.logger.Info("notification sent", "type", n.Type, "todo_id", todoID)
	return nil
}
