package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/todostream/todostream/libs/events"
	"github.com/todostream/todostream/services/notifier-service/internal/hub"
)

type fakeBroadcaster struct {
	sent []hub.Notification
	err  error
}

func (f *fakeBroadcaster) Broadcast(n hub.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func newTestService(b *fakeBroadcaster) *Service {
	return New(b, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNotifyTodoCreated(t *testing.T) {
	b := &fakeBroadcaster{}
	s := newTestService(b)
	createdAt := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	err := s.NotifyTodoCreated(context.Background(), "t-1", "Buy milk", "2L", events.PriorityMedium, createdAt)
	if err != nil {
		t.Fatalf("NotifyTodoCreated failed: %v", err)
	}
	if len(b.sent) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(b.sent))
	}

	n := b.sent[0]
	if n.Type != "TodoCreated" {
		t.Fatalf("type = %q", n.Type)
	}
	if n.Message != "New todo created: Buy milk" {
		t.Fatalf("message = %q", n.Message)
	}
	if n.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
	data, ok := n.Data.(todoCreatedData)
	if !ok {
		t.Fatalf("data is %T", n.Data)
	}
	if data.Title != "Buy milk" || data.Priority != events.PriorityMedium || !data.CreatedAt.Equal(createdAt) {
		t.Fatalf("unexpected data: %#v", data)
	}
}

func TestNotificationTypesAndMessages(t *testing.T) {
	b := &fakeBroadcaster{}
	s := newTestService(b)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.NotifyTodoCompleted(ctx, "t-1", "Buy milk", now); err != nil {
		t.Fatalf("NotifyTodoCompleted: %v", err)
	}
	if err := s.NotifyTodoUpdated(ctx, "t-1", "Buy oat milk", "Changed from 'Buy milk' to 'Buy oat milk'"); err != nil {
		t.Fatalf("NotifyTodoUpdated: %v", err)
	}
	if err := s.NotifyTodoReopened(ctx, "t-1", "Buy milk"); err != nil {
		t.Fatalf("NotifyTodoReopened: %v", err)
	}
	if err := s.NotifyTodoPriorityChanged(ctx, "t-1", "Priority Updated", events.PriorityHigh); err != nil {
		t.Fatalf("NotifyTodoPriorityChanged: %v", err)
	}

	want := []struct {
		typ, message string
	}{
		{"TodoCompleted", "Todo completed: Buy milk"},
		{"TodoUpdated", "Todo updated: Buy oat milk"},
		{"TodoReopened", "Todo reopened: Buy milk"},
		{"TodoPriorityChanged", "Todo priority changed: Priority Updated - High"},
	}
	if len(b.sent) != len(want) {
		t.Fatalf("expected %d broadcasts, got %d", len(want), len(b.sent))
	}
	for i, w := range want {
		if b.sent[i].Type != w.typ || b.sent[i].Message != w.message {
			t.Fatalf("broadcast %d = %q/%q, want %q/%q", i, b.sent[i].Type, b.sent[i].Message, w.typ, w.message)
		}
	}
}

func TestBroadcastErrorPropagates(t *testing.T) {
	b := &fakeBroadcaster{err: errors.New("hub closed")}
	s := newTestService(b)

	err := s.NotifyTodoReopened(context.Background(), "t-1", "Buy milk")
	if err == nil {
		t.Fatal("expected error from broadcaster")
	}
}
