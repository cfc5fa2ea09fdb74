package events

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRoutingKeys(t *testing.T) {
	want := map[Type]string{
		TypeTodoCreated:         "todo.todocreatedevent",
		TypeTodoCompleted:       "todo.todocompletedevent",
		TypeTodoUpdated:         "todo.todoupdatedevent",
		TypeTodoReopened:        "todo.todoreopenedevent",
		TypeTodoPriorityChanged: "todo.todoprioritychangedevent",
	}
	for typ, key := range want {
		if got := RoutingKey(typ); got != key {
			t.Fatalf("RoutingKey(%s) = %q, want %q", typ, got, key)
		}
	}
	if len(RoutingKeys()) != len(want) {
		t.Fatalf("expected %d routing keys, got %d", len(want), len(RoutingKeys()))
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	occurred := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	completed := occurred.Add(time.Hour)

	cases := []Event{
		TodoCreated{TodoID: "t-1", Title: "Buy milk", Description: "2L", Priority: PriorityMedium, OccurredAt: occurred},
		TodoCompleted{TodoID: "t-1", Title: "Buy milk", CompletedAt: completed, OccurredAt: completed},
		TodoUpdated{TodoID: "t-1", OldValue: "Buy milk", NewValue: "Buy oat milk", OccurredAt: occurred},
		TodoReopened{TodoID: "t-1", Title: "Buy milk", OccurredAt: occurred},
		TodoPriorityChanged{TodoID: "t-1", NewPriority: PriorityHigh, OccurredAt: occurred},
	}

	for _, ev := range cases {
		body, err := Marshal(ev)
		if err != nil {
			t.Fatalf("Marshal(%s) failed: %v", ev.EventType(), err)
		}
		got, err := Unmarshal(ev.EventType(), body)
		if err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", ev.EventType(), err)
		}
		if got != ev {
			t.Fatalf("round trip mismatch for %s: got %#v, want %#v", ev.EventType(), got, ev)
		}
	}
}

func TestUnmarshalCaseInsensitiveFields(t *testing.T) {
	body := []byte(`{"TODOID":"t-9","TITLE":"Buy milk","PRIORITY":2}`)
	got, err := Unmarshal(TypeTodoCreated, body)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	created, ok := got.(TodoCreated)
	if !ok {
		t.Fatalf("expected TodoCreated, got %T", got)
	}
	if created.TodoID != "t-9" || created.Title != "Buy milk" || created.Priority != PriorityMedium {
		t.Fatalf("unexpected decode: %#v", created)
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	_, err := Unmarshal("TodoArchivedEvent", []byte(`{}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestUnmarshalMalformedBody(t *testing.T) {
	_, err := Unmarshal(TypeTodoCreated, []byte(`{"title":`))
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
	if errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("malformed body must not map to ErrUnknownEventType: %v", err)
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" High ")
	if err != nil || p != PriorityHigh {
		t.Fatalf("ParsePriority(High) = %v, %v", p, err)
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Fatal("expected error for unknown priority")
	}
	if got := PriorityCritical.String(); got != "Critical" {
		t.Fatalf("String() = %q", got)
	}
	if !strings.HasPrefix(Priority(9).String(), "Priority(") {
		t.Fatalf("unexpected String() for out-of-range priority: %q", Priority(9).String())
	}
}
