package todo

import (
	"errors"
	"testing"

	"github.com/todostream/todostream/libs/events"
)

func TestNewRecordsCreatedEvent(t *testing.T) {
	td, err := New("Buy milk", "", 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if td.Priority != events.PriorityMedium {
		t.Fatalf("expected default Medium priority, got %s", td.Priority)
	}

	pending := td.PendingEvents()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending event, got %d", len(pending))
	}
	created, ok := pending[0].(events.TodoCreated)
	if !ok {
		t.Fatalf("expected TodoCreated, got %T", pending[0])
	}
	if created.Title != "Buy milk" || created.Priority != events.PriorityMedium {
		t.Fatalf("unexpected created event: %#v", created)
	}
	if created.TodoID != td.ID {
		t.Fatalf("event aggregate id %q != todo id %q", created.TodoID, td.ID)
	}
}

func TestNewRejectsBlankTitle(t *testing.T) {
	if _, err := New("   ", "", events.PriorityLow); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	td, err := New("Buy milk", "", events.PriorityMedium)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	td.DrainEvents()

	td.Complete()
	td.Complete()

	pending := td.PendingEvents()
	if len(pending) != 1 {
		t.Fatalf("expected 1 event after double Complete, got %d", len(pending))
	}
	completed, ok := pending[0].(events.TodoCompleted)
	if !ok {
		t.Fatalf("expected TodoCompleted, got %T", pending[0])
	}
	if td.CompletedAt == nil || !completed.CompletedAt.Equal(*td.CompletedAt) {
		t.Fatal("completion timestamp not carried on the event")
	}
}

func TestReopenOnOpenTodoIsNoOp(t *testing.T) {
	td, err := New("Buy milk", "", events.PriorityMedium)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	td.DrainEvents()

	td.Reopen()
	if len(td.PendingEvents()) != 0 {
		t.Fatal("Reopen on an open todo must record nothing")
	}

	td.Complete()
	td.Reopen()
	pending := td.PendingEvents()
	if len(pending) != 2 {
		t.Fatalf("expected Completed+Reopened, got %d events", len(pending))
	}
	if _, ok := pending[1].(events.TodoReopened); !ok {
		t.Fatalf("expected TodoReopened, got %T", pending[1])
	}
	if td.Completed || td.CompletedAt != nil {
		t.Fatal("Reopen did not reset completion state")
	}
}

func TestUpdateTitleRecordsOldAndNew(t *testing.T) {
	td, err := New("Buy milk", "", events.PriorityMedium)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	td.DrainEvents()

	if err := td.UpdateTitle(""); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if err := td.UpdateTitle("Buy oat milk"); err != nil {
		t.Fatalf("UpdateTitle failed: %v", err)
	}

	pending := td.PendingEvents()
	if len(pending) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pending))
	}
	updated := pending[0].(events.TodoUpdated)
	if updated.OldValue != "Buy milk" || updated.NewValue != "Buy oat milk" {
		t.Fatalf("unexpected old/new pair: %#v", updated)
	}
}

func TestUpdateDescriptionCapturesOldValue(t *testing.T) {
	td, err := New("Buy milk", "2L", events.PriorityMedium)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	td.DrainEvents()

	td.UpdateDescription("3L")
	updated := td.PendingEvents()[0].(events.TodoUpdated)
	if updated.OldValue != "2L" || updated.NewValue != "3L" {
		t.Fatalf("unexpected old/new pair: %#v", updated)
	}
}

func TestDrainEventsClearsBuffer(t *testing.T) {
	td, err := New("Buy milk", "", events.PriorityMedium)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	td.SetPriority(events.PriorityHigh)

	drained := td.DrainEvents()
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained events, got %d", len(drained))
	}
	if len(td.PendingEvents()) != 0 {
		t.Fatal("buffer not cleared after drain")
	}
	if len(td.DrainEvents()) != 0 {
		t.Fatal("second drain must return nothing")
	}
}
