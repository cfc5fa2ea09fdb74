package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestHub() *Hub {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func addTestClient(h *Hub, buffer int) (*client, *bool) {
	closed := false
	cl := &client{
		msgs:      make(chan []byte, buffer),
		closeSlow: func() { closed = true },
	}
	h.add(cl)
	return cl, &closed
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h := newTestHub()
	a, _ := addTestClient(h, 4)
	b, _ := addTestClient(h, 4)

	n := Notification{
		Type:      "TodoCreated",
		Message:   "New todo created: Buy milk",
		Data:      map[string]string{"title": "Buy milk"},
		Timestamp: time.Now().UTC(),
	}
	if err := h.Broadcast(n); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	for name, cl := range map[string]*client{"a": a, "b": b} {
		select {
		case raw := <-cl.msgs:
			var f frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("client %s: bad frame: %v", name, err)
			}
			if f.Method != BroadcastMethod {
				t.Fatalf("client %s: method = %q", name, f.Method)
			}
			if f.Payload.Type != "TodoCreated" || f.Payload.Message != "New todo created: Buy milk" {
				t.Fatalf("client %s: unexpected payload %#v", name, f.Payload)
			}
		default:
			t.Fatalf("client %s received nothing", name)
		}
	}
}

func TestSlowClientDoesNotBlockOthers(t *testing.T) {
	h := newTestHub()
	slow, slowClosed := addTestClient(h, 1)
	fast, _ := addTestClient(h, 4)

	// Fill the slow client's buffer so the next broadcast overflows it.
	slow.msgs <- []byte("{}")

	if err := h.Broadcast(Notification{Type: "TodoUpdated"}); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	if !*slowClosed {
		t.Fatal("slow client was not disconnected")
	}
	select {
	case <-fast.msgs:
	default:
		t.Fatal("fast client did not receive the broadcast")
	}
}

func TestRemoveStopsDelivery(t *testing.T) {
	h := newTestHub()
	cl, _ := addTestClient(h, 4)
	if h.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", h.ClientCount())
	}

	h.remove(cl)
	if err := h.Broadcast(Notification{Type: "TodoCompleted"}); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	select {
	case <-cl.msgs:
		t.Fatal("removed client still received a broadcast")
	default:
	}
	if h.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", h.ClientCount())
	}
}
