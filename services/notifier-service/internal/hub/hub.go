package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// BroadcastMethod names the single realtime operation delivered to
// connected clients.
const BroadcastMethod = "ReceiveNotification"

// Notification is transient: built per broadcast, pushed to every open
// connection, never persisted.
type Notification struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type frame struct {
	Method  string       `json:"method"`
	Payload Notification `json:"payload"`
}

type client struct {
	msgs      chan []byte
	closeSlow func()
}

// Hub fans notifications out to all connected websocket clients. Pushes
// are per-connection buffered channel sends; a client that cannot keep
// up is disconnected rather than allowed to block the others.
type Hub struct {
	logger       *slog.Logger
	sendBuffer   int
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		logger:       logger,
		sendBuffer:   16,
		writeTimeout: 5 * time.Second,
		clients:      map[*client]struct{}{},
	}
}

// Broadcast pushes one notification to every connected client. Failures
// past this point are per-connection and never propagate to the caller.
func (h *Hub) Broadcast(n Notification) error {
	data, err := json.Marshal(frame{Method: BroadcastMethod, Payload: n})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.msgs <- data:
		default:
			h.logger.Warn("dropping slow realtime client")
			cl.closeSlow()
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams broadcasts until the client
// disconnects or falls behind.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "err", err)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "")

	cl := &client{
		msgs: make(chan []byte, h.sendBuffer),
		closeSlow: func() {
			_ = ws.Close(websocket.StatusPolicyViolation, "too slow to keep up with notifications")
		},
	}
	h.add(cl)
	defer h.remove(cl)

	ctx := ws.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			_ = ws.Close(websocket.StatusNormalClosure, "")
			return
		case msg := <-cl.msgs:
			if err := write(ctx, ws, msg, h.writeTimeout); err != nil {
				h.logger.Warn("realtime push failed", "err", err)
				return
			}
		}
	}
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl] = struct{}{}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, cl)
}

func write(ctx context.Context, ws *websocket.Conn, msg []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, msg)
}
