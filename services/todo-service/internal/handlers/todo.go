package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/todostream/todostream/libs/events"
	"github.com/todostream/todostream/services/todo-service/internal/storage"
	"github.com/todostream/todostream/services/todo-service/internal/todo"
)

// Publisher delivers drained domain events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type TodoHandler struct {
	repo      *storage.TodoRepository
	publisher Publisher
	logger    *slog.Logger
}

func NewTodoHandler(repo *storage.TodoRepository, publisher Publisher, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{repo: repo, publisher: publisher, logger: logger}
}

type createTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type updateTodoRequest struct {
	ID          string  `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type priorityRequest struct {
	ID       string `json:"id"`
	Priority string `json:"priority"`
}

type idRequest struct {
	ID string `json:"id"`
}

type todoResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	IsCompleted bool   `json:"is_completed"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

func (h *TodoHandler) Todos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TodoHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	priority := events.PriorityMedium
	if strings.TrimSpace(req.Priority) != "" {
		p, err := events.ParsePriority(req.Priority)
		if err != nil {
			http.Error(w, "priority must be one of low, medium, high, critical", http.StatusBadRequest)
			return
		}
		priority = p
	}

	t, err := todo.New(req.Title, req.Description, priority)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.Save(r.Context(), t); err != nil {
		http.Error(w, "failed to save todo", http.StatusInternalServerError)
		return
	}
	h.publishDrained(r.Context(), t)

	writeJSON(w, http.StatusCreated, toResponse(t))
}

func (h *TodoHandler) list(w http.ResponseWriter, r *http.Request) {
	todos, err := h.repo.List(r.Context())
	if err != nil {
		http.Error(w, "failed to list todos", http.StatusInternalServerError)
		return
	}

	out := make([]todoResponse, 0, len(todos))
	for _, t := range todos {
		out = append(out, toResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	t, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(t))
}

func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(t *todo.Todo, body []byte) error {
		var req updateTodoRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errBadRequest
		}
		if req.Title == nil && req.Description == nil {
			return errors.New("nothing to update")
		}
		if req.Title != nil {
			if err := t.UpdateTitle(*req.Title); err != nil {
				return err
			}
		}
		if req.Description != nil {
			t.UpdateDescription(*req.Description)
		}
		return nil
	})
}

func (h *TodoHandler) SetPriority(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(t *todo.Todo, body []byte) error {
		var req priorityRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errBadRequest
		}
		p, err := events.ParsePriority(req.Priority)
		if err != nil {
			return err
		}
		t.SetPriority(p)
		return nil
	})
}

func (h *TodoHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(t *todo.Todo, _ []byte) error {
		t.Complete()
		return nil
	})
}

func (h *TodoHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(t *todo.Todo, _ []byte) error {
		t.Reopen()
		return nil
	})
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ID) == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := h.repo.Delete(r.Context(), req.ID); err != nil {
		h.writeRepoError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var errBadRequest = errors.New("invalid json body")

// mutate loads the todo named in the body, applies the mutation, saves the
// new state, then drains and publishes the recorded events. Publish
// failures do not fail the request: the state change is already durable
// and notifications are best effort.
func (h *TodoHandler) mutate(w http.ResponseWriter, r *http.Request, apply func(t *todo.Todo, body []byte) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	var req idRequest
	if err := json.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.ID) == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	t, err := h.repo.Get(r.Context(), req.ID)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	if err := apply(t, body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.Save(r.Context(), t); err != nil {
		http.Error(w, "failed to save todo", http.StatusInternalServerError)
		return
	}
	h.publishDrained(r.Context(), t)

	writeJSON(w, http.StatusOK, toResponse(t))
}

func (h *TodoHandler) publishDrained(ctx context.Context, t *todo.Todo) {
	for _, ev := range t.DrainEvents() {
		if err := h.publisher.Publish(ctx, ev); err != nil {
			h.logger.Error("event publish failed",
				"event_type", ev.EventType(),
				"todo_id", t.ID,
				"err", err,
			)
		}
	}
}

func (h *TodoHandler) writeRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "todo not found", http.StatusNotFound)
		return
	}
	h.logger.Error("repository error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func toResponse(t *todo.Todo) todoResponse {
	resp := todoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority.String(),
		IsCompleted: t.Completed,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
	if t.CompletedAt != nil {
		resp.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
