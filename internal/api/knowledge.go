package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kayphi/kayphi/internal/knowledge"
)

// KnowledgeStore manages knowledge base entries.
type KnowledgeStore interface {
	Add(ctx context.Context, title, content string) (knowledge.Entry, error)
	Update(ctx context.Context, id uuid.UUID, title, content string) (knowledge.Entry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (knowledge.Entry, error)
	List(ctx context.Context, limit, offset int32) ([]knowledge.Entry, int64, error)
}

// KnowledgeHandler serves the knowledge base management endpoints.
// All routes require bearer authentication (applied by the server).
type KnowledgeHandler struct {
	store  KnowledgeStore
	logger *slog.Logger
}

// NewKnowledgeHandler creates a knowledge handler.
func NewKnowledgeHandler(store KnowledgeStore, logger *slog.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{store: store, logger: logger}
}

// RegisterRoutes registers knowledge routes on the given mux.
func (h *KnowledgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/knowledge", h.List)
	mux.HandleFunc("POST /api/knowledge", h.Create)
	mux.HandleFunc("GET /api/knowledge/{id}", h.Get)
	mux.HandleFunc("PATCH /api/knowledge/{id}", h.Update)
	mux.HandleFunc("DELETE /api/knowledge/{id}", h.Delete)
}

// entryPayload is the JSON shape for a knowledge entry.
type entryPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toEntryPayload(e knowledge.Entry) entryPayload {
	return entryPayload{
		ID:        e.ID.String(),
		Title:     e.Title,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// List returns a page of entries.
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 50, 200)

	entries, total, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list knowledge entries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list entries")
		return
	}

	payload := make([]entryPayload, len(entries))
	for i, e := range entries {
		payload[i] = toEntryPayload(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": payload,
		"total":   total,
	})
}

// Create stores a new entry and embeds it.
func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if fields, err := validateStruct(req); err != nil {
		h.logger.Error("create entry validation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	} else if len(fields) > 0 {
		writeFieldErrors(w, "Invalid entry", fields)
		return
	}

	entry, err := h.store.Add(r.Context(), req.Title, req.Content)
	if err != nil {
		h.logger.Error("failed to create knowledge entry", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create entry")
		return
	}

	writeJSON(w, http.StatusCreated, toEntryPayload(entry))
}

// Get returns one entry.
func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	entry, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		h.logger.Error("failed to get knowledge entry", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to get entry")
		return
	}

	writeJSON(w, http.StatusOK, toEntryPayload(entry))
}

// Update patches an entry's title and/or content and re-embeds it.
func (h *KnowledgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var req updateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if fields, err := validateStruct(req); err != nil {
		h.logger.Error("update entry validation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	} else if len(fields) > 0 {
		writeFieldErrors(w, "Invalid entry", fields)
		return
	}
	if req.Title == nil && req.Content == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	// Partial updates still re-embed, so fetch the current row first.
	current, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		h.logger.Error("failed to load entry for update", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to update entry")
		return
	}

	title := current.Title
	if req.Title != nil {
		title = *req.Title
	}
	content := current.Content
	if req.Content != nil {
		content = *req.Content
	}

	entry, err := h.store.Update(r.Context(), id, title, content)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		h.logger.Error("failed to update knowledge entry", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to update entry")
		return
	}

	writeJSON(w, http.StatusOK, toEntryPayload(entry))
}

// Delete removes an entry.
func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		h.logger.Error("failed to delete knowledge entry", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete entry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
