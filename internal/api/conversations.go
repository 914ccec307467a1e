package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kayphi/kayphi/internal/conversation"
)

// ConversationStore serves conversation history for the dashboard.
type ConversationStore interface {
	List(ctx context.Context, limit, offset int32) ([]conversation.Conversation, int64, error)
	Messages(ctx context.Context, id uuid.UUID, limit, offset int32) ([]conversation.Message, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ConversationHandler serves the conversation management endpoints.
// All routes require bearer authentication (applied by the server).
type ConversationHandler struct {
	store  ConversationStore
	logger *slog.Logger
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(store ConversationStore, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{store: store, logger: logger}
}

// RegisterRoutes registers conversation routes on the given mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.List)
	mux.HandleFunc("GET /api/conversations/{id}/messages", h.Messages)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.Delete)
}

type conversationPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type messagePayload struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	TokensUsed *int32    `json:"tokensUsed,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// List returns conversations ordered by most recent activity.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 50, 200)

	conversations, total, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	payload := make([]conversationPayload, len(conversations))
	for i, c := range conversations {
		payload[i] = conversationPayload{
			ID:        c.ID.String(),
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": payload,
		"total":         total,
	})
}

// Messages returns a conversation's transcript in chronological order.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r, 100, 500)

	messages, total, err := h.store.Messages(r.Context(), id, limit, offset)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to list messages", "error", err, "conversation_id", id)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	payload := make([]messagePayload, len(messages))
	for i, m := range messages {
		payload[i] = messagePayload{
			ID:         m.ID.String(),
			Role:       m.Role,
			Content:    m.Content,
			TokensUsed: m.TokensUsed,
			CreatedAt:  m.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": payload,
		"total":    total,
	})
}

// Delete removes a conversation and its messages.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to delete conversation", "error", err, "conversation_id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// pathUUID parses the {id} path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads limit/offset query parameters with bounds.
func pageParams(r *http.Request, defaultLimit, maxLimit int32) (int32, int32) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 32); err == nil && n > 0 {
			limit = min(int32(n), maxLimit)
		}
	}

	var offset int32
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 32); err == nil && n > 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}
