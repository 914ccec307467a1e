package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/kayphi/kayphi/internal/chat"
)

const maxChatBodyBytes = 1 << 20

// ChatStreamer runs one retrieval-augmented chat turn.
type ChatStreamer interface {
	Stream(ctx context.Context, conversationID uuid.UUID, messages []chat.Message, callback chat.StreamCallback) (*chat.Result, error)
}

// ConversationEnsurer resolves or creates the conversation a turn
// belongs to.
type ConversationEnsurer interface {
	Ensure(ctx context.Context, existingID, firstUserText string) (uuid.UUID, error)
}

// ChatHandler serves the public chat endpoint.
//
// POST /api/chat accepts a transcript, resolves the conversation, and
// streams the model response as SSE. The resolved conversation id is
// exposed in the X-Conversation-Id response header before the stream
// starts so the widget can thread follow-up turns.
type ChatHandler struct {
	service       ChatStreamer
	conversations ConversationEnsurer
	logger        *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(service ChatStreamer, conversations ConversationEnsurer, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{service: service, conversations: conversations, logger: logger}
}

// RegisterRoutes registers the chat route on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Stream)
}

// Stream handles one SSE chat request.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields, err := validateStruct(req)
	if err != nil {
		h.logger.Error("chat request validation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if len(fields) > 0 {
		writeFieldErrors(w, "Invalid chat request", fields)
		return
	}

	// A transcript without user text still runs the pipeline; the new
	// conversation just falls back to the placeholder title.
	messages := toChatMessages(req.Messages)

	ctx := r.Context()
	conversationID, err := h.conversations.Ensure(ctx, req.ConversationID, chat.FirstUserText(messages))
	if err != nil {
		h.logger.Error("failed to ensure conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Headers must be final before the stream opens.
	w.Header().Set("X-Conversation-Id", conversationID.String())
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("SSE stream started", "conversation_id", conversationID)

	streamFailed := false
	callback := func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
		select {
		case <-cbCtx.Done():
			return cbCtx.Err()
		default:
		}
		text := chunk.Text()
		if text == "" {
			return nil
		}
		if err := writeEvent(w, flusher, EventChunk, ChunkPayload{Text: text}); err != nil {
			// Write failure usually means the client went away.
			streamFailed = true
			return err
		}
		return nil
	}

	result, err := h.service.Stream(ctx, conversationID, messages, callback)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "conversation_id", conversationID)
			return
		}
		h.logger.Error("chat stream failed", "error", err, "conversation_id", conversationID)
		if !streamFailed {
			_ = writeEvent(w, flusher, EventError, ErrorPayload{
				Code:    "STREAM_ERROR",
				Message: "Failed to generate response",
			})
		}
		return
	}

	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Response:       result.Text,
		ConversationID: conversationID.String(),
	})

	h.logger.Info("SSE stream completed", "conversation_id", conversationID)
}

func toChatMessages(in []chatMessage) []chat.Message {
	out := make([]chat.Message, len(in))
	for i, m := range in {
		parts := make([]chat.Part, len(m.Parts))
		for j, p := range m.Parts {
			parts[j] = chat.Part{Type: p.Type, Text: p.Text}
		}
		out[i] = chat.Message{Role: m.Role, Parts: parts}
	}
	return out
}
