package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/kayphi/kayphi/internal/chat"
)

// mockChatService implements ChatStreamer for testing.
type mockChatService struct {
	chunks    []string
	finalText string
	streamErr error

	gotConversationID uuid.UUID
	gotMessages       []chat.Message
}

func (m *mockChatService) Stream(ctx context.Context, conversationID uuid.UUID, messages []chat.Message, callback chat.StreamCallback) (*chat.Result, error) {
	m.gotConversationID = conversationID
	m.gotMessages = messages

	if m.streamErr != nil {
		return nil, m.streamErr
	}
	for _, text := range m.chunks {
		chunk := &ai.ModelResponseChunk{Content: []*ai.Part{ai.NewTextPart(text)}}
		if err := callback(ctx, chunk); err != nil {
			return nil, err
		}
	}
	return &chat.Result{Text: m.finalText}, nil
}

// mockEnsurer implements ConversationEnsurer for testing.
type mockEnsurer struct {
	id        uuid.UUID
	ensureErr error

	gotExistingID string
	gotFirstText  string
}

func (m *mockEnsurer) Ensure(_ context.Context, existingID, firstUserText string) (uuid.UUID, error) {
	m.gotExistingID = existingID
	m.gotFirstText = firstUserText
	if m.ensureErr != nil {
		return uuid.Nil, m.ensureErr
	}
	return m.id, nil
}

func chatBody(t *testing.T, conversationID string, texts ...string) string {
	t.Helper()
	messages := make([]map[string]any, len(texts))
	for i, text := range texts {
		messages[i] = map[string]any{
			"role":  "user",
			"parts": []map[string]any{{"type": "text", "text": text}},
		}
	}
	body := map[string]any{"messages": messages}
	if conversationID != "" {
		body["conversationId"] = conversationID
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return string(raw)
}

func postChat(handler *ChatHandler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.RemoteAddr = "1.2.3.4:5678"
	handler.Stream(rec, req)
	return rec
}

func TestChatStream_StreamsChunksAndDone(t *testing.T) {
	convID := uuid.New()
	svc := &mockChatService{chunks: []string{"Hel", "lo"}, finalText: "Hello"}
	ens := &mockEnsurer{id: convID}
	handler := NewChatHandler(svc, ens, testLogger())

	rec := postChat(handler, chatBody(t, "", "hi there"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("X-Conversation-Id"); got != convID.String() {
		t.Errorf("X-Conversation-Id = %q, want %q", got, convID)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `event: chunk`) || !strings.Contains(body, `{"text":"Hel"}`) {
		t.Errorf("body missing first chunk event:\n%s", body)
	}
	if !strings.Contains(body, `event: done`) || !strings.Contains(body, `"response":"Hello"`) {
		t.Errorf("body missing done event:\n%s", body)
	}
	if svc.gotConversationID != convID {
		t.Errorf("service got conversation %s, want %s", svc.gotConversationID, convID)
	}
}

func TestChatStream_PassesExistingConversationID(t *testing.T) {
	existing := uuid.New()
	svc := &mockChatService{finalText: "ok"}
	ens := &mockEnsurer{id: existing}
	handler := NewChatHandler(svc, ens, testLogger())

	postChat(handler, chatBody(t, existing.String(), "follow-up"))

	if ens.gotExistingID != existing.String() {
		t.Errorf("Ensure got id %q, want %q", ens.gotExistingID, existing)
	}
	if ens.gotFirstText != "follow-up" {
		t.Errorf("Ensure got first text %q, want %q", ens.gotFirstText, "follow-up")
	}
}

func TestChatStream_EmptyMessagesRejected(t *testing.T) {
	handler := NewChatHandler(&mockChatService{}, &mockEnsurer{id: uuid.New()}, testLogger())

	rec := postChat(handler, `{"messages":[]}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "messages") {
		t.Errorf("error body missing field detail: %s", rec.Body)
	}
}

func TestChatStream_SystemRoleAccepted(t *testing.T) {
	svc := &mockChatService{finalText: "ok"}
	handler := NewChatHandler(svc, &mockEnsurer{id: uuid.New()}, testLogger())

	body := `{"messages":[` +
		`{"role":"system","parts":[{"type":"text","text":"be brief"}]},` +
		`{"role":"user","parts":[{"type":"text","text":"hi"}]}]}`
	rec := postChat(handler, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body)
	}
	if len(svc.gotMessages) != 2 {
		t.Errorf("service got %d messages, want 2", len(svc.gotMessages))
	}
}

func TestChatStream_UnknownRoleRejected(t *testing.T) {
	handler := NewChatHandler(&mockChatService{}, &mockEnsurer{id: uuid.New()}, testLogger())

	body := `{"messages":[{"role":"robot","parts":[{"type":"text","text":"x"}]}]}`
	rec := postChat(handler, body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatStream_MalformedBodyRejected(t *testing.T) {
	handler := NewChatHandler(&mockChatService{}, &mockEnsurer{id: uuid.New()}, testLogger())

	rec := postChat(handler, `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatStream_NoUserTextStillStreams(t *testing.T) {
	svc := &mockChatService{finalText: "ok"}
	ens := &mockEnsurer{id: uuid.New()}
	handler := NewChatHandler(svc, ens, testLogger())

	body := `{"messages":[{"role":"assistant","parts":[{"type":"text","text":"hi"}]}]}`
	rec := postChat(handler, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body)
	}
	if ens.gotFirstText != "" {
		t.Errorf("Ensure got first text %q, want empty", ens.gotFirstText)
	}
	if !strings.Contains(rec.Body.String(), `event: done`) {
		t.Errorf("body missing done event:\n%s", rec.Body)
	}
}

func TestChatStream_TitlesFromFirstUserMessage(t *testing.T) {
	svc := &mockChatService{finalText: "ok"}
	ens := &mockEnsurer{id: uuid.New()}
	handler := NewChatHandler(svc, ens, testLogger())

	postChat(handler, chatBody(t, "", "opening question", "second question"))

	if ens.gotFirstText != "opening question" {
		t.Errorf("Ensure got first text %q, want %q", ens.gotFirstText, "opening question")
	}
}

func TestChatStream_EnsureFailure(t *testing.T) {
	ens := &mockEnsurer{ensureErr: errors.New("db down")}
	handler := NewChatHandler(&mockChatService{}, ens, testLogger())

	rec := postChat(handler, chatBody(t, "", "hello"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Failed to create conversation") {
		t.Errorf("body = %s, want conversation failure message", rec.Body)
	}
}

func TestChatStream_ServiceErrorEmitsErrorEvent(t *testing.T) {
	svc := &mockChatService{streamErr: errors.New("model unavailable")}
	handler := NewChatHandler(svc, &mockEnsurer{id: uuid.New()}, testLogger())

	rec := postChat(handler, chatBody(t, "", "hello"))

	// Headers were already flushed, so failures surface as SSE errors.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `event: error`) || !strings.Contains(body, "STREAM_ERROR") {
		t.Errorf("body missing error event:\n%s", body)
	}
}
