package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kayphi/kayphi/internal/conversation"
)

// mockConversationStore implements ConversationStore for testing.
type mockConversationStore struct {
	listErr     error
	messagesErr error
	deleteErr   error

	conversations []conversation.Conversation
	messages      []conversation.Message
	total         int64

	gotLimit  int32
	gotOffset int32
}

func (m *mockConversationStore) List(_ context.Context, limit, offset int32) ([]conversation.Conversation, int64, error) {
	m.gotLimit, m.gotOffset = limit, offset
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.conversations, m.total, nil
}

func (m *mockConversationStore) Messages(_ context.Context, _ uuid.UUID, limit, offset int32) ([]conversation.Message, int64, error) {
	m.gotLimit, m.gotOffset = limit, offset
	if m.messagesErr != nil {
		return nil, 0, m.messagesErr
	}
	return m.messages, m.total, nil
}

func (m *mockConversationStore) Delete(_ context.Context, _ uuid.UUID) error {
	return m.deleteErr
}

func conversationServer(store ConversationStore) *http.ServeMux {
	mux := http.NewServeMux()
	NewConversationHandler(store, testLogger()).RegisterRoutes(mux)
	return mux
}

func TestConversationList(t *testing.T) {
	store := &mockConversationStore{
		conversations: []conversation.Conversation{{ID: uuid.New(), Title: "First chat"}},
		total:         4,
	}
	mux := conversationServer(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations?limit=10&offset=20", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.gotLimit != 10 || store.gotOffset != 20 {
		t.Errorf("pagination = %d/%d, want 10/20", store.gotLimit, store.gotOffset)
	}
	if !strings.Contains(rec.Body.String(), "First chat") {
		t.Errorf("body missing conversation: %s", rec.Body)
	}
}

func TestConversationList_LimitCapped(t *testing.T) {
	store := &mockConversationStore{}
	mux := conversationServer(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations?limit=99999", nil)
	mux.ServeHTTP(rec, req)

	if store.gotLimit != 200 {
		t.Errorf("limit = %d, want capped at 200", store.gotLimit)
	}
}

func TestConversationMessages(t *testing.T) {
	tokens := int32(17)
	store := &mockConversationStore{
		messages: []conversation.Message{
			{ID: uuid.New(), Role: conversation.RoleUser, Content: "hi"},
			{ID: uuid.New(), Role: conversation.RoleAssistant, Content: "hello", TokensUsed: &tokens},
		},
		total: 2,
	}
	mux := conversationServer(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+uuid.NewString()+"/messages", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"tokensUsed":17`) {
		t.Errorf("body missing token count: %s", body)
	}
}

func TestConversationMessages_NotFound(t *testing.T) {
	mux := conversationServer(&mockConversationStore{messagesErr: conversation.ErrNotFound})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+uuid.NewString()+"/messages", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestConversationDelete_NotFound(t *testing.T) {
	mux := conversationServer(&mockConversationStore{deleteErr: conversation.ErrNotFound})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/conversations/"+uuid.NewString(), nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
