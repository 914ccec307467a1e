package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kayphi/kayphi/internal/knowledge"
)

// mockKnowledgeStore implements KnowledgeStore for testing.
type mockKnowledgeStore struct {
	addErr    error
	updateErr error
	deleteErr error
	getErr    error
	listErr   error

	entry   knowledge.Entry
	entries []knowledge.Entry
	total   int64

	gotTitle   string
	gotContent string
}

func (m *mockKnowledgeStore) Add(_ context.Context, title, content string) (knowledge.Entry, error) {
	if m.addErr != nil {
		return knowledge.Entry{}, m.addErr
	}
	m.gotTitle, m.gotContent = title, content
	return knowledge.Entry{ID: uuid.New(), Title: title, Content: content}, nil
}

func (m *mockKnowledgeStore) Update(_ context.Context, id uuid.UUID, title, content string) (knowledge.Entry, error) {
	if m.updateErr != nil {
		return knowledge.Entry{}, m.updateErr
	}
	m.gotTitle, m.gotContent = title, content
	return knowledge.Entry{ID: id, Title: title, Content: content}, nil
}

func (m *mockKnowledgeStore) Delete(_ context.Context, _ uuid.UUID) error {
	return m.deleteErr
}

func (m *mockKnowledgeStore) Get(_ context.Context, _ uuid.UUID) (knowledge.Entry, error) {
	if m.getErr != nil {
		return knowledge.Entry{}, m.getErr
	}
	return m.entry, nil
}

func (m *mockKnowledgeStore) List(_ context.Context, _, _ int32) ([]knowledge.Entry, int64, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.entries, m.total, nil
}

func knowledgeServer(store KnowledgeStore) *http.ServeMux {
	mux := http.NewServeMux()
	NewKnowledgeHandler(store, testLogger()).RegisterRoutes(mux)
	return mux
}

func TestKnowledgeCreate(t *testing.T) {
	store := &mockKnowledgeStore{}
	mux := knowledgeServer(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge",
		strings.NewReader(`{"title":"Pricing","content":"Plans start at $10."}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body)
	}
	if store.gotTitle != "Pricing" || store.gotContent != "Plans start at $10." {
		t.Errorf("stored %q/%q", store.gotTitle, store.gotContent)
	}
}

func TestKnowledgeCreate_MissingTitle(t *testing.T) {
	mux := knowledgeServer(&mockKnowledgeStore{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge",
		strings.NewReader(`{"content":"no title"}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "title") {
		t.Errorf("body missing title detail: %s", rec.Body)
	}
}

func TestKnowledgeUpdate_MergesPartialPatch(t *testing.T) {
	id := uuid.New()
	store := &mockKnowledgeStore{
		entry: knowledge.Entry{ID: id, Title: "Old title", Content: "Old content"},
	}
	mux := knowledgeServer(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/knowledge/"+id.String(),
		strings.NewReader(`{"content":"New content"}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body)
	}
	if store.gotTitle != "Old title" || store.gotContent != "New content" {
		t.Errorf("update called with %q/%q, want old title and new content", store.gotTitle, store.gotContent)
	}
}

func TestKnowledgeUpdate_EmptyPatchRejected(t *testing.T) {
	mux := knowledgeServer(&mockKnowledgeStore{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/knowledge/"+uuid.NewString(),
		strings.NewReader(`{}`))
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestKnowledgeDelete_NotFound(t *testing.T) {
	mux := knowledgeServer(&mockKnowledgeStore{deleteErr: knowledge.ErrNotFound})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/knowledge/"+uuid.NewString(), nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestKnowledgeGet_InvalidID(t *testing.T) {
	mux := knowledgeServer(&mockKnowledgeStore{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/knowledge/not-a-uuid", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestKnowledgeList(t *testing.T) {
	store := &mockKnowledgeStore{
		entries: []knowledge.Entry{{ID: uuid.New(), Title: "a"}},
		total:   13,
	}
	mux := knowledgeServer(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/knowledge?limit=1", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":13`) {
		t.Errorf("body missing total: %s", rec.Body)
	}
}

func TestKnowledgeList_StoreFailure(t *testing.T) {
	mux := knowledgeServer(&mockKnowledgeStore{listErr: errors.New("db down")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/knowledge", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
