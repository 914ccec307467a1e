package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kayphi/kayphi/internal/log"
)

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	createErr  error
	insertErr  error
	touchErr   error
	getErr     error
	listErr    error
	deleteErr  error
	countTotal int64

	createdTitle  string
	insertedRole  string
	insertedText  string
	insertedToken *int32
	touchCalls    int

	conversations []Conversation
	messages      []Message
}

func (m *mockQuerier) CreateConversation(_ context.Context, ownerID pgtype.UUID, title string) (Conversation, error) {
	if m.createErr != nil {
		return Conversation{}, m.createErr
	}
	m.createdTitle = title
	return Conversation{ID: uuid.New(), OwnerID: ownerID.Bytes, Title: title}, nil
}

func (m *mockQuerier) GetConversation(_ context.Context, id, _ pgtype.UUID) (Conversation, error) {
	if m.getErr != nil {
		return Conversation{}, m.getErr
	}
	return Conversation{ID: id.Bytes}, nil
}

func (m *mockQuerier) ListConversations(_ context.Context, _ pgtype.UUID, _, _ int32) ([]Conversation, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.conversations, nil
}

func (m *mockQuerier) CountConversations(_ context.Context, _ pgtype.UUID) (int64, error) {
	return m.countTotal, nil
}

func (m *mockQuerier) DeleteConversation(_ context.Context, _, _ pgtype.UUID) error {
	return m.deleteErr
}

func (m *mockQuerier) InsertMessage(_ context.Context, _ pgtype.UUID, role, content string, tokensUsed *int32) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.insertedRole = role
	m.insertedText = content
	m.insertedToken = tokensUsed
	return nil
}

func (m *mockQuerier) TouchConversation(_ context.Context, _ pgtype.UUID) error {
	m.touchCalls++
	return m.touchErr
}

func (m *mockQuerier) ListMessages(_ context.Context, _ pgtype.UUID, _, _ int32) ([]Message, error) {
	return m.messages, nil
}

func (m *mockQuerier) CountMessages(_ context.Context, _ pgtype.UUID) (int64, error) {
	return int64(len(m.messages)), nil
}

var testOwner = uuid.MustParse("00000000-0000-4000-8000-000000000001")

func TestEnsure_ReusesExistingID(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, testOwner, log.NewNop())

	existing := uuid.New()
	got, err := store.Ensure(context.Background(), existing.String(), "ignored")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if got != existing {
		t.Errorf("Ensure() = %s, want %s", got, existing)
	}
	if q.createdTitle != "" {
		t.Error("Ensure() created a conversation despite an existing id")
	}
}

func TestEnsure_CreatesWithTitle(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, testOwner, log.NewNop())

	got, err := store.Ensure(context.Background(), "", "What services do you offer?")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if got == uuid.Nil {
		t.Error("Ensure() returned nil id")
	}
	if q.createdTitle != "What services do you offer?" {
		t.Errorf("title = %q, want first user text", q.createdTitle)
	}
}

func TestEnsure_MalformedIDFallsBackToCreate(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, testOwner, log.NewNop())

	got, err := store.Ensure(context.Background(), "not-a-uuid", "hello")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if got == uuid.Nil {
		t.Error("Ensure() returned nil id")
	}
	if q.createdTitle != "hello" {
		t.Errorf("title = %q, want %q", q.createdTitle, "hello")
	}
}

func TestEnsure_CreateFailure(t *testing.T) {
	q := &mockQuerier{createErr: errors.New("insert failed")}
	store := New(q, testOwner, log.NewNop())

	if _, err := store.Ensure(context.Background(), "", "hello"); err == nil {
		t.Error("Ensure() = nil error, want create failure")
	}
}

func TestAppend_RecordsMessageAndTouches(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, testOwner, log.NewNop())

	tokens := int32(42)
	err := store.Append(context.Background(), uuid.New(), RoleAssistant, "answer", &tokens)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if q.insertedRole != RoleAssistant || q.insertedText != "answer" {
		t.Errorf("inserted %q/%q, want assistant/answer", q.insertedRole, q.insertedText)
	}
	if q.insertedToken == nil || *q.insertedToken != 42 {
		t.Errorf("tokens = %v, want 42", q.insertedToken)
	}
	if q.touchCalls != 1 {
		t.Errorf("touch calls = %d, want 1", q.touchCalls)
	}
}

func TestAppend_TouchFailureIsNonFatal(t *testing.T) {
	q := &mockQuerier{touchErr: errors.New("deadlock")}
	store := New(q, testOwner, log.NewNop())

	if err := store.Append(context.Background(), uuid.New(), RoleUser, "hi", nil); err != nil {
		t.Errorf("Append() = %v, want nil when only touch fails", err)
	}
}

func TestMessages_OwnershipCheckedFirst(t *testing.T) {
	q := &mockQuerier{getErr: ErrNotFound, messages: []Message{{Content: "leak"}}}
	store := New(q, testOwner, log.NewNop())

	_, _, err := store.Messages(context.Background(), uuid.New(), 100, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Messages() = %v, want ErrNotFound", err)
	}
}

func TestDelete_PropagatesNotFound(t *testing.T) {
	q := &mockQuerier{deleteErr: ErrNotFound}
	store := New(q, testOwner, log.NewNop())

	if err := store.Delete(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() = %v, want ErrNotFound", err)
	}
}

func TestTitleFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty uses placeholder", "", "New conversation"},
		{"short text kept verbatim", "Hello there", "Hello there"},
		{"long text truncated to 80", strings.Repeat("a", 100), strings.Repeat("a", 80)},
		{"exactly 80 kept", strings.Repeat("b", 80), strings.Repeat("b", 80)},
		{"multibyte truncated rune-safe", strings.Repeat("日", 100), strings.Repeat("日", 80)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TitleFromText(tt.text); got != tt.want {
				t.Errorf("TitleFromText() = %q, want %q", got, tt.want)
			}
		})
	}
}
