// Package conversation manages chat threads and their persisted messages.
package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Querier defines the database operations Store depends on.
// Following Go convention, the interface is defined by the consumer so that
// tests can substitute a mock implementation.
type Querier interface {
	CreateConversation(ctx context.Context, ownerID pgtype.UUID, title string) (Conversation, error)
	GetConversation(ctx context.Context, id, ownerID pgtype.UUID) (Conversation, error)
	ListConversations(ctx context.Context, ownerID pgtype.UUID, limit, offset int32) ([]Conversation, error)
	CountConversations(ctx context.Context, ownerID pgtype.UUID) (int64, error)
	DeleteConversation(ctx context.Context, id, ownerID pgtype.UUID) error
	InsertMessage(ctx context.Context, conversationID pgtype.UUID, role, content string, tokensUsed *int32) error
	TouchConversation(ctx context.Context, id pgtype.UUID) error
	ListMessages(ctx context.Context, conversationID pgtype.UUID, limit, offset int32) ([]Message, error)
	CountMessages(ctx context.Context, conversationID pgtype.UUID) (int64, error)
}

// Store persists conversations and messages for a single owner account.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	ownerID uuid.UUID
	logger  *slog.Logger
}

// New creates a Store scoped to the deployment's fixed owner identity.
func New(querier Querier, ownerID uuid.UUID, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		querier: querier,
		ownerID: ownerID,
		logger:  logger,
	}
}

// OwnerID returns the fixed owner identity this store is scoped to.
func (s *Store) OwnerID() uuid.UUID {
	return s.ownerID
}

// Ensure resolves the conversation for a chat request.
//
// When existingID is a valid UUID it is reused verbatim: the widget caches the
// id client-side and the store trusts it, relying on owner scoping at the row
// level rather than a per-request existence check. Otherwise a new
// conversation is created, titled from the first user message.
func (s *Store) Ensure(ctx context.Context, existingID, firstUserText string) (uuid.UUID, error) {
	if existingID != "" {
		id, err := uuid.Parse(existingID)
		if err == nil {
			return id, nil
		}
		s.logger.Warn("ignoring malformed conversation id", "id", existingID)
	}

	conv, err := s.querier.CreateConversation(ctx, pgUUID(s.ownerID), TitleFromText(firstUserText))
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "title", conv.Title)
	return conv.ID, nil
}

// Append persists one message turn and bumps the conversation's activity
// timestamp. tokensUsed may be nil when the provider reported no usage.
func (s *Store) Append(ctx context.Context, conversationID uuid.UUID, role, content string, tokensUsed *int32) error {
	if err := s.querier.InsertMessage(ctx, pgUUID(conversationID), role, content, tokensUsed); err != nil {
		return fmt.Errorf("inserting %s message: %w", role, err)
	}

	// Activity timestamp is advisory; a failure here should not fail the append.
	if err := s.querier.TouchConversation(ctx, pgUUID(conversationID)); err != nil {
		s.logger.Warn("updating conversation activity", "error", err, "conversation_id", conversationID)
	}
	return nil
}

// Get fetches a conversation owned by this deployment's account.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Conversation, error) {
	conv, err := s.querier.GetConversation(ctx, pgUUID(id), pgUUID(s.ownerID))
	if err != nil {
		return Conversation{}, fmt.Errorf("getting conversation %s: %w", id, err)
	}
	return conv, nil
}

// List returns conversations for the owner with pagination, newest first,
// along with the total count.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]Conversation, int64, error) {
	convs, err := s.querier.ListConversations(ctx, pgUUID(s.ownerID), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing conversations: %w", err)
	}

	total, err := s.querier.CountConversations(ctx, pgUUID(s.ownerID))
	if err != nil {
		return nil, 0, fmt.Errorf("counting conversations: %w", err)
	}

	return convs, total, nil
}

// Messages returns a conversation's messages in chronological order, along
// with the total count. The conversation must belong to the owner.
func (s *Store) Messages(ctx context.Context, id uuid.UUID, limit, offset int32) ([]Message, int64, error) {
	// Ownership check first so a foreign id yields ErrNotFound, not rows.
	if _, err := s.querier.GetConversation(ctx, pgUUID(id), pgUUID(s.ownerID)); err != nil {
		return nil, 0, err
	}

	msgs, err := s.querier.ListMessages(ctx, pgUUID(id), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing messages: %w", err)
	}

	total, err := s.querier.CountMessages(ctx, pgUUID(id))
	if err != nil {
		return nil, 0, fmt.Errorf("counting messages: %w", err)
	}

	return msgs, total, nil
}

// Delete removes a conversation and its messages. Returns ErrNotFound when
// the id does not exist under this owner.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.querier.DeleteConversation(ctx, pgUUID(id), pgUUID(s.ownerID)); err != nil {
		return err
	}
	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// TitleFromText derives a conversation title from the first user message:
// the first 80 characters, or a placeholder when the text is empty.
// Truncation is rune-safe so multibyte text is never split mid-character.
func TitleFromText(text string) string {
	if text == "" {
		return placeholderTitle
	}
	runes := []rune(text)
	if len(runes) > maxTitleRunes {
		return string(runes[:maxTitleRunes])
	}
	return text
}

// pgUUID converts uuid.UUID to pgtype.UUID.
func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
