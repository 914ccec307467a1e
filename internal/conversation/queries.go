package conversation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgxpool.Pool used by Queries.
// Satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the hand-written query layer for conversations and messages.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to the given database handle.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const createConversationSQL = `
INSERT INTO conversations (owner_id, title)
VALUES ($1, $2)
RETURNING id, owner_id, title, created_at, updated_at`

// CreateConversation inserts a conversation and returns the stored row.
func (q *Queries) CreateConversation(ctx context.Context, ownerID pgtype.UUID, title string) (Conversation, error) {
	var (
		c         Conversation
		id, owner pgtype.UUID
		created   pgtype.Timestamptz
		updated   pgtype.Timestamptz
	)
	err := q.db.QueryRow(ctx, createConversationSQL, ownerID, title).
		Scan(&id, &owner, &c.Title, &created, &updated)
	if err != nil {
		return Conversation{}, err
	}
	c.ID = id.Bytes
	c.OwnerID = owner.Bytes
	c.CreatedAt = created.Time
	c.UpdatedAt = updated.Time
	return c, nil
}

const getConversationSQL = `
SELECT id, owner_id, title, created_at, updated_at
FROM conversations
WHERE id = $1 AND owner_id = $2`

// GetConversation fetches a conversation scoped to its owner.
func (q *Queries) GetConversation(ctx context.Context, id, ownerID pgtype.UUID) (Conversation, error) {
	var (
		c            Conversation
		cid, owner   pgtype.UUID
		created, upd pgtype.Timestamptz
	)
	err := q.db.QueryRow(ctx, getConversationSQL, id, ownerID).
		Scan(&cid, &owner, &c.Title, &created, &upd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	c.ID = cid.Bytes
	c.OwnerID = owner.Bytes
	c.CreatedAt = created.Time
	c.UpdatedAt = upd.Time
	return c, nil
}

const listConversationsSQL = `
SELECT id, owner_id, title, created_at, updated_at
FROM conversations
WHERE owner_id = $1
ORDER BY updated_at DESC
LIMIT $2 OFFSET $3`

// ListConversations returns conversations for an owner, newest activity first.
func (q *Queries) ListConversations(ctx context.Context, ownerID pgtype.UUID, limit, offset int32) ([]Conversation, error) {
	rows, err := q.db.Query(ctx, listConversationsSQL, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var (
			c            Conversation
			cid, owner   pgtype.UUID
			created, upd pgtype.Timestamptz
		)
		if err := rows.Scan(&cid, &owner, &c.Title, &created, &upd); err != nil {
			return nil, err
		}
		c.ID = cid.Bytes
		c.OwnerID = owner.Bytes
		c.CreatedAt = created.Time
		c.UpdatedAt = upd.Time
		out = append(out, c)
	}
	return out, rows.Err()
}

const countConversationsSQL = `
SELECT count(*) FROM conversations WHERE owner_id = $1`

// CountConversations returns the number of conversations for an owner.
func (q *Queries) CountConversations(ctx context.Context, ownerID pgtype.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countConversationsSQL, ownerID).Scan(&n)
	return n, err
}

const deleteConversationSQL = `
DELETE FROM conversations WHERE id = $1 AND owner_id = $2`

// DeleteConversation removes a conversation and its messages (CASCADE).
func (q *Queries) DeleteConversation(ctx context.Context, id, ownerID pgtype.UUID) error {
	tag, err := q.db.Exec(ctx, deleteConversationSQL, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const insertMessageSQL = `
INSERT INTO messages (conversation_id, role, content, tokens_used)
VALUES ($1, $2, $3, $4)`

// InsertMessage appends one message row.
func (q *Queries) InsertMessage(ctx context.Context, conversationID pgtype.UUID, role, content string, tokensUsed *int32) error {
	_, err := q.db.Exec(ctx, insertMessageSQL, conversationID, role, content, tokensUsed)
	return err
}

const touchConversationSQL = `
UPDATE conversations SET updated_at = now() WHERE id = $1`

// TouchConversation bumps a conversation's updated_at after new activity.
func (q *Queries) TouchConversation(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, touchConversationSQL, id)
	return err
}

const listMessagesSQL = `
SELECT id, conversation_id, role, content, tokens_used, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at ASC
LIMIT $2 OFFSET $3`

// ListMessages returns messages for a conversation in chronological order.
func (q *Queries) ListMessages(ctx context.Context, conversationID pgtype.UUID, limit, offset int32) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessagesSQL, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m        Message
			mid, cid pgtype.UUID
			created  pgtype.Timestamptz
		)
		if err := rows.Scan(&mid, &cid, &m.Role, &m.Content, &m.TokensUsed, &created); err != nil {
			return nil, err
		}
		m.ID = mid.Bytes
		m.ConversationID = cid.Bytes
		m.CreatedAt = created.Time
		out = append(out, m)
	}
	return out, rows.Err()
}

const countMessagesSQL = `
SELECT count(*) FROM messages WHERE conversation_id = $1`

// CountMessages returns the number of messages in a conversation.
func (q *Queries) CountMessages(ctx context.Context, conversationID pgtype.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countMessagesSQL, conversationID).Scan(&n)
	return n, err
}
