package knowledge

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgxpool.Pool used by Queries.
// Satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the hand-written query layer for the knowledge base.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to the given database handle.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const insertEntrySQL = `
INSERT INTO knowledge_base (owner_id, title, content, embedding)
VALUES ($1, $2, $3, $4)
RETURNING id, owner_id, title, content, created_at, updated_at`

// InsertEntry stores a new entry with its embedding and returns the row.
func (q *Queries) InsertEntry(ctx context.Context, ownerID pgtype.UUID, title, content string, embedding *pgvector.Vector) (Entry, error) {
	return scanEntryRow(q.db.QueryRow(ctx, insertEntrySQL, ownerID, title, content, embedding))
}

const updateEntrySQL = `
UPDATE knowledge_base
SET title = $3, content = $4, embedding = $5, updated_at = now()
WHERE id = $1 AND owner_id = $2
RETURNING id, owner_id, title, content, created_at, updated_at`

// UpdateEntry replaces an entry's text and embedding, scoped to its owner.
func (q *Queries) UpdateEntry(ctx context.Context, id, ownerID pgtype.UUID, title, content string, embedding *pgvector.Vector) (Entry, error) {
	e, err := scanEntryRow(q.db.QueryRow(ctx, updateEntrySQL, id, ownerID, title, content, embedding))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

const deleteEntrySQL = `
DELETE FROM knowledge_base WHERE id = $1 AND owner_id = $2`

// DeleteEntry removes an entry scoped to its owner.
func (q *Queries) DeleteEntry(ctx context.Context, id, ownerID pgtype.UUID) error {
	tag, err := q.db.Exec(ctx, deleteEntrySQL, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const getEntrySQL = `
SELECT id, owner_id, title, content, created_at, updated_at
FROM knowledge_base
WHERE id = $1 AND owner_id = $2`

// GetEntry fetches a single entry scoped to its owner.
func (q *Queries) GetEntry(ctx context.Context, id, ownerID pgtype.UUID) (Entry, error) {
	e, err := scanEntryRow(q.db.QueryRow(ctx, getEntrySQL, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

const listEntriesSQL = `
SELECT id, owner_id, title, content, created_at, updated_at
FROM knowledge_base
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

// ListEntries returns entries for an owner, newest first.
func (q *Queries) ListEntries(ctx context.Context, ownerID pgtype.UUID, limit, offset int32) ([]Entry, error) {
	rows, err := q.db.Query(ctx, listEntriesSQL, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const countEntriesSQL = `
SELECT count(*) FROM knowledge_base WHERE owner_id = $1`

// CountEntries returns the number of entries for an owner.
func (q *Queries) CountEntries(ctx context.Context, ownerID pgtype.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countEntriesSQL, ownerID).Scan(&n)
	return n, err
}

const searchEntriesSQL = `
SELECT id, title, content, 1 - (embedding <=> $2) AS similarity
FROM knowledge_base
WHERE owner_id = $1 AND embedding IS NOT NULL
ORDER BY embedding <=> $2
LIMIT $3`

// SearchEntries performs cosine nearest-neighbor search over an owner's
// entries and returns the closest matches with their similarity scores.
func (q *Queries) SearchEntries(ctx context.Context, ownerID pgtype.UUID, queryEmbedding *pgvector.Vector, limit int32) ([]Chunk, error) {
	rows, err := q.db.Query(ctx, searchEntriesSQL, ownerID, queryEmbedding, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var (
			c          Chunk
			id         pgtype.UUID
			similarity float64
		)
		if err := rows.Scan(&id, &c.Title, &c.Content, &similarity); err != nil {
			return nil, err
		}
		c.ID = id.Bytes
		c.Similarity = float32(similarity)
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanEntryRow(row pgx.Row) (Entry, error) {
	var (
		e            Entry
		id, owner    pgtype.UUID
		created, upd pgtype.Timestamptz
	)
	if err := row.Scan(&id, &owner, &e.Title, &e.Content, &created, &upd); err != nil {
		return Entry{}, err
	}
	e.ID = id.Bytes
	e.OwnerID = owner.Bytes
	e.CreatedAt = created.Time
	e.UpdatedAt = upd.Time
	return e, nil
}

func scanEntryRows(rows pgx.Rows) (Entry, error) {
	var (
		e            Entry
		id, owner    pgtype.UUID
		created, upd pgtype.Timestamptz
	)
	if err := rows.Scan(&id, &owner, &e.Title, &e.Content, &created, &upd); err != nil {
		return Entry{}, err
	}
	e.ID = id.Bytes
	e.OwnerID = owner.Bytes
	e.CreatedAt = created.Time
	e.UpdatedAt = upd.Time
	return e, nil
}
