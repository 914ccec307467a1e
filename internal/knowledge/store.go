package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds embedding plus vector search for one retrieval.
const searchTimeout = 10 * time.Second

// Querier defines the database operations Store needs. Interfaces are
// defined by the consumer so tests can substitute a mock.
type Querier interface {
	InsertEntry(ctx context.Context, ownerID pgtype.UUID, title, content string, embedding *pgvector.Vector) (Entry, error)
	UpdateEntry(ctx context.Context, id, ownerID pgtype.UUID, title, content string, embedding *pgvector.Vector) (Entry, error)
	DeleteEntry(ctx context.Context, id, ownerID pgtype.UUID) error
	GetEntry(ctx context.Context, id, ownerID pgtype.UUID) (Entry, error)
	ListEntries(ctx context.Context, ownerID pgtype.UUID, limit, offset int32) ([]Entry, error)
	CountEntries(ctx context.Context, ownerID pgtype.UUID) (int64, error)
	SearchEntries(ctx context.Context, ownerID pgtype.UUID, queryEmbedding *pgvector.Vector, limit int32) ([]Chunk, error)
}

// Store manages the knowledge base: it embeds entry text on write and
// serves cosine nearest-neighbor retrieval on read. All operations are
// scoped to the configured owner.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	ownerID  uuid.UUID
	logger   *slog.Logger
}

// New creates a Store bound to one owner's knowledge base.
func New(querier Querier, embedder ai.Embedder, ownerID uuid.UUID, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		ownerID:  ownerID,
		logger:   logger,
	}
}

// Add embeds an entry's text and stores it.
func (s *Store) Add(ctx context.Context, title, content string) (Entry, error) {
	embedding, err := s.embed(ctx, embeddingText(title, content))
	if err != nil {
		return Entry{}, err
	}

	entry, err := s.queries.InsertEntry(ctx, pgUUID(s.ownerID), title, content, embedding)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert entry: %w", err)
	}

	s.logger.Debug("added knowledge entry", "id", entry.ID, "title", title)
	return entry, nil
}

// Update re-embeds an entry's text and replaces the stored row.
func (s *Store) Update(ctx context.Context, id uuid.UUID, title, content string) (Entry, error) {
	embedding, err := s.embed(ctx, embeddingText(title, content))
	if err != nil {
		return Entry{}, err
	}

	entry, err := s.queries.UpdateEntry(ctx, pgUUID(id), pgUUID(s.ownerID), title, content, embedding)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("failed to update entry %s: %w", id, err)
	}

	s.logger.Debug("updated knowledge entry", "id", id, "title", title)
	return entry, nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.queries.DeleteEntry(ctx, pgUUID(id), pgUUID(s.ownerID)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete entry %s: %w", id, err)
	}
	return nil
}

// Get fetches a single entry.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	entry, err := s.queries.GetEntry(ctx, pgUUID(id), pgUUID(s.ownerID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("failed to get entry %s: %w", id, err)
	}
	return entry, nil
}

// List returns a page of entries plus the total count.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]Entry, int64, error) {
	entries, err := s.queries.ListEntries(ctx, pgUUID(s.ownerID), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list entries: %w", err)
	}
	total, err := s.queries.CountEntries(ctx, pgUUID(s.ownerID))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return entries, total, nil
}

// Retrieve embeds the query and returns the topK most similar entries.
// A timeout keeps slow vector searches from blocking the chat pipeline.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		return nil, err
	}

	limit := topK
	if limit <= 0 {
		limit = 5
	}
	chunks, err := s.queries.SearchEntries(queryCtx, pgUUID(s.ownerID), embedding, int32(limit))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	s.logger.Debug("retrieved knowledge chunks", "query_length", len(query), "count", len(chunks))
	return chunks, nil
}

func (s *Store) embed(ctx context.Context, text string) (*pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}

	v := pgvector.NewVector(resp.Embeddings[0].Embedding)
	return &v, nil
}

// embeddingText joins title and content the same way for writes and
// keeps titles searchable alongside body text.
func embeddingText(title, content string) string {
	return title + "\n" + content
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
