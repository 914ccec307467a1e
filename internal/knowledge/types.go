package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a knowledge base record as stored in PostgreSQL.
type Entry struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is a retrieval result: an entry's text plus its cosine
// similarity to the query, in [0, 1] where 1 is an exact match.
type Chunk struct {
	ID         uuid.UUID
	Title      string
	Content    string
	Similarity float32
}
