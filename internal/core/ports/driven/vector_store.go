package driven

import (
	"context"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

// VectorStore embeds, stores and searches chunk records (Vespa, SQLite, in-memory).
// The store is the sole persistent owner of chunks.
type VectorStore interface {
	// Index embeds and stores one chunk and returns the store-assigned id
	Index(ctx context.Context, chunk *domain.Chunk) (string, error)

	// Query returns up to limit chunks of the given category ordered by
	// ascending distance. Zero matches is an empty slice and a nil error.
	Query(ctx context.Context, text string, category domain.Category, limit int) ([]*domain.SearchHit, error)

	// DeleteWhere removes every chunk with the exact group key and category
	// and returns how many were removed. Removing nothing is not an error.
	DeleteWhere(ctx context.Context, groupKey string, category domain.Category) (int, error)

	// Delete removes a single record by id. Missing ids are not an error.
	Delete(ctx context.Context, id string) error

	// ListAll returns every stored record, optionally restricted to one category
	ListAll(ctx context.Context, category domain.Category) ([]*domain.ChunkRecord, error)

	// Get returns one stored record or domain.ErrNotFound
	Get(ctx context.Context, id string) (*domain.ChunkRecord, error)

	// HealthCheck verifies the store is reachable
	HealthCheck(ctx context.Context) error
}
