package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Indexer submits single chunks to the vector store.
// It performs no retries; a failure is reported to the caller as-is.
type Indexer struct {
	store  driven.VectorStore
	logger *slog.Logger
}

// NewIndexer creates an indexer over the given store.
func NewIndexer(store driven.VectorStore, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, logger: logger}
}

// Index stores one chunk and returns the store-assigned id.
func (i *Indexer) Index(ctx context.Context, chunk *domain.Chunk) (string, error) {
	id, err := i.store.Index(ctx, chunk)
	if err != nil {
		return "", fmt.Errorf("index chunk %d/%d of %q: %w", chunk.ChunkIndex+1, chunk.TotalChunks, chunk.GroupKey, err)
	}
	if id == "" {
		return "", fmt.Errorf("index chunk %d/%d of %q: store returned no id", chunk.ChunkIndex+1, chunk.TotalChunks, chunk.GroupKey)
	}

	i.logger.Debug("indexed chunk",
		"id", id,
		"group_key", chunk.GroupKey,
		"chunk_index", chunk.ChunkIndex,
		"total_chunks", chunk.TotalChunks,
	)
	return id, nil
}
