package driving

import (
	"context"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

// DocumentService manages logical documents as groups of chunks
type DocumentService interface {
	// Upload normalises, chunks and indexes a document.
	// A partial write returns the result together with an error wrapping domain.ErrPartialWrite.
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error)

	// List reassembles every document, optionally restricted to one category
	List(ctx context.Context, category domain.Category) ([]*domain.ChunkGroup, error)

	// Get reassembles the document that owns the given chunk id
	Get(ctx context.Context, id string) (*domain.ChunkGroup, error)

	// Update replaces the document that owns the given chunk id (delete then re-upload)
	Update(ctx context.Context, id string, req domain.UploadRequest) (*domain.UploadResult, error)

	// Delete removes the whole group that owns the given chunk id.
	// Deleting an unknown id is a no-op and returns zero.
	Delete(ctx context.Context, id string) (int, error)
}
