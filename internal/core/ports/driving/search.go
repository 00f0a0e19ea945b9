package driving

import (
	"context"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

// SearchService answers questions over the indexed documents
type SearchService interface {
	// Retrieve returns ranked candidate chunks without synthesis
	Retrieve(ctx context.Context, req domain.QueryRequest) ([]*domain.SearchHit, error)

	// Answer runs retrieval, confidence scoring and answer synthesis.
	// user is recorded in the query log when one is configured.
	Answer(ctx context.Context, user string, req domain.QueryRequest) (*domain.Answer, error)
}
