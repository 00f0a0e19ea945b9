package driven

import (
	"context"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

// QueryLogStore keeps an audit trail of answered queries (PostgreSQL)
type QueryLogStore interface {
	// Record appends one entry
	Record(ctx context.Context, entry *domain.QueryLogEntry) error

	// Recent returns the newest entries first
	Recent(ctx context.Context, limit int) ([]*domain.QueryLogEntry, error)
}
