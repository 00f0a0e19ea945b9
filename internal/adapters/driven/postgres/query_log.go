package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.QueryLogStore = (*QueryLogStore)(nil)

// DefaultRecentLimit caps Recent when no limit is given
const DefaultRecentLimit = 50

// QueryLogStore implements driven.QueryLogStore using PostgreSQL
type QueryLogStore struct {
	db *DB
}

// NewQueryLogStore creates a new QueryLogStore
func NewQueryLogStore(db *DB) *QueryLogStore {
	return &QueryLogStore{db: db}
}

// Record appends one answered query
func (s *QueryLogStore) Record(ctx context.Context, entry *domain.QueryLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO query_log (id, created_at, username, query, category, confidence, response, source_count, degraded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		entry.User,
		entry.Query,
		string(entry.Category),
		entry.Confidence,
		entry.Response,
		entry.SourceCount,
		entry.Degraded,
	)
	if err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	return nil
}

// Recent returns the newest entries first
func (s *QueryLogStore) Recent(ctx context.Context, limit int) ([]*domain.QueryLogEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `
		SELECT id, created_at, username, query, category, confidence, response, source_count, degraded
		FROM query_log
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.QueryLogEntry
	for rows.Next() {
		var e domain.QueryLogEntry
		var category string
		if err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.User,
			&e.Query,
			&category,
			&e.Confidence,
			&e.Response,
			&e.SourceCount,
			&e.Degraded,
		); err != nil {
			return nil, err
		}
		e.Category = domain.Category(category)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
