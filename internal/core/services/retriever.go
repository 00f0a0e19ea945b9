package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Retriever runs category-scoped semantic queries against the vector store.
type Retriever struct {
	store        driven.VectorStore
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// RetrieverConfig holds dependencies for Retriever.
type RetrieverConfig struct {
	Store        driven.VectorStore
	DefaultLimit int
	MaxLimit     int
	Logger       *slog.Logger
}

// NewRetriever creates a retriever. Zero limits fall back to the domain defaults.
func NewRetriever(cfg RetrieverConfig) *Retriever {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = domain.DefaultRetrievalLimit
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = domain.MaxRetrievalLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	return &Retriever{
		store:        cfg.Store,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger,
	}
}

// Retrieve returns up to limit hits for query within category, most similar first.
// No hits is an empty slice and a nil error; a store failure wraps
// domain.ErrServiceUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string, category domain.Category, limit int) ([]*domain.SearchHit, error) {
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}
	if limit <= 0 {
		limit = r.defaultLimit
	}
	if limit > r.maxLimit {
		limit = r.maxLimit
	}

	hits, err := r.store.Query(ctx, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", domain.ErrServiceUnavailable, err)
	}

	scoped := make([]*domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h == nil || h.Category != category {
			continue
		}
		scoped = append(scoped, h)
	}
	sort.SliceStable(scoped, func(i, j int) bool {
		return scoped[i].Distance < scoped[j].Distance
	})
	if len(scoped) > limit {
		scoped = scoped[:limit]
	}

	r.logger.Debug("retrieved candidates",
		"category", category,
		"limit", limit,
		"hits", len(scoped),
	)
	return scoped, nil
}
