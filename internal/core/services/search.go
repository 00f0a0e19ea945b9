package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
	"github.com/custodia-labs/support-rag/internal/core/ports/driving"
)

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

// searchService runs the read path: retrieve, score, synthesize.
type searchService struct {
	retriever    *Retriever
	scorer       *ConfidenceScorer
	synthesizer  *Synthesizer
	queryLog     driven.QueryLogStore
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// SearchServiceConfig holds dependencies for the search service.
type SearchServiceConfig struct {
	Retriever   *Retriever
	Scorer      *ConfidenceScorer
	Synthesizer *Synthesizer

	// QueryLog is optional; recording failures never fail a query.
	QueryLog driven.QueryLogStore

	// DefaultLimit applies when a request leaves the limit unset
	DefaultLimit int
	MaxLimit     int
	Logger       *slog.Logger
}

// NewSearchService creates a new SearchService
func NewSearchService(cfg SearchServiceConfig) driving.SearchService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = NewConfidenceScorer(domain.DefaultConfidenceConfig())
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = domain.MaxRetrievalLimit
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = min(domain.DefaultRetrievalLimit, maxLimit)
	}

	return &searchService{
		retriever:    cfg.Retriever,
		scorer:       scorer,
		synthesizer:  cfg.Synthesizer,
		queryLog:     cfg.QueryLog,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger,
	}
}

// Retrieve returns ranked candidates without synthesis
func (s *searchService) Retrieve(ctx context.Context, req domain.QueryRequest) ([]*domain.SearchHit, error) {
	if req.Limit == 0 {
		req.Limit = s.defaultLimit
	}
	if err := req.Validate(s.maxLimit); err != nil {
		return nil, err
	}
	return s.retriever.Retrieve(ctx, req.Query, req.Category, req.Limit)
}

// Answer runs the full query pipeline
func (s *searchService) Answer(ctx context.Context, user string, req domain.QueryRequest) (*domain.Answer, error) {
	start := time.Now()

	if req.Limit == 0 {
		req.Limit = s.defaultLimit
	}
	if err := req.Validate(s.maxLimit); err != nil {
		return nil, err
	}

	hits, err := s.retriever.Retrieve(ctx, req.Query, req.Category, req.Limit)
	if err != nil {
		return nil, err
	}

	confidence, label := s.scorer.Score(hits)
	synthesis := s.synthesizer.Synthesize(ctx, req.Query, req.Category, hits)

	answer := &domain.Answer{
		Query:           req.Query,
		Category:        req.Category,
		Response:        synthesis.Response,
		Confidence:      confidence,
		ConfidenceLabel: label,
		Sources:         synthesis.Sources,
		Degraded:        synthesis.Degraded,
		Took:            time.Since(start),
	}

	s.logger.Debug("answered query",
		"category", req.Category,
		"hits", len(hits),
		"confidence", confidence,
		"degraded", synthesis.Degraded,
		"took", answer.Took,
	)

	s.record(ctx, user, answer)
	return answer, nil
}

// record appends the answer to the query log. Failures are logged only.
func (s *searchService) record(ctx context.Context, user string, answer *domain.Answer) {
	if s.queryLog == nil {
		return
	}

	entry := &domain.QueryLogEntry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		User:        user,
		Query:       answer.Query,
		Category:    answer.Category,
		Confidence:  answer.Confidence,
		Response:    answer.Response,
		SourceCount: len(answer.Sources),
		Degraded:    answer.Degraded,
	}
	if err := s.queryLog.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record query", "error", err)
	}
}
