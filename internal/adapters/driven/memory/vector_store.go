package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/support-rag/internal/adapters/driven/vectorutil"
	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

var errNoEmbedder = errors.New("memory: no embedding service configured")

type entry struct {
	record *domain.ChunkRecord
	vector []float32
}

// VectorStore is an in-process VectorStore using brute-force cosine distance.
// Contents are lost on restart.
type VectorStore struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	order    []string
	embedder driven.EmbeddingService
}

// NewVectorStore creates an empty in-memory store
func NewVectorStore(embedder driven.EmbeddingService) *VectorStore {
	return &VectorStore{
		entries:  make(map[string]*entry),
		embedder: embedder,
	}
}

func (s *VectorStore) Index(ctx context.Context, chunk *domain.Chunk) (string, error) {
	if s.embedder == nil {
		return "", errNoEmbedder
	}
	vectors, err := s.embedder.Embed(ctx, []string{chunk.Content})
	if err != nil {
		return "", fmt.Errorf("embed chunk: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return "", fmt.Errorf("embed chunk: no embedding returned")
	}

	id := uuid.NewString()
	idx, total := chunk.ChunkIndex, chunk.TotalChunks

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry{
		record: &domain.ChunkRecord{
			ID:          id,
			Content:     chunk.Content,
			Category:    string(chunk.Category),
			Label:       chunk.Label,
			GroupKey:    chunk.GroupKey,
			ChunkIndex:  &idx,
			TotalChunks: &total,
			CreatedAt:   chunk.CreatedAt,
		},
		vector: vectors[0],
	}
	s.order = append(s.order, id)
	return id, nil
}

func (s *VectorStore) Query(ctx context.Context, text string, category domain.Category, limit int) ([]*domain.SearchHit, error) {
	if s.embedder == nil {
		return nil, errNoEmbedder
	}
	q, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]*domain.SearchHit, 0)
	for _, id := range s.order {
		e, ok := s.entries[id]
		if !ok || e.record.Category != string(category) {
			continue
		}
		hits = append(hits, vectorutil.HitFromRecord(e.record, vectorutil.CosineDistance(q, e.vector)))
	}
	return vectorutil.RankHits(hits, limit), nil
}

func (s *VectorStore) DeleteWhere(ctx context.Context, groupKey string, category domain.Category) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if e.record.GroupKey == groupKey && e.record.Category == string(category) {
			delete(s.entries, id)
			removed++
		}
	}
	s.compact()
	return removed, nil
}

func (s *VectorStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	s.compact()
	return nil
}

func (s *VectorStore) ListAll(ctx context.Context, category domain.Category) ([]*domain.ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*domain.ChunkRecord, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		if category != "" && e.record.Category != string(category) {
			continue
		}
		rec := *e.record
		records = append(records, &rec)
	}
	return records, nil
}

func (s *VectorStore) Get(ctx context.Context, id string) (*domain.ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec := *e.record
	return &rec, nil
}

func (s *VectorStore) HealthCheck(ctx context.Context) error {
	return nil
}

// compact drops deleted ids from the insertion order. Caller holds the write lock.
func (s *VectorStore) compact() {
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.entries[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
}
