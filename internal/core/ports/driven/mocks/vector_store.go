package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Ensure MockVectorStore implements VectorStore
var _ driven.VectorStore = (*MockVectorStore)(nil)

// MockVectorStore is an in-memory VectorStore for testing.
// Distance is the fraction of query words absent from the chunk content.
type MockVectorStore struct {
	mu      sync.RWMutex
	records map[string]*domain.ChunkRecord
	order   []string
	nextID  int

	indexCalls int

	// Failure injection (optional)
	FailIndexAt  int // 1-based Index call that fails; 0 disables
	IndexErr     error
	QueryErr     error
	DeleteErr    error
	ListErr      error
	HealthErr    error
	DeleteCalls  []string
	DeleteWhereN int
}

// NewMockVectorStore creates a new MockVectorStore
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{
		records: make(map[string]*domain.ChunkRecord),
	}
}

func (m *MockVectorStore) Index(ctx context.Context, chunk *domain.Chunk) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.indexCalls++
	if m.IndexErr != nil && (m.FailIndexAt == 0 || m.FailIndexAt == m.indexCalls) {
		return "", m.IndexErr
	}

	m.nextID++
	id := fmt.Sprintf("chunk-%d", m.nextID)
	idx, total := chunk.ChunkIndex, chunk.TotalChunks
	m.records[id] = &domain.ChunkRecord{
		ID:          id,
		Content:     chunk.Content,
		Category:    string(chunk.Category),
		Label:       chunk.Label,
		GroupKey:    chunk.GroupKey,
		ChunkIndex:  &idx,
		TotalChunks: &total,
		CreatedAt:   chunk.CreatedAt,
	}
	m.order = append(m.order, id)
	return id, nil
}

func (m *MockVectorStore) Query(ctx context.Context, text string, category domain.Category, limit int) ([]*domain.SearchHit, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	words := strings.Fields(strings.ToLower(text))
	hits := make([]*domain.SearchHit, 0)
	for _, id := range m.order {
		rec, ok := m.records[id]
		if !ok || rec.Category != string(category) {
			continue
		}
		content := strings.ToLower(rec.Content)
		matched := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hit := &domain.SearchHit{
			ChunkID:  rec.ID,
			Content:  rec.Content,
			Category: domain.Category(rec.Category),
			Label:    rec.Label,
			GroupKey: rec.GroupKey,
			Distance: 1 - float64(matched)/float64(len(words)),
		}
		if rec.ChunkIndex != nil {
			hit.ChunkIndex = *rec.ChunkIndex
		}
		if rec.TotalChunks != nil {
			hit.TotalChunks = *rec.TotalChunks
		}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MockVectorStore) DeleteWhere(ctx context.Context, groupKey string, category domain.Category) (int, error) {
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteWhereN++
	removed := 0
	for id, rec := range m.records {
		if rec.GroupKey == groupKey && rec.Category == string(category) {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MockVectorStore) Delete(ctx context.Context, id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, id)
	delete(m.records, id)
	return nil
}

func (m *MockVectorStore) ListAll(ctx context.Context, category domain.Category) ([]*domain.ChunkRecord, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.ChunkRecord
	for _, id := range m.order {
		rec, ok := m.records[id]
		if !ok {
			continue
		}
		if category != "" && rec.Category != string(category) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *MockVectorStore) Get(ctx context.Context, id string) (*domain.ChunkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (m *MockVectorStore) HealthCheck(ctx context.Context) error {
	return m.HealthErr
}

// Helper methods for testing

// PutRecord stores a raw record as-is, e.g. a legacy record without position metadata
func (m *MockVectorStore) PutRecord(rec *domain.ChunkRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.ID]; !exists {
		m.order = append(m.order, rec.ID)
	}
	m.records[rec.ID] = rec
}

// Count returns the number of stored records
func (m *MockVectorStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// IndexCalls returns how many times Index was called
func (m *MockVectorStore) IndexCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexCalls
}
