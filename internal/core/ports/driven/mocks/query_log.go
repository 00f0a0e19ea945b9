package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Ensure MockQueryLogStore implements QueryLogStore
var _ driven.QueryLogStore = (*MockQueryLogStore)(nil)

// MockQueryLogStore is a mock implementation of QueryLogStore for testing
type MockQueryLogStore struct {
	mu      sync.RWMutex
	entries []*domain.QueryLogEntry

	RecordErr error
}

// NewMockQueryLogStore creates a new MockQueryLogStore
func NewMockQueryLogStore() *MockQueryLogStore {
	return &MockQueryLogStore{}
}

func (m *MockQueryLogStore) Record(ctx context.Context, entry *domain.QueryLogEntry) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockQueryLogStore) Recent(ctx context.Context, limit int) ([]*domain.QueryLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.QueryLogEntry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		out = append(out, m.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Entries returns all recorded entries in insertion order
func (m *MockQueryLogStore) Entries() []*domain.QueryLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.QueryLogEntry(nil), m.entries...)
}
