package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DefaultMinContentLength is the minimum number of characters an upload must carry
const DefaultMinContentLength = 10

// UploadRequest is a logical document submitted for indexing
type UploadRequest struct {
	Content  string   `json:"content"`
	Label    string   `json:"metadata"`
	Category Category `json:"category"`
}

// Validate checks that all fields are present and content meets minLen.
// A non-positive minLen falls back to DefaultMinContentLength.
func (r *UploadRequest) Validate(minLen int) error {
	if minLen <= 0 {
		minLen = DefaultMinContentLength
	}
	content := strings.TrimSpace(r.Content)
	if content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Label) == "" {
		return fmt.Errorf("%w: metadata label is required", ErrInvalidInput)
	}
	if strings.IndexFunc(r.Label, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: metadata label contains control characters", ErrInvalidInput)
	}
	if r.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if !r.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, r.Category)
	}
	if utf8.RuneCountInString(content) < minLen {
		return fmt.Errorf("%w: need at least %d characters", ErrContentTooShort, minLen)
	}
	return nil
}

// GroupKey returns the key shared by every chunk of one logical document
func GroupKey(label string, category Category) string {
	return string(category) + ":" + strings.TrimSpace(label)
}

// LegacyGroupKey returns the key of the singleton group a legacy record is
// repaired into. It never collides with GroupKey output.
func LegacyGroupKey(id string) string {
	return "legacy:" + id
}

// IsLegacyGroupKey reports whether key was produced by LegacyGroupKey
func IsLegacyGroupKey(key string) bool {
	return strings.HasPrefix(key, "legacy:")
}

// Chunk is one stored slice of a document. Chunks are never mutated;
// an edit replaces the whole group.
type Chunk struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Category    Category  `json:"category"`
	Label       string    `json:"label"`
	GroupKey    string    `json:"group_key"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordStatus classifies a decoded store record
type RecordStatus string

const (
	RecordComplete RecordStatus = "complete"
	RecordLegacy   RecordStatus = "legacy"
)

// ChunkRecord is a chunk as read back from a vector store. Position
// fields are optional because records written by older versions lack them.
type ChunkRecord struct {
	ID          string
	Content     string
	Category    string
	Label       string
	GroupKey    string
	ChunkIndex  *int
	TotalChunks *int
	CreatedAt   time.Time
}

// Decode converts a stored record into a Chunk.
//
// A record without content or with an unknown category is rejected with
// ErrInvalidRecord. A record missing its position metadata is classified
// as legacy and repaired as index 0 of a singleton group keyed by its id.
func (r *ChunkRecord) Decode() (*Chunk, RecordStatus, error) {
	if strings.TrimSpace(r.Content) == "" {
		return nil, "", fmt.Errorf("%w: record %s has no content", ErrInvalidRecord, r.ID)
	}
	category := Category(r.Category)
	if !category.IsValid() {
		return nil, "", fmt.Errorf("%w: record %s has category %q", ErrInvalidRecord, r.ID, r.Category)
	}

	chunk := &Chunk{
		ID:        r.ID,
		Content:   r.Content,
		Category:  category,
		Label:     r.Label,
		GroupKey:  r.GroupKey,
		CreatedAt: r.CreatedAt,
	}

	if r.ChunkIndex == nil || r.TotalChunks == nil || *r.TotalChunks < 1 ||
		*r.ChunkIndex < 0 || *r.ChunkIndex >= *r.TotalChunks {
		chunk.GroupKey = LegacyGroupKey(r.ID)
		chunk.ChunkIndex = 0
		chunk.TotalChunks = 1
		return chunk, RecordLegacy, nil
	}

	if chunk.GroupKey == "" {
		chunk.GroupKey = GroupKey(r.Label, category)
	}

	chunk.ChunkIndex = *r.ChunkIndex
	chunk.TotalChunks = *r.TotalChunks
	return chunk, RecordComplete, nil
}

// ChunkGroup is the read-time view of one logical document. It is
// rebuilt on every read and never stored.
type ChunkGroup struct {
	ID          string   `json:"id"`
	GroupKey    string   `json:"group_key"`
	Label       string   `json:"metadata"`
	Category    Category `json:"category"`
	Content     string   `json:"content"`
	ChunkCount  int      `json:"chunk_count"`
	TotalChunks int      `json:"total_chunks"`
	Missing     []int    `json:"missing_chunks,omitempty"`
	Complete    bool     `json:"complete"`
	Chunks      []*Chunk `json:"-"`
}

// NewChunkGroup assembles chunks that share a group key. Chunks are
// ordered by index (ties by id) and joined with single spaces. Gaps and
// duplicate indices mark the group incomplete but never fail.
func NewChunkGroup(chunks []*Chunk) *ChunkGroup {
	if len(chunks) == 0 {
		return nil
	}

	ordered := make([]*Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ChunkIndex != ordered[j].ChunkIndex {
			return ordered[i].ChunkIndex < ordered[j].ChunkIndex
		}
		return ordered[i].ID < ordered[j].ID
	})

	first := ordered[0]
	group := &ChunkGroup{
		ID:         first.ID,
		GroupKey:   first.GroupKey,
		Label:      first.Label,
		Category:   first.Category,
		ChunkCount: len(ordered),
		Chunks:     ordered,
	}

	seen := make(map[int]bool, len(ordered))
	duplicate := false
	parts := make([]string, 0, len(ordered))
	for _, c := range ordered {
		if c.TotalChunks > group.TotalChunks {
			group.TotalChunks = c.TotalChunks
		}
		if seen[c.ChunkIndex] {
			duplicate = true
		}
		seen[c.ChunkIndex] = true
		parts = append(parts, strings.TrimSpace(c.Content))
	}
	group.Content = strings.Join(parts, " ")

	for i := 0; i < group.TotalChunks; i++ {
		if !seen[i] {
			group.Missing = append(group.Missing, i)
		}
	}
	group.Complete = len(group.Missing) == 0 && !duplicate
	return group
}

// GroupChunks partitions chunks by group key and assembles each group.
// Groups are returned ordered by category then label.
func GroupChunks(chunks []*Chunk) []*ChunkGroup {
	byKey := make(map[string][]*Chunk)
	for _, c := range chunks {
		byKey[c.GroupKey] = append(byKey[c.GroupKey], c)
	}

	groups := make([]*ChunkGroup, 0, len(byKey))
	for _, members := range byKey {
		groups = append(groups, NewChunkGroup(members))
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Category != groups[j].Category {
			return groups[i].Category < groups[j].Category
		}
		if groups[i].Label != groups[j].Label {
			return groups[i].Label < groups[j].Label
		}
		return groups[i].GroupKey < groups[j].GroupKey
	})
	return groups
}

// UploadResult reports how much of a document reached the store
type UploadResult struct {
	DocumentID      string   `json:"id,omitempty"`
	GroupKey        string   `json:"group_key"`
	ChunksRequested int      `json:"chunks_requested"`
	ChunksStored    int      `json:"chunks_stored"`
	ChunkIDs        []string `json:"chunk_ids,omitempty"`
	RolledBack      bool     `json:"rolled_back,omitempty"`
}

// Partial returns true if fewer chunks were stored than requested
func (r *UploadResult) Partial() bool {
	return r.ChunksStored < r.ChunksRequested
}
