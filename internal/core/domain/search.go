package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultRetrievalLimit is used when a query does not set a limit
	DefaultRetrievalLimit = 5

	// MaxRetrievalLimit caps the number of candidates a single query may request
	MaxRetrievalLimit = 50
)

// QueryRequest is a question scoped to one category
type QueryRequest struct {
	Query    string   `json:"query"`
	Category Category `json:"category"`
	Limit    int      `json:"limit,omitempty"`
}

// Validate checks the query and category and normalises the limit
func (q *QueryRequest) Validate(maxLimit int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if q.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if !q.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, q.Category)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	if q.Limit == 0 {
		q.Limit = DefaultRetrievalLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxRetrievalLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// SearchHit is one candidate chunk returned by the vector store.
// Distance is the store-reported dissimilarity, 0 meaning identical.
type SearchHit struct {
	ChunkID     string   `json:"id"`
	Content     string   `json:"content"`
	Category    Category `json:"category"`
	Label       string   `json:"label"`
	GroupKey    string   `json:"group_key"`
	ChunkIndex  int      `json:"chunk_index"`
	TotalChunks int      `json:"total_chunks"`
	Distance    float64  `json:"distance"`
}

// Source is a candidate that was included in the grounding prompt
type Source struct {
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
	Label    string  `json:"label"`
}

// Answer is the response to a query
type Answer struct {
	Query           string        `json:"query"`
	Category        Category      `json:"category"`
	Response        string        `json:"response"`
	Confidence      float64       `json:"confidence"`
	ConfidenceLabel string        `json:"confidence_label"`
	Sources         []Source      `json:"sources"`
	Degraded        bool          `json:"degraded,omitempty"`
	Took            time.Duration `json:"took" swaggertype:"integer" example:"1500000"`
}

// QueryLogEntry records one answered query
type QueryLogEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	Query       string    `json:"query"`
	Category    Category  `json:"category"`
	Confidence  float64   `json:"confidence"`
	Response    string    `json:"response"`
	SourceCount int       `json:"source_count"`
	Degraded    bool      `json:"degraded"`
}
