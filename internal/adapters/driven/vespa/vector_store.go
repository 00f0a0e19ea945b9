package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

const (
	documentType = "chunk"

	// distanceFeature is the match feature carrying the angular distance
	distanceFeature = "distance(field,embedding)"

	visitPageSize = 200
)

var errNoEmbedder = errors.New("vespa: no embedding service configured")

// VectorStore implements driven.VectorStore using the Vespa document and search APIs.
// Embeddings are computed client-side and fed with each chunk.
type VectorStore struct {
	baseURL    string
	namespace  string
	cluster    string
	targetHits int
	embedder   driven.EmbeddingService
	httpClient *http.Client
}

// Config holds Vespa connection configuration
type Config struct {
	// BaseURL is the Vespa container endpoint (e.g., http://localhost:8080)
	BaseURL string

	// Namespace is the document/v1 namespace
	Namespace string

	// Cluster is the content cluster used for selection deletes
	Cluster string

	// TargetHits is the nearestNeighbor candidate count per query
	TargetHits int

	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Namespace:  "support",
		Cluster:    "support",
		TargetHits: 100,
		Timeout:    30 * time.Second,
	}
}

// NewVectorStore creates a new Vespa-backed VectorStore
func NewVectorStore(cfg Config, embedder driven.EmbeddingService) *VectorStore {
	if cfg.Namespace == "" {
		cfg.Namespace = "support"
	}
	if cfg.Cluster == "" {
		cfg.Cluster = "support"
	}
	if cfg.TargetHits <= 0 {
		cfg.TargetHits = 100
	}
	return &VectorStore{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		namespace:  cfg.Namespace,
		cluster:    cfg.Cluster,
		targetHits: cfg.TargetHits,
		embedder:   embedder,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// vespaDocument represents a document in Vespa feed format
type vespaDocument struct {
	Fields vespaFields `json:"fields"`
}

type vespaFields struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Label       string    `json:"label"`
	GroupKey    string    `json:"group_key,omitempty"`
	ChunkIndex  *int      `json:"chunk_index,omitempty"`
	TotalChunks *int      `json:"total_chunks,omitempty"`
	CreatedAt   int64     `json:"created_at,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

func (f vespaFields) record() *domain.ChunkRecord {
	rec := &domain.ChunkRecord{
		ID:          f.ID,
		Content:     f.Content,
		Category:    f.Category,
		Label:       f.Label,
		GroupKey:    f.GroupKey,
		ChunkIndex:  f.ChunkIndex,
		TotalChunks: f.TotalChunks,
	}
	if f.CreatedAt > 0 {
		rec.CreatedAt = time.Unix(f.CreatedAt, 0).UTC()
	}
	return rec
}

// Index embeds and feeds one chunk, returning its generated id
func (s *VectorStore) Index(ctx context.Context, chunk *domain.Chunk) (string, error) {
	if s.embedder == nil {
		return "", errNoEmbedder
	}

	embeddings, err := s.embedder.Embed(ctx, []string{chunk.Content})
	if err != nil {
		return "", fmt.Errorf("embed chunk: %w", err)
	}
	if len(embeddings) != 1 || len(embeddings[0]) == 0 {
		return "", fmt.Errorf("embed chunk: no embedding returned")
	}

	id := chunk.ID
	if id == "" {
		id = uuid.NewString()
	}
	idx, total := chunk.ChunkIndex, chunk.TotalChunks
	doc := vespaDocument{
		Fields: vespaFields{
			ID:          id,
			Content:     chunk.Content,
			Category:    string(chunk.Category),
			Label:       chunk.Label,
			GroupKey:    chunk.GroupKey,
			ChunkIndex:  &idx,
			TotalChunks: &total,
			CreatedAt:   chunk.CreatedAt.Unix(),
			Embedding:   embeddings[0],
		},
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	// Vespa document API: POST /document/v1/{namespace}/{doctype}/docid/{docid}
	resp, err := s.do(ctx, http.MethodPost, s.docURL(id), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", statusError("vespa index failed", resp)
	}

	return id, nil
}

// Query runs a nearest-neighbour search restricted to category
func (s *VectorStore) Query(ctx context.Context, text string, category domain.Category, limit int) ([]*domain.SearchHit, error) {
	if s.embedder == nil {
		return nil, errNoEmbedder
	}

	queryEmbedding, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	targetHits := s.targetHits
	if limit > targetHits {
		targetHits = limit
	}

	searchReq := map[string]interface{}{
		"yql": fmt.Sprintf(
			"select * from %s where ({targetHits:%d}nearestNeighbor(embedding,q)) and category contains \"%s\"",
			documentType, targetHits, escapeQuoted(string(category))),
		"hits":            limit,
		"ranking.profile": "semantic",
		"input.query(q)":  queryEmbedding,
	}

	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(ctx, http.MethodPost, s.baseURL+"/search/", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError("vespa search failed", resp)
	}

	var searchResp vespaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, err
	}

	hits := make([]*domain.SearchHit, 0, len(searchResp.Root.Children))
	for _, child := range searchResp.Root.Children {
		f := child.Fields
		hit := &domain.SearchHit{
			ChunkID:  f.ID,
			Content:  f.Content,
			Category: domain.Category(f.Category),
			Label:    f.Label,
			GroupKey: f.GroupKey,
			Distance: cosineDistance(child.Fields.MatchFeatures, child.Relevance),
		}
		if f.ChunkIndex != nil {
			hit.ChunkIndex = *f.ChunkIndex
		}
		if f.TotalChunks != nil {
			hit.TotalChunks = *f.TotalChunks
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// cosineDistance converts Vespa's angular distance (radians) into 1 - cosine
// similarity. Without the match feature it falls back to closeness relevance.
func cosineDistance(features map[string]float64, relevance float64) float64 {
	if angle, ok := features[distanceFeature]; ok {
		return 1 - math.Cos(angle)
	}
	// closeness = 1 / (1 + angle)
	if relevance > 0 {
		return 1 - math.Cos(1/relevance-1)
	}
	return 1
}

// vespaSearchResponse represents Vespa's search response format
type vespaSearchResponse struct {
	Root struct {
		Fields struct {
			TotalCount int64 `json:"totalCount"`
		} `json:"fields"`
		Children []struct {
			Relevance float64 `json:"relevance"`
			Fields    struct {
				vespaFields
				MatchFeatures map[string]float64 `json:"matchfeatures"`
			} `json:"fields"`
		} `json:"children"`
	} `json:"root"`
}

// visitResponse is the document/v1 visit and selection-delete response
type visitResponse struct {
	Documents []struct {
		ID     string      `json:"id"`
		Fields vespaFields `json:"fields"`
	} `json:"documents"`
	DocumentCount int    `json:"documentCount"`
	Continuation  string `json:"continuation"`
}

// DeleteWhere removes every chunk in category carrying groupKey
func (s *VectorStore) DeleteWhere(ctx context.Context, groupKey string, category domain.Category) (int, error) {
	selection := fmt.Sprintf(`%s.group_key=="%s" and %s.category=="%s"`,
		documentType, escapeQuoted(groupKey), documentType, escapeQuoted(string(category)))

	removed := 0
	continuation := ""
	for {
		params := url.Values{}
		params.Set("selection", selection)
		params.Set("cluster", s.cluster)
		if continuation != "" {
			params.Set("continuation", continuation)
		}

		resp, err := s.do(ctx, http.MethodDelete, s.docURL("")+"?"+params.Encode(), nil)
		if err != nil {
			return removed, err
		}
		page, err := decodeVisit(resp, "vespa delete by selection failed")
		if err != nil {
			return removed, err
		}

		removed += page.DocumentCount
		if page.Continuation == "" {
			return removed, nil
		}
		continuation = page.Continuation
	}
}

// Delete removes a single chunk. Missing chunks are not an error.
func (s *VectorStore) Delete(ctx context.Context, id string) error {
	resp, err := s.do(ctx, http.MethodDelete, s.docURL(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 404 is OK - document already deleted
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return statusError("vespa delete failed", resp)
	}
	return nil
}

// ListAll visits every chunk, optionally within one category
func (s *VectorStore) ListAll(ctx context.Context, category domain.Category) ([]*domain.ChunkRecord, error) {
	var records []*domain.ChunkRecord
	continuation := ""
	for {
		params := url.Values{}
		params.Set("cluster", s.cluster)
		params.Set("wantedDocumentCount", fmt.Sprintf("%d", visitPageSize))
		params.Set("fieldSet", documentType+":id,content,category,label,group_key,chunk_index,total_chunks,created_at")
		if category != "" {
			params.Set("selection", fmt.Sprintf(`%s.category=="%s"`, documentType, escapeQuoted(string(category))))
		}
		if continuation != "" {
			params.Set("continuation", continuation)
		}

		resp, err := s.do(ctx, http.MethodGet, s.docURL("")+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		page, err := decodeVisit(resp, "vespa visit failed")
		if err != nil {
			return nil, err
		}

		for _, d := range page.Documents {
			f := d.Fields
			if f.ID == "" {
				f.ID = docIDFromVespaID(d.ID)
			}
			records = append(records, f.record())
		}
		if page.Continuation == "" {
			return records, nil
		}
		continuation = page.Continuation
	}
}

// Get loads one chunk by id
func (s *VectorStore) Get(ctx context.Context, id string) (*domain.ChunkRecord, error) {
	resp, err := s.do(ctx, http.MethodGet, s.docURL(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, statusError("vespa get failed", resp)
	}

	var doc struct {
		ID     string      `json:"id"`
		Fields vespaFields `json:"fields"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Fields.ID == "" {
		doc.Fields.ID = id
	}
	return doc.Fields.record(), nil
}

// HealthCheck verifies the search engine is available
func (s *VectorStore) HealthCheck(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, s.baseURL+"/state/v1/health", nil)
	if err != nil {
		return fmt.Errorf("vespa health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vespa unhealthy: %s", resp.Status)
	}
	return nil
}

func (s *VectorStore) docURL(id string) string {
	u := fmt.Sprintf("%s/document/v1/%s/%s/docid/", s.baseURL, s.namespace, documentType)
	if id != "" {
		u += url.PathEscape(id)
	}
	return u
}

func (s *VectorStore) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.httpClient.Do(req)
}

func decodeVisit(resp *http.Response, op string) (*visitResponse, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, statusError(op, resp)
	}
	var page visitResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return &page, nil
}

func statusError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%s: %s - %s", op, resp.Status, string(respBody))
}

// docIDFromVespaID extracts the user id from "id:<ns>:<type>::<id>"
func docIDFromVespaID(full string) string {
	if i := strings.Index(full, "::"); i >= 0 {
		return full[i+2:]
	}
	return full
}

// escapeQuoted escapes s for a double-quoted YQL or selection literal.
// Tab, newline, carriage return and form feed use their short escapes;
// other control characters are dropped.
func escapeQuoted(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if unicode.IsControl(r) {
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
