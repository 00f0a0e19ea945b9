// Package sqlite provides a persistent single-node VectorStore on SQLite.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no cgo. Embeddings are stored as little-endian float32 blobs and
// ranked in process by cosine distance, which suits corpora of a few thousand
// chunks.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/support-rag/internal/adapters/driven/vectorutil"
	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

var errNoEmbedder = errors.New("sqlite: no embedding service configured")

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	content      TEXT NOT NULL,
	category     TEXT NOT NULL,
	label        TEXT NOT NULL DEFAULT '',
	group_key    TEXT NOT NULL DEFAULT '',
	chunk_index  INTEGER,
	total_chunks INTEGER,
	created_at   INTEGER NOT NULL DEFAULT 0,
	embedding    BLOB
);
CREATE INDEX IF NOT EXISTS idx_chunks_category ON chunks(category);
CREATE INDEX IF NOT EXISTS idx_chunks_group ON chunks(category, group_key);
`

// VectorStore implements driven.VectorStore on a SQLite database file
type VectorStore struct {
	db       *sql.DB
	path     string
	embedder driven.EmbeddingService
}

// NewVectorStore opens (or creates) the database at path and applies the schema.
// An empty path defaults to ./data/support-rag.db.
func NewVectorStore(path string, embedder driven.EmbeddingService) (*VectorStore, error) {
	if path == "" {
		path = filepath.Join("data", "support-rag.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &VectorStore{db: db, path: path, embedder: embedder}, nil
}

// Close closes the database connection.
func (s *VectorStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *VectorStore) Path() string {
	return s.path
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, content, category, label, group_key, chunk_index, total_chunks, created_at, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, chunk.Content, string(chunk.Category), chunk.Label, chunk.GroupKey,
		chunk.ChunkIndex, chunk.TotalChunks, chunk.CreatedAt.Unix(), float32SliceToBytes(vectors[0]),
	)
	if err != nil {
		return "", fmt.Errorf("inserting chunk: %w", err)
	}
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

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, category, label, group_key, chunk_index, total_chunks, created_at, embedding
		FROM chunks WHERE category = ?`, string(category))
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	hits := make([]*domain.SearchHit, 0)
	for rows.Next() {
		rec, blob, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, vectorutil.HitFromRecord(rec, vectorutil.CosineDistance(q, bytesToFloat32Slice(blob))))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return vectorutil.RankHits(hits, limit), nil
}

func (s *VectorStore) DeleteWhere(ctx context.Context, groupKey string, category domain.Category) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE group_key = ? AND category = ?`, groupKey, string(category))
	if err != nil {
		return 0, fmt.Errorf("deleting group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *VectorStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting chunk: %w", err)
	}
	return nil
}

func (s *VectorStore) ListAll(ctx context.Context, category domain.Category) ([]*domain.ChunkRecord, error) {
	query := `SELECT id, content, category, label, group_key, chunk_index, total_chunks, created_at, NULL
		FROM chunks`
	var args []interface{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.ChunkRecord, 0)
	for rows.Next() {
		rec, _, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *VectorStore) Get(ctx context.Context, id string) (*domain.ChunkRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, category, label, group_key, chunk_index, total_chunks, created_at, NULL
		FROM chunks WHERE id = ?`, id)
	rec, _, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

func (s *VectorStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*domain.ChunkRecord, []byte, error) {
	var (
		rec         domain.ChunkRecord
		chunkIndex  sql.NullInt64
		totalChunks sql.NullInt64
		createdAt   int64
		blob        []byte
	)
	if err := row.Scan(&rec.ID, &rec.Content, &rec.Category, &rec.Label, &rec.GroupKey,
		&chunkIndex, &totalChunks, &createdAt, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("scanning chunk: %w", err)
	}
	if chunkIndex.Valid {
		v := int(chunkIndex.Int64)
		rec.ChunkIndex = &v
	}
	if totalChunks.Valid {
		v := int(totalChunks.Int64)
		rec.TotalChunks = &v
	}
	if createdAt > 0 {
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	}
	return &rec, blob, nil
}

// float32SliceToBytes converts []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
