package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
	"github.com/custodia-labs/support-rag/internal/core/ports/driving"
)

// DefaultGroupLockTTL bounds how long a chunk group stays locked by one writer
const DefaultGroupLockTTL = 2 * time.Minute

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService keeps every logical document mapped to one ordered,
// gap-free set of chunks sharing a group key.
type documentService struct {
	store      driven.VectorStore
	indexer    *Indexer
	normaliser driven.Normaliser
	pipeline   driven.PostProcessorPipeline
	lock       driven.DistributedLock
	lockTTL    time.Duration
	atomic     bool
	minLength  int
	logger     *slog.Logger
}

// DocumentServiceConfig holds dependencies for the document service.
type DocumentServiceConfig struct {
	Store      driven.VectorStore
	Normaliser driven.Normaliser
	Pipeline   driven.PostProcessorPipeline

	// Lock is optional. When set, writers to the same group key are serialised
	// and a busy group fails fast with domain.ErrGroupBusy.
	Lock    driven.DistributedLock
	LockTTL time.Duration

	// Atomic removes already stored chunks when a later chunk fails.
	Atomic bool

	MinContentLength int
	Logger           *slog.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(cfg DocumentServiceConfig) driving.DocumentService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultGroupLockTTL
	}

	return &documentService{
		store:      cfg.Store,
		indexer:    NewIndexer(cfg.Store, logger),
		normaliser: cfg.Normaliser,
		pipeline:   cfg.Pipeline,
		lock:       cfg.Lock,
		lockTTL:    lockTTL,
		atomic:     cfg.Atomic,
		minLength:  cfg.MinContentLength,
		logger:     logger,
	}
}

// Upload normalises, chunks and indexes a new document
func (s *documentService) Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	chunks, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	groupKey := chunks[0].GroupKey

	release, err := s.lockGroups(ctx, groupKey)
	if err != nil {
		return nil, err
	}
	defer release()

	exists, err := s.groupExists(ctx, groupKey, req.Category)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: document %q", domain.ErrAlreadyExists, groupKey)
	}

	return s.write(ctx, chunks)
}

// Update replaces the document owning id by deleting its group and uploading req
func (s *documentService) Update(ctx context.Context, id string, req domain.UploadRequest) (*domain.UploadResult, error) {
	chunks, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	newKey := chunks[0].GroupKey

	current, legacy, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	release, err := s.lockGroups(ctx, current.GroupKey, newKey)
	if err != nil {
		return nil, err
	}
	defer release()

	if newKey != current.GroupKey {
		exists, err := s.groupExists(ctx, newKey, req.Category)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: document %q", domain.ErrAlreadyExists, newKey)
		}
	}

	removed, err := s.deleteGroup(ctx, current, legacy)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("replacing document", "old_group_key", current.GroupKey, "new_group_key", newKey, "removed", removed)

	return s.write(ctx, chunks)
}

// Delete removes the whole group owning id. Unknown ids are a no-op.
func (s *documentService) Delete(ctx context.Context, id string) (int, error) {
	current, legacy, err := s.resolve(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug("delete of unknown document ignored", "id", id)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	release, err := s.lockGroups(ctx, current.GroupKey)
	if err != nil {
		return 0, err
	}
	defer release()

	return s.deleteGroup(ctx, current, legacy)
}

// List reassembles every document, optionally within one category
func (s *documentService) List(ctx context.Context, category domain.Category) ([]*domain.ChunkGroup, error) {
	if category != "" && !category.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}

	chunks, err := s.loadChunks(ctx, category)
	if err != nil {
		return nil, err
	}

	groups := domain.GroupChunks(chunks)
	for _, g := range groups {
		if !g.Complete {
			s.logger.Warn("incomplete chunk group",
				"group_key", g.GroupKey,
				"chunks", g.ChunkCount,
				"total_chunks", g.TotalChunks,
				"missing", g.Missing,
			)
		}
	}
	return groups, nil
}

// Get reassembles the document owning id
func (s *documentService) Get(ctx context.Context, id string) (*domain.ChunkGroup, error) {
	current, _, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	chunks, err := s.loadChunks(ctx, current.Category)
	if err != nil {
		return nil, err
	}

	members := make([]*domain.Chunk, 0)
	for _, c := range chunks {
		if c.GroupKey == current.GroupKey {
			members = append(members, c)
		}
	}
	if len(members) == 0 {
		// The representative vanished between the two reads.
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return domain.NewChunkGroup(members), nil
}

// prepare validates, normalises and chunks req and stages the chunk records
func (s *documentService) prepare(req domain.UploadRequest) ([]*domain.Chunk, error) {
	if err := req.Validate(s.minLength); err != nil {
		return nil, err
	}

	text := s.normaliser.Normalise(req.Content)
	if text == "" {
		return nil, fmt.Errorf("%w: content is empty after normalisation", domain.ErrInvalidInput)
	}

	segments := s.pipeline.Process(text)
	groupKey := domain.GroupKey(req.Label, req.Category)
	now := time.Now().UTC()

	chunks := make([]*domain.Chunk, 0, len(segments))
	for _, seg := range segments {
		if seg.Content == "" {
			continue
		}
		chunks = append(chunks, &domain.Chunk{
			Content:   seg.Content,
			Category:  req.Category,
			Label:     req.Label,
			GroupKey:  groupKey,
			CreatedAt: now,
		})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: content produced no chunks", domain.ErrInvalidInput)
	}

	for i, c := range chunks {
		c.ChunkIndex = i
		c.TotalChunks = len(chunks)
	}
	return chunks, nil
}

// write indexes staged chunks sequentially so store order matches chunk order.
// On the first failure an atomic service removes what it stored.
func (s *documentService) write(ctx context.Context, chunks []*domain.Chunk) (*domain.UploadResult, error) {
	first := chunks[0]
	result := &domain.UploadResult{
		GroupKey:        first.GroupKey,
		ChunksRequested: len(chunks),
		ChunkIDs:        make([]string, 0, len(chunks)),
	}

	for _, chunk := range chunks {
		id, err := s.indexer.Index(ctx, chunk)
		if err != nil {
			return s.partial(ctx, result, first.Category, err)
		}
		chunk.ID = id
		result.ChunkIDs = append(result.ChunkIDs, id)
		result.ChunksStored++
	}
	result.DocumentID = result.ChunkIDs[0]

	s.logger.Info("document indexed",
		"id", result.DocumentID,
		"group_key", result.GroupKey,
		"chunks", result.ChunksStored,
	)
	return result, nil
}

func (s *documentService) partial(ctx context.Context, result *domain.UploadResult, category domain.Category, cause error) (*domain.UploadResult, error) {
	if len(result.ChunkIDs) > 0 {
		result.DocumentID = result.ChunkIDs[0]
	}

	if !s.atomic {
		s.logger.Warn("partial document write",
			"group_key", result.GroupKey,
			"stored", result.ChunksStored,
			"requested", result.ChunksRequested,
			"error", cause,
		)
		return result, fmt.Errorf("%w: stored %d of %d chunks: %w",
			domain.ErrPartialWrite, result.ChunksStored, result.ChunksRequested, cause)
	}

	removed, err := s.store.DeleteWhere(ctx, result.GroupKey, category)
	if err != nil {
		s.logger.Error("compensating delete failed",
			"group_key", result.GroupKey,
			"stored", result.ChunksStored,
			"error", err,
		)
		return result, fmt.Errorf("%w: stored %d of %d chunks, rollback failed (%v): %w",
			domain.ErrPartialWrite, result.ChunksStored, result.ChunksRequested, err, cause)
	}

	s.logger.Warn("document write rolled back",
		"group_key", result.GroupKey,
		"stored", result.ChunksStored,
		"removed", removed,
		"requested", result.ChunksRequested,
		"error", cause,
	)
	result.RolledBack = true
	result.ChunksStored = 0
	result.ChunkIDs = nil
	result.DocumentID = ""
	return result, fmt.Errorf("%w: rolled back after storing 0 of %d chunks: %w",
		domain.ErrPartialWrite, result.ChunksRequested, cause)
}

// resolve loads and decodes the record behind a representative chunk id
func (s *documentService) resolve(ctx context.Context, id string) (*domain.Chunk, bool, error) {
	if id == "" {
		return nil, false, fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}

	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: load chunk %s: %w", domain.ErrServiceUnavailable, id, err)
	}

	chunk, status, err := rec.Decode()
	if err != nil {
		return nil, false, fmt.Errorf("%w: document %s: %w", domain.ErrNotFound, id, err)
	}
	return chunk, status == domain.RecordLegacy, nil
}

// deleteGroup removes every chunk of the group. A legacy record forms a
// singleton group of its own and is removed by id.
func (s *documentService) deleteGroup(ctx context.Context, chunk *domain.Chunk, legacy bool) (int, error) {
	if legacy {
		if err := s.store.Delete(ctx, chunk.ID); err != nil {
			return 0, fmt.Errorf("%w: delete chunk %s: %w", domain.ErrServiceUnavailable, chunk.ID, err)
		}
		s.logger.Info("legacy document deleted", "id", chunk.ID)
		return 1, nil
	}

	removed, err := s.store.DeleteWhere(ctx, chunk.GroupKey, chunk.Category)
	if err != nil {
		return 0, fmt.Errorf("%w: delete group %q: %w", domain.ErrServiceUnavailable, chunk.GroupKey, err)
	}

	s.logger.Info("document deleted", "group_key", chunk.GroupKey, "removed", removed)
	return removed, nil
}

// loadChunks lists and decodes stored records. Undecodable records are skipped.
func (s *documentService) loadChunks(ctx context.Context, category domain.Category) ([]*domain.Chunk, error) {
	records, err := s.store.ListAll(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %w", domain.ErrServiceUnavailable, err)
	}

	chunks := make([]*domain.Chunk, 0, len(records))
	for _, rec := range records {
		chunk, status, err := rec.Decode()
		if err != nil {
			s.logger.Warn("skipping undecodable chunk record", "id", rec.ID, "error", err)
			continue
		}
		if status == domain.RecordLegacy {
			s.logger.Warn("repaired legacy chunk record as singleton group", "id", rec.ID, "group_key", chunk.GroupKey)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (s *documentService) groupExists(ctx context.Context, groupKey string, category domain.Category) (bool, error) {
	chunks, err := s.loadChunks(ctx, category)
	if err != nil {
		return false, err
	}
	for _, c := range chunks {
		if c.GroupKey == groupKey {
			return true, nil
		}
	}
	return false, nil
}

// lockGroups acquires the group locks in a stable order and returns a release func.
// Without a lock backend it is a no-op.
func (s *documentService) lockGroups(ctx context.Context, groupKeys ...string) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}

	names := make([]string, 0, len(groupKeys))
	seen := make(map[string]bool, len(groupKeys))
	for _, k := range groupKeys {
		if !seen[k] {
			seen[k] = true
			names = append(names, "group:"+k)
		}
	}
	sort.Strings(names)

	held := make([]string, 0, len(names))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := s.lock.Release(context.WithoutCancel(ctx), held[i]); err != nil {
				s.logger.Warn("failed to release group lock", "lock", held[i], "error", err)
			}
		}
	}

	for _, name := range names {
		acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
		if err != nil {
			release()
			return nil, fmt.Errorf("%w: acquire %s: %w", domain.ErrServiceUnavailable, name, err)
		}
		if !acquired {
			release()
			return nil, fmt.Errorf("%w: %s", domain.ErrGroupBusy, name)
		}
		held = append(held, name)
	}
	return release, nil
}
