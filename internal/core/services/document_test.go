package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/support-rag/internal/normalisers"
	"github.com/custodia-labs/support-rag/internal/postprocessors"
)

const routerReset = "Step one: unplug the router from the wall. Step two: wait thirty seconds. " +
	"Step three: plug it back in and wait for the lights to turn green."

func newTestDocumentService(atomic bool) (*mocks.MockVectorStore, *mocks.MockDistributedLock, *documentService) {
	store := mocks.NewMockVectorStore()
	lock := mocks.NewMockDistributedLock()
	svc := NewDocumentService(DocumentServiceConfig{
		Store:      store,
		Normaliser: normalisers.NewTextNormaliser(),
		Pipeline: postprocessors.NewPipelineWithConfig(postprocessors.ChunkConfig{
			MaxChunkSize:       40,
			Overlap:            5,
			PreserveSentences:  true,
			PreserveParagraphs: true,
		}),
		Lock:    lock,
		LockTTL: time.Minute,
		Atomic:  atomic,
	}).(*documentService)
	return store, lock, svc
}

func TestDocumentService_Upload_SingleChunk(t *testing.T) {
	store, lock, svc := newTestDocumentService(true)
	ctx := context.Background()

	result, err := svc.Upload(ctx, domain.UploadRequest{
		Content:  "Dial *72 to forward calls.",
		Label:    "call forwarding",
		Category: domain.CategoryPhone,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksRequested)
	assert.Equal(t, 1, result.ChunksStored)
	assert.Equal(t, "phone:call forwarding", result.GroupKey)
	assert.Equal(t, result.ChunkIDs[0], result.DocumentID)
	assert.Equal(t, 1, store.Count())
	assert.False(t, lock.IsHeld("group:phone:call forwarding"), "lock should be released")

	rec, err := store.Get(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Dial *72 to forward calls.", rec.Content)
	assert.Equal(t, 0, *rec.ChunkIndex)
	assert.Equal(t, 1, *rec.TotalChunks)
}

func TestDocumentService_Upload_MultiChunkGroup(t *testing.T) {
	store, _, svc := newTestDocumentService(true)
	ctx := context.Background()

	result, err := svc.Upload(ctx, domain.UploadRequest{
		Content:  routerReset,
		Label:    "router reset",
		Category: domain.CategoryBroadband,
	})
	require.NoError(t, err)
	require.Greater(t, result.ChunksStored, 1)
	assert.Equal(t, result.ChunksRequested, result.ChunksStored)
	assert.Equal(t, result.ChunksStored, store.Count())

	records, err := store.ListAll(ctx, domain.CategoryBroadband)
	require.NoError(t, err)
	seen := make(map[int]bool)
	for _, rec := range records {
		assert.Equal(t, result.GroupKey, rec.GroupKey)
		assert.Equal(t, result.ChunksStored, *rec.TotalChunks)
		seen[*rec.ChunkIndex] = true
	}
	for i := 0; i < result.ChunksStored; i++ {
		assert.True(t, seen[i], "missing chunk index %d", i)
	}

	group, err := svc.Get(ctx, result.ChunkIDs[1])
	require.NoError(t, err)
	assert.True(t, group.Complete)
	assert.Equal(t, result.DocumentID, group.ID)
	assert.Equal(t, "router reset", group.Label)
	assert.Contains(t, group.Content, "Step one")
	assert.Contains(t, group.Content, "green.")
}

func TestDocumentService_Upload_Validation(t *testing.T) {
	store, _, svc := newTestDocumentService(true)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     domain.UploadRequest
		wantErr error
	}{
		{
			name:    "unknown category",
			req:     domain.UploadRequest{Content: "long enough content", Label: "x", Category: "tv"},
			wantErr: domain.ErrInvalidCategory,
		},
		{
			name:    "content too short",
			req:     domain.UploadRequest{Content: "short", Label: "x", Category: domain.CategoryEmail},
			wantErr: domain.ErrContentTooShort,
		},
		{
			name:    "empty after normalisation",
			req:     domain.UploadRequest{Content: "~~~~~~~~~~~~~~~~", Label: "x", Category: domain.CategoryEmail},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, store.IndexCalls())
}

func TestDocumentService_Upload_NormalisesContent(t *testing.T) {
	store, _, svc := newTestDocumentService(true)
	ctx := context.Background()

	result, err := svc.Upload(ctx, domain.UploadRequest{
		Content:  "Visit   https://help.example.com/mail?x=1~2   for ~setup~ help.",
		Label:    "mail setup",
		Category: domain.CategoryEmail,
	})
	require.NoError(t, err)

	group, err := svc.Get(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Contains(t, group.Content, "https://help.example.com/mail?x=1~2")
	assert.Contains(t, group.Content, "setup help.")
	assert.NotContains(t, group.Content, "~setup")
	assert.Equal(t, result.ChunksStored, store.Count())
}

func TestDocumentService_Upload_AlreadyExists(t *testing.T) {
	store, _, svc := newTestDocumentService(true)
	ctx := context.Background()
	req := domain.UploadRequest{Content: "Dial *72 to forward calls.", Label: "call forwarding", Category: domain.CategoryPhone}

	_, err := svc.Upload(ctx, req)
	require.NoError(t, err)

	_, err = svc.Upload(ctx, req)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Equal(t, 1, store.Count())

	// Same label in another category is a different document
	req.Category = domain.CategoryFibre
	_, err = svc.Upload(ctx, req)
	assert.NoError(t, err)
}

func TestDocumentService_Upload_GroupBusy(t *testing.T) {
	store, lock, svc := newTestDocumentService(true)
	lock.SetLockHeld("group:phone:call forwarding", time.Minute)

	_, err := svc.Upload(context.Background(), domain.UploadRequest{
		Content:  "Dial *72 to forward calls.",
		Label:    "call forwarding",
		Category: domain.CategoryPhone,
	})
	assert.ErrorIs(t, err, domain.ErrGroupBusy)
	assert.Equal(t, 0, store.IndexCalls())
}

func TestDocumentService_Upload_LockBackendDown(t *testing.T) {
	_, lock, svc := newTestDocumentService(true)
	lock.AcquireFn = func(name string, ttl time.Duration) (bool, error) {
		return false, errors.New("redis down")
	}

	_, err := svc.Upload(context.Background(), domain.UploadRequest{
		Content:  "Dial *72 to forward calls.",
		Label:    "call forwarding",
		Category: domain.CategoryPhone,
	})
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestDocumentService_Upload_AtomicRollback(t *testing.T) {
	store, _, svc := newTestDocumentService(true)
	store.FailIndexAt = 2
	store.IndexErr = errors.New("vespa timeout")

	result, err := svc.Upload(context.Background(), domain.UploadRequest{
		Content:  routerReset,
		Label:    "router reset",
		Category: domain.CategoryBroadband,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialWrite)
	require.NotNil(t, result)
	assert.True(t, result.RolledBack)
	assert.Equal(t, 0, result.ChunksStored)
	assert.Greater(t, result.ChunksRequested, 1)
	assert.Equal(t, 0, store.Count(), "no orphan chunks may remain")
}

func TestDocumentService_Upload_NonAtomicPartial(t *testing.T) {
	store, _, svc := newTestDocumentService(false)
	store.FailIndexAt = 2
	store.IndexErr = errors.New("vespa timeout")

	result, err := svc.Upload(context.Background(), domain.UploadRequest{
		Content:  routerReset,
		Label:    "router reset",
		Category: domain.CategoryBroadband,
	})
	assert.ErrorIs(t, err, domain.ErrPartialWrite)
	require.NotNil(t, result)
	assert.False(t, result.RolledBack)
	assert.True(t, result.Partial())
	assert.Equal(t, 1, result.ChunksStored)
	assert.Equal(t, 1, store.Count())

	groups, err := svc.List(context.Background(), domain.CategoryBroadband)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.False(t, groups[0].Complete)
	assert.NotEmpty(t, groups[0].Missing)
}

func TestDocumentService_Delete(t *testing.T) {
	store, _, svc := newTestDocumentService(true)
	ctx := context.Background()

	result, err := svc.Upload(ctx, domain.UploadRequest{
		Content:  routerReset,
		Label:    "router reset",
		Category: domain.CategoryBroadband,
	})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, domain.UploadRequest{
		Content:  "Dial *72 to forward calls.",
		Label:    "call forwarding",
		Category: domain.CategoryPhone,
	})
	require.NoError(t, err)

	// Any chunk id deletes the whole group
	removed, err := svc.Delete(ctx, result.ChunkIDs[len(result.ChunkIDs)-1])
	require.NoError(t, err)
	assert.Equal(t, result.ChunksStored, removed)
	assert.Equal(t, 1, store.Count())

	records, err := store.ListAll(ctx, domain.CategoryBroadband)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDocumentService_Delete_UnknownIsNoop(t *testing.T) {
	store, _, svc := newTestDocumentService(true)

	removed, err := svc.Delete(context.Background(), "chunk-404")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 0, store.DeleteWhereN)
}

func TestDocumentService_Delete_Legacy(t *testing.T) {
	store, _, svc := newTestDocumentService(true)
	ctx := context.Background()
	store.PutRecord(&domain.ChunkRecord{ID: "old-1", Content: "Old email guide", Category: "email", Label: "guide"})
	store.PutRecord(&domain.ChunkRecord{ID: "old-2", Content: "Another old guide", Category: "email", Label: "guide"})

	groups, err := svc.List(ctx, domain.CategoryEmail)
	require.NoError(t, err)
	assert.Len(t, groups, 2, "legacy records are singleton groups")

	removed, err := svc.Delete(ctx, "old-1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"old-1"}, store.DeleteCalls)
	assert.Equal(t, 1, store.Count())
}

func TestDocumentService_List(t *testing.T) {
	_, _, svc := newTestDocumentService(true)
	ctx := context.Background()

	for _, req := range []domain.UploadRequest{
		{Content: "Dial *72 to forward calls.", Label: "call forwarding", Category: domain.CategoryPhone},
		{Content: routerReset, Label: "router reset", Category: domain.CategoryBroadband},
		{Content: "Use port 993 for IMAP over TLS.", Label: "imap", Category: domain.CategoryEmail},
	} {
		_, err := svc.Upload(ctx, req)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, g := range all {
		assert.True(t, g.Complete)
	}

	phone, err := svc.List(ctx, domain.CategoryPhone)
	require.NoError(t, err)
	require.Len(t, phone, 1)
	assert.Equal(t, "call forwarding", phone[0].Label)

	_, err = svc.List(ctx, "tv")
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
}

func TestDocumentService_List_StoreDown(t *testing.T) {
	store, _, svc := newTestDocumentService(true)
	store.ListErr = errors.New("connection refused")

	_, err := svc.List(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestDocumentService_Get_NotFound(t *testing.T) {
	_, _, svc := newTestDocumentService(true)

	_, err := svc.Get(context.Background(), "chunk-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_Update(t *testing.T) {
	store, _, svc := newTestDocumentService(true)
	ctx := context.Background()

	original, err := svc.Upload(ctx, domain.UploadRequest{
		Content:  routerReset,
		Label:    "router reset",
		Category: domain.CategoryBroadband,
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, original.ChunkIDs[1], domain.UploadRequest{
		Content:  "Hold the reset button for ten seconds.",
		Label:    "router reset",
		Category: domain.CategoryBroadband,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ChunksStored)
	assert.Equal(t, 1, store.Count(), "old chunks must be replaced, not appended")

	group, err := svc.Get(ctx, updated.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Hold the reset button for ten seconds.", group.Content)

	_, err = svc.Get(ctx, original.DocumentID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_Update_RenameConflict(t *testing.T) {
	store, _, svc := newTestDocumentService(true)
	ctx := context.Background()

	first, err := svc.Upload(ctx, domain.UploadRequest{Content: "Dial *72 to forward calls.", Label: "a", Category: domain.CategoryPhone})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, domain.UploadRequest{Content: "Dial *73 to cancel forwarding.", Label: "b", Category: domain.CategoryPhone})
	require.NoError(t, err)

	_, err = svc.Update(ctx, first.DocumentID, domain.UploadRequest{
		Content:  "Dial *72 to forward calls now.",
		Label:    "b",
		Category: domain.CategoryPhone,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Equal(t, 2, store.Count())
}

func TestDocumentService_Update_NotFound(t *testing.T) {
	_, _, svc := newTestDocumentService(true)

	_, err := svc.Update(context.Background(), "chunk-404", domain.UploadRequest{
		Content:  "Dial *72 to forward calls.",
		Label:    "a",
		Category: domain.CategoryPhone,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_NoLockBackend(t *testing.T) {
	store := mocks.NewMockVectorStore()
	svc := NewDocumentService(DocumentServiceConfig{
		Store:      store,
		Normaliser: normalisers.NewTextNormaliser(),
		Pipeline:   postprocessors.DefaultPipeline(),
	})

	result, err := svc.Upload(context.Background(), domain.UploadRequest{
		Content:  "Dial *72 to forward calls.",
		Label:    "call forwarding",
		Category: domain.CategoryPhone,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksStored)
}
