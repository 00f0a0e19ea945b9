package domain

import (
	"errors"
	"strings"
	"testing"
)

func intPtr(i int) *int { return &i }

func TestUploadRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     UploadRequest
		wantErr error
	}{
		{
			name: "valid",
			req:  UploadRequest{Content: "Dial *72 then the number.", Label: "call forwarding", Category: CategoryPhone},
		},
		{
			name:    "empty content",
			req:     UploadRequest{Content: "   ", Label: "x", Category: CategoryPhone},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "missing label",
			req:     UploadRequest{Content: "long enough content", Category: CategoryPhone},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "label with quote",
			req:     UploadRequest{Content: "long enough content", Label: "forwarding\") or true", Category: CategoryPhone},
			wantErr: nil,
		},
		{
			name:    "label with control characters",
			req:     UploadRequest{Content: "long enough content", Label: "forwarding\nselection", Category: CategoryPhone},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "missing category",
			req:     UploadRequest{Content: "long enough content", Label: "x"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown category",
			req:     UploadRequest{Content: "long enough content", Label: "x", Category: "Phone"},
			wantErr: ErrInvalidCategory,
		},
		{
			name:    "too short",
			req:     UploadRequest{Content: "too short", Label: "x", Category: CategoryEmail},
			wantErr: ErrContentTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(DefaultMinContentLength)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGroupKey(t *testing.T) {
	if got := GroupKey(" call forwarding ", CategoryPhone); got != "phone:call forwarding" {
		t.Errorf("expected phone:call forwarding, got %s", got)
	}
	if GroupKey("x", CategoryPhone) == GroupKey("x", CategoryEmail) {
		t.Error("group keys must differ across categories")
	}
}

func TestChunkRecord_Decode(t *testing.T) {
	t.Run("complete record", func(t *testing.T) {
		rec := &ChunkRecord{ID: "a", Content: "hello", Category: "fibre", Label: "l", GroupKey: "fibre:l",
			ChunkIndex: intPtr(1), TotalChunks: intPtr(3)}
		chunk, status, err := rec.Decode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != RecordComplete {
			t.Errorf("expected complete, got %s", status)
		}
		if chunk.ChunkIndex != 1 || chunk.TotalChunks != 3 {
			t.Errorf("unexpected position %d/%d", chunk.ChunkIndex, chunk.TotalChunks)
		}
	})

	t.Run("missing index is a singleton", func(t *testing.T) {
		rec := &ChunkRecord{ID: "b", Content: "hello", Category: "email", Label: "old doc"}
		chunk, status, err := rec.Decode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != RecordLegacy {
			t.Errorf("expected legacy, got %s", status)
		}
		if chunk.ChunkIndex != 0 || chunk.TotalChunks != 1 {
			t.Errorf("expected 0/1, got %d/%d", chunk.ChunkIndex, chunk.TotalChunks)
		}
		if chunk.GroupKey != LegacyGroupKey("b") || !IsLegacyGroupKey(chunk.GroupKey) {
			t.Errorf("expected singleton group key, got %s", chunk.GroupKey)
		}
	})

	t.Run("missing group key is derived", func(t *testing.T) {
		rec := &ChunkRecord{ID: "f", Content: "hello", Category: "email", Label: "old doc",
			ChunkIndex: intPtr(0), TotalChunks: intPtr(1)}
		chunk, status, err := rec.Decode()
		if err != nil || status != RecordComplete {
			t.Fatalf("expected complete record, got %s (%v)", status, err)
		}
		if chunk.GroupKey != "email:old doc" {
			t.Errorf("expected derived group key, got %s", chunk.GroupKey)
		}
	})

	t.Run("out of range index is legacy", func(t *testing.T) {
		rec := &ChunkRecord{ID: "c", Content: "x", Category: "phone", ChunkIndex: intPtr(4), TotalChunks: intPtr(2)}
		_, status, err := rec.Decode()
		if err != nil || status != RecordLegacy {
			t.Errorf("expected legacy, got %s (%v)", status, err)
		}
	})

	t.Run("no content", func(t *testing.T) {
		rec := &ChunkRecord{ID: "d", Category: "phone"}
		if _, _, err := rec.Decode(); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("expected ErrInvalidRecord, got %v", err)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		rec := &ChunkRecord{ID: "e", Content: "x", Category: "tv"}
		if _, _, err := rec.Decode(); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("expected ErrInvalidRecord, got %v", err)
		}
	})
}

func TestNewChunkGroup(t *testing.T) {
	chunks := []*Chunk{
		{ID: "c2", Content: "third", GroupKey: "phone:x", Label: "x", Category: CategoryPhone, ChunkIndex: 2, TotalChunks: 3},
		{ID: "c0", Content: "first", GroupKey: "phone:x", Label: "x", Category: CategoryPhone, ChunkIndex: 0, TotalChunks: 3},
		{ID: "c1", Content: " second ", GroupKey: "phone:x", Label: "x", Category: CategoryPhone, ChunkIndex: 1, TotalChunks: 3},
	}

	group := NewChunkGroup(chunks)
	if group.ID != "c0" {
		t.Errorf("expected id of first chunk, got %s", group.ID)
	}
	if group.Content != "first second third" {
		t.Errorf("unexpected content %q", group.Content)
	}
	if !group.Complete || len(group.Missing) != 0 {
		t.Errorf("expected complete group, missing %v", group.Missing)
	}
	if group.ChunkCount != 3 || group.TotalChunks != 3 {
		t.Errorf("unexpected counts %d/%d", group.ChunkCount, group.TotalChunks)
	}
}

func TestNewChunkGroup_MissingIndices(t *testing.T) {
	chunks := []*Chunk{
		{ID: "c3", Content: "d", GroupKey: "k", ChunkIndex: 3, TotalChunks: 4},
		{ID: "c0", Content: "a", GroupKey: "k", ChunkIndex: 0, TotalChunks: 4},
	}

	group := NewChunkGroup(chunks)
	if group.Complete {
		t.Error("expected incomplete group")
	}
	if len(group.Missing) != 2 || group.Missing[0] != 1 || group.Missing[1] != 2 {
		t.Errorf("expected missing [1 2], got %v", group.Missing)
	}
	if group.Content != "a d" {
		t.Errorf("expected best-effort content, got %q", group.Content)
	}
}

func TestNewChunkGroup_Empty(t *testing.T) {
	if NewChunkGroup(nil) != nil {
		t.Error("expected nil group for no chunks")
	}
}

func TestGroupChunks(t *testing.T) {
	chunks := []*Chunk{
		{ID: "e0", Content: "mail", GroupKey: "email:b", Label: "b", Category: CategoryEmail, TotalChunks: 1},
		{ID: "p1", Content: "two", GroupKey: "phone:a", Label: "a", Category: CategoryPhone, ChunkIndex: 1, TotalChunks: 2},
		{ID: "p0", Content: "one", GroupKey: "phone:a", Label: "a", Category: CategoryPhone, ChunkIndex: 0, TotalChunks: 2},
	}

	groups := GroupChunks(chunks)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Category != CategoryEmail || groups[1].Category != CategoryPhone {
		t.Errorf("unexpected group order %s, %s", groups[0].Category, groups[1].Category)
	}
	if !strings.HasPrefix(groups[1].Content, "one two") {
		t.Errorf("unexpected content %q", groups[1].Content)
	}
}

func TestUploadResult_Partial(t *testing.T) {
	r := &UploadResult{ChunksRequested: 3, ChunksStored: 2}
	if !r.Partial() {
		t.Error("expected partial")
	}
	r.ChunksStored = 3
	if r.Partial() {
		t.Error("expected complete")
	}
}
