// Package seed loads the bundled sample support corpus through the normal
// document upload path.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driving"
)

//go:embed corpus.json
var corpus []byte

// Documents returns the bundled sample documents, optionally restricted to
// the given categories.
func Documents(categories ...domain.Category) ([]domain.UploadRequest, error) {
	var docs []domain.UploadRequest
	if err := json.Unmarshal(corpus, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode seed corpus: %w", err)
	}
	if len(categories) == 0 {
		return docs, nil
	}

	want := make(map[domain.Category]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	filtered := docs[:0]
	for _, d := range docs {
		if want[d.Category] {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// Result summarises one seeding run.
type Result struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Chunks  int `json:"chunks"`
}

// Seeder uploads sample documents.
type Seeder struct {
	documents driving.DocumentService
	logger    *slog.Logger
}

// Config holds dependencies for the seeder.
type Config struct {
	Documents driving.DocumentService
	Logger    *slog.Logger
}

// NewSeeder creates a new Seeder.
func NewSeeder(cfg Config) *Seeder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{documents: cfg.Documents, logger: logger}
}

// Seed uploads docs one by one. Documents already present are skipped so a
// second run is a no-op. Individual failures are counted and logged; Seed
// only returns an error when ctx ends or nothing could be loaded at all.
func (s *Seeder) Seed(ctx context.Context, docs []domain.UploadRequest) (*Result, error) {
	result := &Result{}
	var lastErr error

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		up, err := s.documents.Upload(ctx, doc)
		switch {
		case err == nil:
			result.Loaded++
			result.Chunks += up.ChunksStored
		case errors.Is(err, domain.ErrAlreadyExists):
			result.Skipped++
			s.logger.Debug("seed document already present", "category", doc.Category, "label", doc.Label)
		default:
			result.Failed++
			lastErr = err
			s.logger.Warn("failed to seed document", "category", doc.Category, "label", doc.Label, "error", err)
		}
	}

	s.logger.Info("seeding finished",
		"loaded", result.Loaded,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"chunks", result.Chunks,
	)

	if result.Failed > 0 && result.Loaded == 0 && result.Skipped == 0 {
		return result, fmt.Errorf("no seed documents could be loaded: %w", lastErr)
	}
	return result, nil
}
