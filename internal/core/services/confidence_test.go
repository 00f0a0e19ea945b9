package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

func hitsWith(distances []float64, wordsEach int) []*domain.SearchHit {
	content := strings.TrimSpace(strings.Repeat("word ", wordsEach))
	hits := make([]*domain.SearchHit, len(distances))
	for i, d := range distances {
		hits[i] = &domain.SearchHit{Content: content, Distance: d, Category: domain.CategoryPhone}
	}
	return hits
}

func TestConfidenceScorer_Score(t *testing.T) {
	scorer := NewConfidenceScorer(domain.DefaultConfidenceConfig())

	tests := []struct {
		name      string
		hits      []*domain.SearchHit
		wantScore float64
		wantLabel string
	}{
		{
			name:      "no hits",
			hits:      nil,
			wantScore: 0,
			wantLabel: domain.ConfidenceLow,
		},
		{
			// 0.5*0.8 + 0.3*(1/3) + 0.2*(50/100)
			name:      "one close hit",
			hits:      hitsWith([]float64{0.2}, 50),
			wantScore: 0.6,
			wantLabel: domain.ConfidenceMedium,
		},
		{
			// 0.5*1 + 0.3*1 + 0.2*1
			name:      "saturated",
			hits:      hitsWith([]float64{0, 0.1, 0.3}, 40),
			wantScore: 1,
			wantLabel: domain.ConfidenceHigh,
		},
		{
			// 0.5*0.1 + 0.3*(2/3) + 0.2*(4/100)
			name:      "distant hits",
			hits:      hitsWith([]float64{0.9, 0.95}, 2),
			wantScore: 0.26,
			wantLabel: domain.ConfidenceLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, label := scorer.Score(tt.hits)
			assert.InDelta(t, tt.wantScore, score, 1e-9)
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestConfidenceScorer_Bounds(t *testing.T) {
	scorer := NewConfidenceScorer(domain.DefaultConfidenceConfig())

	// Distances outside [0,1] must not push the score out of range
	score, _ := scorer.Score(hitsWith([]float64{-3}, 500))
	assert.Equal(t, 1.0, score)

	score, _ = scorer.Score(hitsWith([]float64{5}, 0))
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestConfidenceScorer_MonotonicInDistance(t *testing.T) {
	scorer := NewConfidenceScorer(domain.DefaultConfidenceConfig())

	prev := -1.0
	for _, d := range []float64{1, 0.8, 0.6, 0.4, 0.2, 0} {
		score, _ := scorer.Score(hitsWith([]float64{d}, 10))
		assert.GreaterOrEqual(t, score, prev, "distance %v", d)
		prev = score
	}
}

func TestConfidenceScorer_MonotonicInCount(t *testing.T) {
	scorer := NewConfidenceScorer(domain.DefaultConfidenceConfig())

	one, _ := scorer.Score(hitsWith([]float64{0.3}, 10))
	two, _ := scorer.Score(hitsWith([]float64{0.3, 0.3}, 10))
	three, _ := scorer.Score(hitsWith([]float64{0.3, 0.3, 0.3}, 10))
	assert.Less(t, one, two)
	assert.Less(t, two, three)
}

func TestConfidenceScorer_InvalidConfigFallsBack(t *testing.T) {
	cfg := domain.DefaultConfidenceConfig()
	cfg.DocCountSaturate = 0

	scorer := NewConfidenceScorer(cfg)
	score, _ := scorer.Score(hitsWith([]float64{0.2}, 50))
	assert.InDelta(t, 0.6, score, 1e-9)
}
