package services

import (
	"math"
	"strings"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

// ConfidenceScorer estimates answer reliability from retrieval quality.
type ConfidenceScorer struct {
	cfg domain.ConfidenceConfig
}

// NewConfidenceScorer creates a scorer. An invalid config falls back to the defaults.
func NewConfidenceScorer(cfg domain.ConfidenceConfig) *ConfidenceScorer {
	if err := cfg.Validate(); err != nil {
		cfg = domain.DefaultConfidenceConfig()
	}
	return &ConfidenceScorer{cfg: cfg}
}

// Score returns the confidence in [0,1], rounded to two decimals, and its label.
//
//	vector   = 1 - min distance
//	docCount = min(candidates / docCountSaturation, 1)
//	context  = min(total words / contextWordSaturation, 1)
//
// Zero candidates always score 0.
func (s *ConfidenceScorer) Score(hits []*domain.SearchHit) (float64, string) {
	if len(hits) == 0 {
		return 0, s.cfg.Label(0)
	}

	minDistance := math.Inf(1)
	words := 0
	for _, h := range hits {
		if h.Distance < minDistance {
			minDistance = h.Distance
		}
		words += len(strings.Fields(h.Content))
	}

	vectorScore := 1 - minDistance
	docCountScore := math.Min(float64(len(hits))/float64(s.cfg.DocCountSaturate), 1)
	contextScore := math.Min(float64(words)/float64(s.cfg.ContextSaturate), 1)

	confidence := s.cfg.VectorWeight*vectorScore +
		s.cfg.DocCountWeight*docCountScore +
		s.cfg.ContextWeight*contextScore
	confidence = clamp01(math.Round(confidence*100) / 100)

	return confidence, s.cfg.Label(confidence)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
