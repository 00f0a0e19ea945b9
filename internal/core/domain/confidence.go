package domain

import "fmt"

// Confidence labels
const (
	ConfidenceHigh   = "High Confidence"
	ConfidenceMedium = "Medium Confidence"
	ConfidenceLow    = "Low Confidence"
)

// ConfidenceConfig holds the weights and thresholds of the confidence heuristic.
// The defaults are empirical and exposed so they can be tuned.
type ConfidenceConfig struct {
	VectorWeight     float64 `yaml:"vector_weight" json:"vector_weight"`
	DocCountWeight   float64 `yaml:"doc_count_weight" json:"doc_count_weight"`
	ContextWeight    float64 `yaml:"context_weight" json:"context_weight"`
	DocCountSaturate int     `yaml:"doc_count_saturation" json:"doc_count_saturation"`
	ContextSaturate  int     `yaml:"context_word_saturation" json:"context_word_saturation"`
	HighThreshold    float64 `yaml:"high_threshold" json:"high_threshold"`
	MediumThreshold  float64 `yaml:"medium_threshold" json:"medium_threshold"`
}

// DefaultConfidenceConfig returns the 0.5/0.3/0.2 weighting with 0.8/0.5 thresholds
func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		VectorWeight:     0.5,
		DocCountWeight:   0.3,
		ContextWeight:    0.2,
		DocCountSaturate: 3,
		ContextSaturate:  100,
		HighThreshold:    0.8,
		MediumThreshold:  0.5,
	}
}

// Validate checks that weights are non-negative, saturations positive
// and thresholds ordered within [0,1]
func (c ConfidenceConfig) Validate() error {
	if c.VectorWeight < 0 || c.DocCountWeight < 0 || c.ContextWeight < 0 {
		return fmt.Errorf("%w: confidence weights must not be negative", ErrInvalidInput)
	}
	if c.DocCountSaturate <= 0 || c.ContextSaturate <= 0 {
		return fmt.Errorf("%w: confidence saturation points must be positive", ErrInvalidInput)
	}
	if c.MediumThreshold < 0 || c.HighThreshold > 1 || c.MediumThreshold > c.HighThreshold {
		return fmt.Errorf("%w: confidence thresholds must satisfy 0 <= medium <= high <= 1", ErrInvalidInput)
	}
	return nil
}

// Label maps a confidence score to its label
func (c ConfidenceConfig) Label(confidence float64) string {
	switch {
	case confidence >= c.HighThreshold:
		return ConfidenceHigh
	case confidence >= c.MediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
