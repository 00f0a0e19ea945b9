package driven

// Normaliser cleans raw document text before chunking.
// Implementations must be total on any string and idempotent.
type Normaliser interface {
	// Normalise returns the cleaned text
	Normalise(content string) string
}

// PostProcessor applies a stage of the chunking pipeline.
// The first processor (Chunker) receives a single segment with the full content.
type PostProcessor interface {
	// Process transforms the segments produced by the previous stage
	Process(segments []Segment) []Segment

	// Name returns the processor name for logging/debugging
	Name() string

	// Order returns the processor order in the pipeline (lower = earlier)
	Order() int
}

// Segment is a slice of normalised text produced by the pipeline.
// Offsets are in runes and Content is exactly text[StartOffset:EndOffset].
type Segment struct {
	Content     string
	Position    int
	StartOffset int
	EndOffset   int
}

// PostProcessorPipeline chains post-processors in order
type PostProcessorPipeline interface {
	// Process applies all processors to the content
	Process(content string) []Segment

	// Add adds a processor to the pipeline
	Add(processor PostProcessor)

	// List returns processor names in order
	List() []string
}
