package postprocessors

import (
	"sort"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline implements PostProcessorPipeline.
// It chains multiple post-processors in order, starting with a Chunker.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
	sorted     bool
}

// NewPipeline creates a new post-processor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.PostProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies all processors in order.
// Input is normalised document text, output is the segments ready for indexing.
func (p *Pipeline) Process(content string) []driven.Segment {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	// Start with a single segment containing all content
	segments := []driven.Segment{
		{
			Content:     content,
			Position:    0,
			StartOffset: 0,
			EndOffset:   utf8.RuneCountInString(content),
		},
	}

	for _, proc := range processors {
		segments = proc.Process(segments)
	}

	return segments
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// DefaultPipeline creates a pipeline with the default processors.
func DefaultPipeline() *Pipeline {
	return NewPipelineWithConfig(DefaultChunkConfig())
}

// NewPipelineWithConfig creates a pipeline with a chunker using config.
func NewPipelineWithConfig(config ChunkConfig) *Pipeline {
	p := NewPipeline()
	p.Add(NewChunker(config))
	return p
}

// ChunkConfig configures the chunker behavior.
// Sizes are measured in runes.
type ChunkConfig struct {
	// MaxChunkSize is the maximum runes per chunk
	MaxChunkSize int `yaml:"size"`

	// Overlap is the rune overlap between consecutive chunks
	Overlap int `yaml:"overlap"`

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool `yaml:"preserve_sentences"`

	// PreserveParagraphs tries to break at paragraph and line boundaries
	PreserveParagraphs bool `yaml:"preserve_paragraphs"`
}

// DefaultChunkConfig returns 500-rune chunks with a 50-rune overlap.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize:       500,
		Overlap:            50,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Chunker splits content into overlapping chunks.
// This is typically the first processor in the pipeline (Order = 0).
//
// Every chunk is an exact substring of its input and consecutive chunks
// overlap, so the union of chunks covers the input without loss.
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
// Invalid sizes fall back to the defaults; an overlap that would stall
// progress is reduced to half the chunk size.
func NewChunker(config ChunkConfig) *Chunker {
	defaults := DefaultChunkConfig()
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = defaults.MaxChunkSize
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	}
	if config.Overlap >= config.MaxChunkSize {
		config.Overlap = config.MaxChunkSize / 2
	}
	return &Chunker{config: config}
}

// Config returns the effective configuration.
func (c *Chunker) Config() ChunkConfig {
	return c.config
}

// Process splits every input segment into chunks.
func (c *Chunker) Process(segments []driven.Segment) []driven.Segment {
	var result []driven.Segment
	position := 0

	for _, seg := range segments {
		result = append(result, c.splitContent(seg.Content, seg.StartOffset, &position)...)
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

// splitContent splits content into overlapping chunks.
func (c *Chunker) splitContent(content string, baseOffset int, position *int) []driven.Segment {
	runes := []rune(content)
	size := c.config.MaxChunkSize

	if len(runes) <= size {
		seg := driven.Segment{
			Content:     content,
			Position:    *position,
			StartOffset: baseOffset,
			EndOffset:   baseOffset + len(runes),
		}
		*position++
		return []driven.Segment{seg}
	}

	var segments []driven.Segment
	start, prevEnd := 0, 0

	for start < len(runes) {
		end := len(runes)
		if end-start > size {
			end = c.findBreakPoint(runes, start, start+size, prevEnd)
		}

		segments = append(segments, driven.Segment{
			Content:     string(runes[start:end]),
			Position:    *position,
			StartOffset: baseOffset + start,
			EndOffset:   baseOffset + end,
		})
		*position++

		if end >= len(runes) {
			break
		}

		start = c.nextStart(runes, start, end)
		prevEnd = end
	}

	return segments
}

// nextStart steps back by the overlap from end, then forward to the
// next word start so a chunk rarely opens mid-word. When the overlap
// window lies inside one word, the chunk opens at that word's start if
// the overlap stays within twice the configured size, else it opens
// mid-word at end minus the overlap. A chunk shorter than the overlap
// is followed directly from its end. The result is always past start
// and never past end.
func (c *Chunker) nextStart(runes []rune, start, end int) int {
	overlap := c.config.Overlap
	next := end - overlap
	if next >= end {
		return end
	}
	short := next <= start
	if short {
		next = start + 1
	}
	for i := next; i < end; i++ {
		if isWordStart(runes, i) {
			return i
		}
	}
	if short {
		return end
	}
	for i := next - 1; i > start && end-i <= 2*overlap && end-i < c.config.MaxChunkSize; i-- {
		if isWordStart(runes, i) {
			return i
		}
	}
	return next
}

// findBreakPoint picks where the chunk starting at start should end.
// The end is always past prevEnd, so no chunk lies inside its predecessor.
// Paragraph, line and sentence boundaries are looked for in the upper
// half of the window, then any word boundary. A single word longer than
// the window is kept whole when its end lies within twice the chunk
// size; otherwise the window is cut at maxEnd.
func (c *Chunker) findBreakPoint(runes []rune, start, maxEnd, prevEnd int) int {
	lo := start + c.config.MaxChunkSize/2
	if lo <= prevEnd {
		lo = prevEnd + 1
	}
	wordLo := start + 1
	if wordLo <= prevEnd {
		wordLo = prevEnd + 1
	}

	if c.config.PreserveParagraphs {
		if end := lastBoundary(runes, lo, maxEnd, isParagraphEnd); end > 0 {
			return end
		}
		if end := lastBoundary(runes, lo, maxEnd, isLineEnd); end > 0 {
			return end
		}
	}

	if c.config.PreserveSentences {
		if end := lastBoundary(runes, lo, maxEnd, isSentenceEnd); end > 0 {
			return end
		}
	}

	if end := lastBoundary(runes, wordLo, maxEnd, isWordEnd); end > 0 {
		return end
	}

	limit := start + 2*c.config.MaxChunkSize
	if limit > len(runes) {
		limit = len(runes)
	}
	for end := maxEnd + 1; end <= limit; end++ {
		if end == len(runes) || isWordEnd(runes, end) {
			return end
		}
	}

	return maxEnd
}

// lastBoundary returns the largest end in [lo, hi] accepted by boundary, or -1.
func lastBoundary(runes []rune, lo, hi int, boundary func([]rune, int) bool) int {
	for end := hi; end >= lo; end-- {
		if boundary(runes, end) {
			return end
		}
	}
	return -1
}

// isParagraphEnd reports whether end falls just after a blank line.
func isParagraphEnd(runes []rune, end int) bool {
	return end >= 2 && runes[end-1] == '\n' && runes[end-2] == '\n'
}

// isLineEnd reports whether end falls just after a newline.
func isLineEnd(runes []rune, end int) bool {
	return end >= 1 && runes[end-1] == '\n'
}

// isSentenceEnd reports whether end falls just after ". ", "! " or "? " punctuation.
func isSentenceEnd(runes []rune, end int) bool {
	if end < 1 || end >= len(runes) {
		return false
	}
	switch runes[end-1] {
	case '.', '!', '?':
		return unicode.IsSpace(runes[end])
	}
	return false
}

// isWordEnd reports whether end falls between a word and following whitespace.
func isWordEnd(runes []rune, end int) bool {
	return end >= 1 && end < len(runes) && unicode.IsSpace(runes[end]) && !unicode.IsSpace(runes[end-1])
}

// isWordStart reports whether i is the first rune of a word.
func isWordStart(runes []rune, i int) bool {
	if i <= 0 || i >= len(runes) {
		return i == 0
	}
	return unicode.IsSpace(runes[i-1]) && !unicode.IsSpace(runes[i])
}
