package normalisers

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Normaliser = (*TextNormaliser)(nil)

var (
	// urlPattern matches http(s) URLs up to the next Unicode whitespace
	urlPattern = regexp.MustCompile(`https?://[^\t\n\v\f\r \x{85}\p{Z}]+`)

	// disallowed matches anything outside letters, digits, marks, Unicode
	// whitespace and the punctuation/bracket/quote symbols support text
	// relies on. Whitespace is kept here so collapsing turns it into a space.
	disallowed = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\t\n\v\f\r \x{85}\p{Z}.,!?;:'"“”‘’()\[\]{}<>\-–/\\@#&%*+=$£€]`)
)

// TextNormaliser cleans support document text.
//
// URLs are cut out before any other transform and put back verbatim, so
// the character filter and whitespace collapsing never touch them. The
// remaining text has disallowed characters removed and every whitespace
// run collapsed to one space. Normalise is idempotent.
type TextNormaliser struct{}

// NewTextNormaliser creates a text normaliser
func NewTextNormaliser() *TextNormaliser {
	return &TextNormaliser{}
}

// Normalise returns the cleaned text. Empty input yields empty output.
func (n *TextNormaliser) Normalise(content string) string {
	if content == "" {
		return ""
	}

	// Pieces alternate plain text and URL placeholders in positional order.
	locs := urlPattern.FindAllStringIndex(content, -1)
	var b strings.Builder
	b.Grow(len(content))
	prev := 0
	for _, loc := range locs {
		b.WriteString(disallowed.ReplaceAllString(content[prev:loc[0]], ""))
		b.WriteString(content[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(disallowed.ReplaceAllString(content[prev:], ""))

	// URLs contain no whitespace, so collapsing leaves them intact.
	return strings.Join(strings.Fields(b.String()), " ")
}
