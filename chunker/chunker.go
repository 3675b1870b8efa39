// Package chunker splits extracted text into overlapping pieces small
// enough to embed.
package chunker

import (
	"strings"
)

const (
	DefaultMaxChars = 1500
	DefaultOverlap  = 20
)

// Separators in order of preference. A hard cut is used when none applies.
var Separators = []string{"\n\n", "\n", ". ", "; ", " "}

// Span locates a chunk in the input, in rune offsets. The chunk text is
// runes[OverlapStart:End]; runes[Start:End] is its own segment and the
// segments partition the input.
type Span struct {
	OverlapStart int
	Start        int
	End          int
}

type Chunker struct {
	maxChars int
	overlap  int
}

// New returns a chunker. Non-positive maxChars selects the default and the
// overlap is clamped below half of maxChars.
func New(maxChars, overlap int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > maxChars/2 {
		overlap = maxChars / 2
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}
}

// Split returns the chunks of text, each at most maxChars runes. Text that
// fits in one chunk is returned whole; empty text yields no chunks.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	spans := c.spans(runes)
	chunks := make([]string, len(spans))
	for i, s := range spans {
		chunks[i] = string(runes[s.OverlapStart:s.End])
	}
	return chunks
}

// Spans returns the chunk boundaries of text.
func (c *Chunker) Spans(text string) []Span {
	return c.spans([]rune(text))
}

func (c *Chunker) spans(runes []rune) []Span {
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.maxChars {
		return []Span{{OverlapStart: 0, Start: 0, End: len(runes)}}
	}

	var spans []Span
	for start := 0; start < len(runes); {
		overlapStart := start
		if start > 0 {
			overlapStart = c.overlapStart(runes, start)
		}
		budget := c.maxChars - (start - overlapStart)

		end := len(runes)
		if end-start > budget {
			end = cut(runes, start, start+budget)
		}
		spans = append(spans, Span{OverlapStart: overlapStart, Start: start, End: end})
		start = end
	}
	return spans
}

// overlapStart picks where the overlap for the segment at start begins,
// preferring a word boundary inside the overlap window.
func (c *Chunker) overlapStart(runes []rune, start int) int {
	from := start - c.overlap
	if from < 0 {
		from = 0
	}
	for i := from; i < start; i++ {
		if i > 0 && isSpace(runes[i-1]) && !isSpace(runes[i]) {
			return i
		}
	}
	return from
}

// cut returns the end of the segment beginning at start, no later than
// limit, after the last occurrence of the most preferred separator found in
// the second half of the window.
func cut(runes []rune, start, limit int) int {
	window := string(runes[start:limit])
	for _, sep := range Separators {
		idx := strings.LastIndex(window, sep)
		if idx <= 0 || idx+len(sep) < len(window)/2 {
			continue
		}
		return start + len([]rune(window[:idx+len(sep)]))
	}
	return limit
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
