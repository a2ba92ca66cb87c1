// Package chunker splits extracted document text into overlapping,
// boundary-aware chunks.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/katakuxiko/docquiz/internal/model"
)

// ErrInvalidConfig is returned for chunk sizes or overlaps that cannot be used.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Chunker holds a validated size/overlap pair.
type Chunker struct {
	size    int
	overlap int
}

// New validates size > 0 and 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0,%d), got %d", ErrInvalidConfig, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunk texts for text.
func (c *Chunker) Split(text string) []string {
	spans, _ := Spans(text, c.size, c.overlap)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

// Chunks returns the chunks with their offsets.
func (c *Chunker) Chunks(text string) []model.TextChunk {
	spans, _ := Spans(text, c.size, c.overlap)
	return spans
}

// Spans scans text forward in windows of size bytes. A window that does not
// reach the end of text is cut after its last '.' or '\n', else after its last
// whitespace, else at the raw boundary. Only breaks past the previous cut
// count, so every chunk reaches further than the one before it. The next
// window starts overlap bytes before the cut, or at the cut itself when that
// would not move past the current start. Leading whitespace is skipped, so
// chunk starts are strictly increasing. Scanning stops once a window reaches
// the end of text.
//
// Unlike New, Spans accepts overlap >= size.
func Spans(text string, size, overlap int) ([]model.TextChunk, error) {
	if size <= 0 || overlap < 0 {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidConfig, size, overlap)
	}
	n := len(text)
	var out []model.TextChunk
	start := skipSpace(text, 0)
	prevCut := 0
	for start < n {
		end := start + size
		if end > n {
			end = n
		}
		if end < n {
			end = cutPoint(text, start, end, prevCut)
		}

		trimmed := strings.TrimRightFunc(text[start:end], unicode.IsSpace)
		if trimmed != "" && (len(out) == 0 || start+len(trimmed) > out[len(out)-1].End) {
			out = append(out, model.TextChunk{
				Index: len(out),
				Text:  trimmed,
				Start: start,
				End:   start + len(trimmed),
			})
		}
		if end == n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		prevCut = end
		start = skipSpace(text, nextRuneStart(text, next))
	}
	return out, nil
}

// cutPoint picks the end of the window text[start:end]. Breaks before
// the first non-space byte at or after prevCut are ignored.
func cutPoint(text string, start, end, prevCut int) int {
	lo := start
	if s := skipSpace(text, prevCut); s > lo {
		lo = s
	}
	if lo >= end {
		return end
	}
	window := text[lo:end]
	brk := strings.LastIndexByte(window, '.')
	if nl := strings.LastIndexByte(window, '\n'); nl > brk {
		brk = nl
	}
	if brk != -1 {
		return lo + brk + 1
	}
	if sp := strings.LastIndexFunc(window, unicode.IsSpace); sp != -1 {
		_, w := utf8.DecodeRuneInString(window[sp:])
		return lo + sp + w
	}
	// No break found: cut at the raw boundary, but never inside a rune.
	cut := end
	for cut > lo && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == lo {
		cut = nextRuneStart(text, lo+1)
	}
	return cut
}

func nextRuneStart(text string, i int) int {
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}

func skipSpace(text string, i int) int {
	if j := strings.IndexFunc(text[i:], func(r rune) bool { return !unicode.IsSpace(r) }); j >= 0 {
		return i + j
	}
	return len(text)
}
