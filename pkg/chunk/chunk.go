// Package chunk splits per-page document text into overlapping windows,
// generalizing the prior codebase's token-budgeted unit splitter
// (pkg/graph/unit.go transformIntoUnits) to a byte-budget-primary,
// token-budget-secondary recursive splitter.
package chunk

import (
	"iter"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// TargetSize is the target window size in bytes (~1000 chars).
	TargetSize = 1000
	// Overlap is the target overlap between consecutive windows in bytes.
	Overlap = 100
	// defaultMaxTokens caps a window's token count for the secondary
	// tiktoken-based safety net.
	defaultMaxTokens = 512
	defaultEncoding  = "cl100k_base"
)

var separators = []string{"\n\n", "\n", " ", ""}

// Window is one overlapping slice of page text with positional metadata.
type Window struct {
	Content    string
	SourceFile string
	Page       int
	Offset     int
}

// Splitter recursively splits page text into overlapping windows, closing a
// window early if its token count would exceed MaxTokens (0 disables the
// token cap).
type Splitter struct {
	TargetSize int
	Overlap    int
	MaxTokens  int
	encoding   *tiktoken.Tiktoken
}

// New builds a Splitter with the default target size and overlap.
// If the tiktoken encoding cannot be loaded, the secondary token cap is
// disabled and only the byte-budget primary split applies.
func New() *Splitter {
	s := &Splitter{
		TargetSize: TargetSize,
		Overlap:    Overlap,
		MaxTokens:  defaultMaxTokens,
	}
	if enc, err := tiktoken.GetEncoding(defaultEncoding); err == nil {
		s.encoding = enc
	} else {
		s.MaxTokens = 0
	}
	return s
}

func (s *Splitter) tokenCount(text string) int {
	if s.encoding == nil || s.MaxTokens <= 0 {
		return 0
	}
	return len(s.encoding.Encode(text, nil, nil))
}

// Pages splits every page of a document, in page order, into a lazy ordered
// sequence of Windows. An empty page yields no windows.
func (s *Splitter) Pages(sourceFile string, pages []string) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		for pageIdx, text := range pages {
			for _, w := range s.page(sourceFile, pageIdx+1, text) {
				if !yield(w) {
					return
				}
			}
		}
	}
}

// page splits a single page's text into overlapping windows, preserving
// byte offsets within the original page text.
func (s *Splitter) page(sourceFile string, page int, text string) []Window {
	if text == "" {
		return nil
	}

	pieces := s.split(text, 0)
	if len(pieces) == 0 {
		return nil
	}

	windows := make([]Window, 0, len(pieces))
	for _, p := range pieces {
		windows = append(windows, Window{
			Content:    p.text,
			SourceFile: sourceFile,
			Page:       page,
			Offset:     p.offset,
		})
	}
	return windows
}

type piece struct {
	text   string
	offset int
}

// split recursively accumulates text into ~TargetSize windows with Overlap
// bytes of carry-over between consecutive windows, trying separators in the
// order ["\n\n", "\n", " ", ""] the way the prior codebase tries progressively
// finer sentence/line boundaries before falling back to raw accumulation.
func (s *Splitter) split(text string, baseOffset int) []piece {
	segments := recursiveSplit(text, separators)
	if len(segments) == 0 {
		return nil
	}

	var out []piece
	var cur strings.Builder
	curStart := 0
	pos := 0

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		out = append(out, piece{text: cur.String(), offset: baseOffset + curStart})
		cur.Reset()
	}

	for _, seg := range segments {
		segStart := pos
		pos += len(seg)

		wouldExceedBytes := cur.Len() > 0 && cur.Len()+len(seg) > s.TargetSize
		wouldExceedTokens := s.MaxTokens > 0 && cur.Len() > 0 && s.tokenCount(cur.String()+seg) > s.MaxTokens

		if wouldExceedBytes || wouldExceedTokens {
			flush()

			// carry Overlap bytes from the tail of the just-flushed window
			// into the next one, so consecutive windows share context at
			// their boundary instead of splitting mid-thought.
			if s.Overlap > 0 && len(out) > 0 {
				prev := out[len(out)-1].text
				if len(prev) > s.Overlap {
					tail := prev[len(prev)-s.Overlap:]
					cur.WriteString(tail)
					curStart = segStart - len(tail)
					if curStart < 0 {
						curStart = 0
					}
				} else {
					curStart = segStart
				}
			} else {
				curStart = segStart
			}
		}

		if cur.Len() == 0 {
			curStart = segStart
		}
		cur.WriteString(seg)
	}
	flush()

	return out
}

// recursiveSplit splits text on the first separator in seps that actually
// occurs, then recurses into any resulting segment still larger than
// TargetSize using the remaining separators. The empty-string separator is
// the base case: split into individual bytes' worth of runes.
func recursiveSplit(text string, seps []string) []string {
	if text == "" {
		return nil
	}
	if len(seps) == 0 {
		return []string{text}
	}

	sep := seps[0]
	rest := seps[1:]

	if sep == "" {
		return splitRunes(text)
	}
	if !strings.Contains(text, sep) {
		return recursiveSplit(text, rest)
	}

	parts := strings.SplitAfter(text, sep)
	var out []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if len(p) > TargetSize {
			out = append(out, recursiveSplit(p, rest)...)
		} else {
			out = append(out, p)
		}
	}
	return out
}

func splitRunes(text string) []string {
	var out []string
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}
