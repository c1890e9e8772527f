package ingest

import (
	"fmt"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150
)

// DefaultSeparators lists break points from most to least preferred.
// A chunk ends right after the separator it was cut at.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Segment is a span of text produced by the Splitter. Start and End are rune offsets.
type Segment struct {
	Text  string
	Start int
	End   int
}

// Splitter cuts text into overlapping segments of at most Size runes.
//
// Consecutive segments always share exactly Overlap runes: segment i+1 starts
// Overlap runes before segment i ends. Within the window a segment may end in,
// the highest-priority separator that occurs is used; the last occurrence wins.
// Without any separator the text is cut at Size.
type Splitter struct {
	size       int
	overlap    int
	separators [][]rune
}

// NewSplitter validates the parameters and returns a Splitter.
func NewSplitter(size, overlap int, separators ...string) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	seps := make([][]rune, 0, len(separators))
	for _, s := range separators {
		if s != "" {
			seps = append(seps, []rune(s))
		}
	}
	return &Splitter{size: size, overlap: overlap, separators: seps}, nil
}

// Size returns the maximum segment length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the number of runes shared by consecutive segments.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the segments of text in order. Empty text yields no segments.
func (s *Splitter) Split(text string) []Segment {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var segments []Segment
	start := 0
	for {
		if n-start <= s.size {
			segments = append(segments, Segment{Text: string(runes[start:]), Start: start, End: n})
			return segments
		}
		end := s.breakPoint(runes, start)
		segments = append(segments, Segment{Text: string(runes[start:end]), Start: start, End: end})
		start = end - s.overlap
	}
}

// breakPoint picks the end of the segment starting at start.
// The result lies in (start+overlap, start+size] so the next start always advances.
func (s *Splitter) breakPoint(runes []rune, start int) int {
	lo := start + s.overlap + 1
	hi := start + s.size
	for _, sep := range s.separators {
		for end := hi; end >= lo; end-- {
			from := end - len(sep)
			if from < start {
				break
			}
			if runesEqual(runes[from:end], sep) {
				return end
			}
		}
	}
	return hi
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
