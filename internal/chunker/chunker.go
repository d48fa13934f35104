package chunker

import (
	"strings"
	"unicode"
)

// Options bounds the chunk window. Lengths are counted in runes.
type Options struct {
	// Size is the target maximum chunk length.
	Size int
	// Overlap is how far the next chunk starts before the previous end.
	Overlap int
	// BackScan is how far back from the hard cut we look for a sentence
	// end. Zero means Size/5.
	BackScan int
	// ForwardScan is how far past the hard cut we look when the back scan
	// finds nothing. Zero disables the forward scan.
	ForwardScan int
}

// DefaultOptions matches the build defaults of the pipeline.
func DefaultOptions() Options {
	return Options{Size: 1000, Overlap: 200, ForwardScan: 100}
}

// Piece is one chunk of a cleaned document. Start and End are rune offsets
// of the untrimmed window in the input; Text is that window trimmed.
type Piece struct {
	Start int
	End   int
	Text  string
}

// Len returns the chunk length in runes.
func (p Piece) Len() int { return len([]rune(p.Text)) }

// Split breaks text into overlapping pieces, preferring to cut right after a
// sentence end. Pieces are returned left to right; blank pieces are dropped.
func Split(text string, opts Options) []Piece {
	r := []rune(text)
	n := len(r)
	if n == 0 {
		return nil
	}
	if opts.Size <= 0 || n <= opts.Size {
		return keep(nil, r, 0, n)
	}

	overlap := opts.Overlap
	if overlap < 0 {
		overlap = 0
	}
	back := opts.BackScan
	if back <= 0 {
		back = opts.Size / 5
	}

	var out []Piece
	start := 0
	for start < n {
		end := start + opts.Size
		if end < n {
			end = boundary(r, start, end, opts.Size, back, opts.ForwardScan)
		} else {
			end = n
		}

		out = keep(out, r, start, end)
		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			// Overlap would stall the window; continue from the cut instead.
			next = end
		}
		start = next
	}
	return out
}

// boundary picks the cut for the window [start, end). It returns the position
// just after the last sentence end in the back-scan window that lies past the
// window midpoint, else just after the first sentence end within the forward
// window, else end itself.
func boundary(r []rune, start, end, size, back, forward int) int {
	mid := start + size/2
	lo := end - back
	if lo <= mid {
		lo = mid + 1
	}
	for i := end - 1; i >= lo; i-- {
		if isSentenceEnd(r[i]) {
			return i + 1
		}
	}

	limit := end + forward
	if limit > len(r) {
		limit = len(r)
	}
	for i := end; i < limit; i++ {
		if isSentenceEnd(r[i]) {
			return i + 1
		}
	}
	return end
}

func isSentenceEnd(c rune) bool {
	switch c {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

func keep(out []Piece, r []rune, start, end int) []Piece {
	text := strings.TrimFunc(string(r[start:end]), unicode.IsSpace)
	if text == "" {
		return out
	}
	return append(out, Piece{Start: start, End: end, Text: text})
}
