package textproc

import (
	"strings"
	"unicode"

	"basegraph.app/insight/internal/model"
)

const (
	// DefaultMaxSegmentChars is the largest segment the splitter emits
	// before re-splitting at sentence boundaries.
	DefaultMaxSegmentChars = 2000

	// sentenceScanWindow bounds how far back from the size limit the
	// splitter looks for a sentence boundary before falling back to a
	// newline, then any whitespace, then a hard cut.
	sentenceScanWindow = 400
)

type candidate struct {
	start, end int
}

// Segment splits preprocessed text into numbered segments. Boundaries
// are blank lines, Markdown headings and fence openings; fenced code
// blocks are never split internally. Candidates above maxChars runes
// are re-split near sentence boundaries. Start/End are rune offsets
// into pre, and the ranges of a re-split candidate tile it exactly.
// maxChars <= 0 selects DefaultMaxSegmentChars.
func Segment(pre string, maxChars int) []model.Segment {
	if maxChars <= 0 {
		maxChars = DefaultMaxSegmentChars
	}
	runes := []rune(pre)

	var segments []model.Segment
	for _, cand := range blockCandidates(pre) {
		segments = append(segments, splitOversize(runes, cand, maxChars)...)
	}
	for i := range segments {
		segments[i].ID = i + 1
	}
	return segments
}

// blockCandidates walks the text line by line and groups lines into
// block candidates with rune offsets. A candidate ends at a blank line
// and starts fresh at a heading or fence opening; everything between a
// fence opening and its close stays in one candidate.
func blockCandidates(pre string) []candidate {
	var (
		cands   []candidate
		current *candidate
		inFence bool
		offset  int
	)
	flush := func() {
		if current != nil {
			cands = append(cands, *current)
			current = nil
		}
	}
	extend := func(start, end int) {
		if current == nil {
			current = &candidate{start: start, end: end}
			return
		}
		current.end = end
	}

	for _, line := range strings.Split(pre, "\n") {
		lineRunes := len([]rune(line))
		start, end := offset, offset+lineRunes
		offset = end + 1

		trimmed := strings.TrimSpace(line)
		switch {
		case inFence:
			extend(start, end)
			if isFenceLine(line) {
				inFence = false
			}
		case isFenceLine(line):
			flush()
			extend(start, end)
			inFence = true
		case trimmed == "":
			flush()
		case isHeadingLine(trimmed):
			flush()
			extend(start, end)
		default:
			extend(start, end)
		}
	}
	flush()
	return cands
}

// splitOversize turns one candidate into segments of at most maxChars
// runes. The emitted ranges cover [cand.start, cand.end) without gap
// or overlap.
func splitOversize(runes []rune, cand candidate, maxChars int) []model.Segment {
	var out []model.Segment
	for cur := cand.start; cur < cand.end; {
		cut := cutPoint(runes, cur, cand.end, maxChars)
		out = append(out, model.Segment{
			Text:  string(runes[cur:cut]),
			Start: cur,
			End:   cut,
		})
		cur = cut
	}
	return out
}

// cutPoint picks where to cut a piece starting at from. It prefers the
// sentence end closest to the size limit, then the closest newline,
// then any whitespace, and hard-cuts at the limit as a last resort.
func cutPoint(runes []rune, from, end, maxChars int) int {
	limit := from + maxChars
	if limit >= end {
		return end
	}
	windowStart := limit - sentenceScanWindow
	if windowStart <= from {
		windowStart = from + 1
	}
	for k := limit - 1; k >= windowStart; k-- {
		if isSentenceEnd(runes, k, end) {
			return absorbSpaces(runes, k+1, limit)
		}
	}
	for k := limit - 1; k >= windowStart; k-- {
		if runes[k] == '\n' {
			return k + 1
		}
	}
	for k := limit - 1; k >= windowStart; k-- {
		if unicode.IsSpace(runes[k]) {
			return k + 1
		}
	}
	return limit
}

// isSentenceEnd reports whether the rune at k closes a sentence. Latin
// terminators need trailing whitespace or end of text so decimals like
// 3.14 do not count; CJK full-width terminators stand on their own.
func isSentenceEnd(runes []rune, k, end int) bool {
	switch runes[k] {
	case '。', '！', '？':
		return true
	case '.', '!', '?', '…':
		return k+1 >= end || unicode.IsSpace(runes[k+1])
	default:
		return false
	}
}

// absorbSpaces extends the cut past trailing whitespace so the next
// piece starts on a visible rune, never growing past limit.
func absorbSpaces(runes []rune, cut, limit int) int {
	for cut < limit && unicode.IsSpace(runes[cut]) {
		cut++
	}
	return cut
}
