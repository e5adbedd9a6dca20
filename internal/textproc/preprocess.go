// Package textproc normalizes raw extracted text and splits it into
// numbered segments. Everything here is pure: no I/O, no clock, no
// randomness, so the same document always yields the same segments.
package textproc

import (
	"strings"
	"unicode"

	"basegraph.app/insight/internal/apperr"
)

const (
	// DefaultMaxContentChars caps preprocessed content length in runes.
	// Anything beyond is cut before further processing.
	DefaultMaxContentChars = 500_000

	// minLineRunes is the smallest trimmed line kept outside fenced code.
	// Page numbers and stray bullets fall below it.
	minLineRunes = 2

	// headerFooterMaxLen and headerFooterMinCount drive repeated-line
	// removal: a trimmed line of at most headerFooterMaxLen runes seen
	// at least headerFooterMinCount times is treated as a running
	// header or footer and dropped everywhere.
	headerFooterMaxLen   = 80
	headerFooterMinCount = 3
)

// PreprocessResult carries the cleaned text plus what the cleaning did
// to it. TruncatedFrom is the rune count before the hard cut, zero when
// the content fit.
type PreprocessResult struct {
	Text          string
	TruncatedFrom int
}

// Preprocess cleans raw extracted text: newline normalization, control
// character removal, whitespace collapsing, repeated header/footer
// removal and blank-line folding. Lines inside fenced code blocks keep
// their spacing. maxChars <= 0 selects DefaultMaxContentChars.
//
// Returns a low_quality error when nothing usable remains.
func Preprocess(raw string, maxChars int) (PreprocessResult, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxContentChars
	}

	text := normalizeNewlines(raw)
	text, truncatedFrom := truncateRunes(text, maxChars)
	text = stripControl(text)

	lines := splitLines(text)
	lines = collapseWhitespace(lines)
	lines = removeRepeatedLines(lines)
	lines = dropShortLines(lines)
	lines = foldBlankRuns(lines)

	out := strings.TrimSpace(strings.Join(lines, "\n"))
	if out == "" {
		return PreprocessResult{}, apperr.New(apperr.KindLowQuality, "no usable text after preprocessing")
	}
	return PreprocessResult{Text: out, TruncatedFrom: truncatedFrom}, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// truncateRunes cuts s to at most maxChars runes and reports the
// original rune count when it had to cut.
func truncateRunes(s string, maxChars int) (string, int) {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s, 0
	}
	return string(runes[:maxChars]), len(runes)
}

// stripControl removes control characters except newline and tab.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

// collapseWhitespace reduces every whitespace run to a single space and
// trims line edges. Fenced code lines pass through untouched so that
// indentation survives.
func collapseWhitespace(lines []string) []string {
	out := make([]string, 0, len(lines))
	inFence := false
	for _, line := range lines {
		if inFence {
			out = append(out, strings.TrimRight(line, " \t"))
			if isFenceLine(line) {
				inFence = false
			}
			continue
		}
		if isFenceLine(line) {
			inFence = true
			out = append(out, strings.TrimSpace(line))
			continue
		}
		out = append(out, strings.Join(strings.Fields(line), " "))
	}
	return out
}

// removeRepeatedLines drops running headers and footers: short trimmed
// lines repeated across the document. Headings, fences and fenced code
// are never counted or removed.
func removeRepeatedLines(lines []string) []string {
	counts := make(map[string]int)
	inFence := false
	for _, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if key, ok := headerFooterKey(line); ok {
			counts[key]++
		}
	}

	out := make([]string, 0, len(lines))
	inFence = false
	for _, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
			out = append(out, line)
			continue
		}
		if !inFence {
			if key, ok := headerFooterKey(line); ok && counts[key] >= headerFooterMinCount {
				continue
			}
		}
		out = append(out, line)
	}
	return out
}

func headerFooterKey(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || isHeadingLine(trimmed) {
		return "", false
	}
	if len([]rune(trimmed)) > headerFooterMaxLen {
		return "", false
	}
	return trimmed, true
}

// dropShortLines removes non-empty lines below minLineRunes outside
// fenced code. Blank lines stay: they are the paragraph separators the
// segmenter splits on.
func dropShortLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	inFence := false
	for _, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
			out = append(out, line)
			continue
		}
		if !inFence {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && len([]rune(trimmed)) < minLineRunes {
				continue
			}
		}
		out = append(out, line)
	}
	return out
}

// foldBlankRuns collapses runs of three or more blank lines into one.
// Single and double blanks keep their meaning as paragraph breaks.
func foldBlankRuns(lines []string) []string {
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blanks++
			continue
		}
		switch {
		case blanks >= 3:
			out = append(out, "")
		case blanks > 0:
			for i := 0; i < blanks; i++ {
				out = append(out, "")
			}
		}
		blanks = 0
		out = append(out, line)
	}
	return out
}

func isFenceLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

func isHeadingLine(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	rest := strings.TrimLeft(trimmed, "#")
	return strings.HasPrefix(rest, " ") || rest == ""
}
