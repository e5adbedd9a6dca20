package views

import (
	"basegraph.app/insight/internal/model"
)

// sourceExcerptChars caps the display text of a resolved source.
const sourceExcerptChars = 200

// citation is one field group's sanitized grounding: clamped
// confidence, resolved sources, and whether the model cited ids
// outside the segment table (kept for the re-score penalty).
type citation struct {
	Confidence int
	HasConf    bool
	OutOfRange bool
	Sources    []model.Source
}

// resolveCitation validates a field group's confidence and source ids
// against the segment table. Missing confidence defaults to 50; ids
// outside [1..N] are dropped and flagged.
func resolveCitation(conf *int, ids []int, segments []model.Segment) citation {
	c := citation{Confidence: 50, HasConf: conf != nil}
	if conf != nil {
		c.Confidence = clampInt(*conf, 0, 100)
	}
	valid := make([]int, 0, len(ids))
	for _, id := range ids {
		if id < 1 || id > len(segments) {
			c.OutOfRange = true
			continue
		}
		valid = append(valid, id)
	}
	c.Sources = resolveSources(valid, segments)
	return c
}

// resolveSources maps segment ids to display excerpts. Ids must be
// pre-validated; duplicates collapse to one source.
func resolveSources(ids []int, segments []model.Segment) []model.Source {
	sources := make([]model.Source, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		seg := segments[id-1]
		sources = append(sources, model.Source{
			ID:   id,
			Text: excerpt(seg.Text, sourceExcerptChars),
			Position: model.SourcePosition{
				Start: seg.Start,
				End:   seg.End,
			},
		})
	}
	return sources
}

// excerpt cuts s to at most max runes. Unlike logger.Truncate this is
// rune-safe; segment text is user content and may be multi-byte.
func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
