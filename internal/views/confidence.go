package views

import (
	"strings"

	"basegraph.app/insight/internal/model"
)

// Re-score weights. Base dominates; the other four signals are derived
// from the citations and clamp the model's self-report.
const (
	weightBase          = 0.40
	weightRetrieval     = 0.20
	weightSimilarity    = 0.15
	weightConcentration = 0.15
	weightConsistency   = 0.10

	penaltyOutOfRange    = 20
	penaltyAbsentConcept = 15
	penaltyContradiction = 10
)

// rescoreInput carries the signals feeding one field group's final
// confidence.
type rescoreInput struct {
	Base          int // model-reported confidence, already clamped
	Sources       []model.Source
	SegmentCount  int
	OutOfRange    bool     // model cited ids outside [1..N]
	Claims        []string // concept strings checked against the text
	Text          string   // full preprocessed text
	Contradiction bool
}

// rescore folds retrieval strength, claim similarity, citation
// concentration and consistency into the model-reported confidence,
// applies penalties, and clamps into [0,100].
func rescore(in rescoreInput) int {
	retrieval := retrievalStrength(in.Sources)
	similarity := claimSimilarity(in.Claims, in.Sources)
	concentration := citationConcentration(in.Sources)
	consistency := 100
	if in.Contradiction {
		consistency = 0
	}

	score := float64(in.Base)*weightBase +
		float64(retrieval)*weightRetrieval +
		float64(similarity)*weightSimilarity +
		float64(concentration)*weightConcentration +
		float64(consistency)*weightConsistency

	if in.OutOfRange {
		score -= penaltyOutOfRange
	}
	if hasAbsentClaim(in.Claims, in.Text) {
		score -= penaltyAbsentConcept
	}
	if in.Contradiction {
		score -= penaltyContradiction
	}

	return clampInt(int(score+0.5), 0, 100)
}

// retrievalStrength rates citation coverage: three or more distinct
// sources count as full support.
func retrievalStrength(sources []model.Source) int {
	n := len(sources)
	if n > 3 {
		n = 3
	}
	return n * 100 / 3
}

// claimSimilarity is the fraction of claims that literally appear in
// the cited excerpts. No claims or no sources reads as neutral.
func claimSimilarity(claims []string, sources []model.Source) int {
	claims = checkableClaims(claims)
	if len(claims) == 0 || len(sources) == 0 {
		return 50
	}
	var joined strings.Builder
	for _, s := range sources {
		joined.WriteString(strings.ToLower(s.Text))
		joined.WriteByte('\n')
	}
	text := joined.String()
	found := 0
	for _, claim := range claims {
		if strings.Contains(text, claim) {
			found++
		}
	}
	return found * 100 / len(claims)
}

// citationConcentration rewards citations that cluster in one region
// of the document: the density of the cited ids within their id span.
func citationConcentration(sources []model.Source) int {
	if len(sources) <= 1 {
		return 100
	}
	minID, maxID := sources[0].ID, sources[0].ID
	for _, s := range sources[1:] {
		if s.ID < minID {
			minID = s.ID
		}
		if s.ID > maxID {
			maxID = s.ID
		}
	}
	span := maxID - minID + 1
	return len(sources) * 100 / span
}

// hasAbsentClaim reports whether any checkable claim is missing from
// the preprocessed text entirely.
func hasAbsentClaim(claims []string, text string) bool {
	claims = checkableClaims(claims)
	if len(claims) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, claim := range claims {
		if !strings.Contains(lower, claim) {
			return true
		}
	}
	return false
}

// checkableClaims lowercases and filters claims worth substring
// checking; very short ones match everything and prove nothing.
func checkableClaims(claims []string) []string {
	out := make([]string, 0, len(claims))
	for _, c := range claims {
		c = strings.ToLower(strings.TrimSpace(c))
		if len([]rune(c)) >= 3 {
			out = append(out, c)
		}
	}
	return out
}

// overlaps reports whether two claim lists share a normalized entry.
// Used as the contradiction signal when groups are mutually exclusive.
func overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[strings.ToLower(strings.TrimSpace(s))] = true
	}
	for _, s := range b {
		if seen[strings.ToLower(strings.TrimSpace(s))] {
			return true
		}
	}
	return false
}
