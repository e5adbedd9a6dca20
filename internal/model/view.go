package model

import "time"

// ViewName is one of the three processing perspectives applied to a
// document.
type ViewName string

const (
	ViewLearning ViewName = "learning"
	ViewQA       ViewName = "qa"
	ViewSystem   ViewName = "system"
)

// AllViews in classifier tie-break order.
var AllViews = []ViewName{ViewLearning, ViewQA, ViewSystem}

// ValidView reports whether v names a registered view.
func ValidView(v ViewName) bool {
	switch v {
	case ViewLearning, ViewQA, ViewSystem:
		return true
	default:
		return false
	}
}

// DetectionMethod records how the view profile was decided.
type DetectionMethod string

const (
	DetectionMethodRule   DetectionMethod = "rule"
	DetectionMethodAI     DetectionMethod = "ai"
	DetectionMethodHybrid DetectionMethod = "hybrid"
	DetectionMethodNone   DetectionMethod = "none"
)

// DocumentViewProfile is the classifier's verdict for a document.
// Exactly one per document. EnabledViews is non-empty and always
// contains PrimaryView. DetectionScores are the rule scores in [0,1]
// and are the sole classifier input to the result cache key.
type DocumentViewProfile struct {
	ID              int64                `json:"id"`
	DocumentID      int64                `json:"document_id"`
	PrimaryView     ViewName             `json:"primary_view"`
	EnabledViews    []ViewName           `json:"enabled_views"`
	DetectionScores map[ViewName]float64 `json:"detection_scores"`
	DetectionMethod DetectionMethod      `json:"detection_method"`
	Confidence      float64              `json:"confidence"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// Enabled reports whether v is in the profile's enabled set.
func (p *DocumentViewProfile) Enabled(v ViewName) bool {
	for _, e := range p.EnabledViews {
		if e == v {
			return true
		}
	}
	return false
}
