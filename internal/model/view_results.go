package model

// The three view result shapes are deliberately divergent; each is
// persisted as the opaque result_data of its ProcessingResult row.
// Fields carrying confidence use the [0,100] scale with labels from
// ConfidenceLabelFor.

// SourcePosition is the character range of a cited segment in the
// preprocessed text.
type SourcePosition struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Source resolves a cited segment id to a display excerpt.
type Source struct {
	ID       int            `json:"id"`
	Text     string         `json:"text"`
	Position SourcePosition `json:"position"`
}

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ConfidenceLabelFor buckets a [0,100] score: high ≥75, medium ≥40,
// low otherwise.
func ConfidenceLabelFor(score int) string {
	switch {
	case score >= 75:
		return ConfidenceHigh
	case score >= 40:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// LearningResult is the learning view's four-step artifact.
type LearningResult struct {
	Prerequisites       Prerequisites       `json:"prerequisites"`
	LearningPath        []LearningStage     `json:"learning_path"`
	LearningMethods     LearningMethods     `json:"learning_methods"`
	RelatedTechnologies RelatedTechnologies `json:"related_technologies"`
	Metadata            map[string]any      `json:"metadata,omitempty"`
}

type Prerequisites struct {
	Required        []string `json:"required"`
	Recommended     []string `json:"recommended"`
	Confidence      int      `json:"confidence"`
	ConfidenceLabel string   `json:"confidence_label"`
	Sources         []Source `json:"sources"`
}

type LearningStage struct {
	Stage      int      `json:"stage"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Confidence int      `json:"confidence"`
	Sources    []Source `json:"sources"`
}

type LearningMethods struct {
	Theory     string   `json:"theory"`
	Practice   string   `json:"practice"`
	Confidence int      `json:"confidence"`
	Sources    []Source `json:"sources"`
}

type RelatedTechnologies struct {
	Technologies    []string `json:"technologies"`
	Confidence      int      `json:"confidence"`
	ConfidenceLabel string   `json:"confidence_label,omitempty"`
	Sources         []Source `json:"sources"`
}

// QAResult is the qa view's three-step artifact. Confidence and sources
// are optional on questions (weak display contract).
type QAResult struct {
	Summary            QASummary           `json:"summary"`
	GeneratedQuestions []GeneratedQuestion `json:"generated_questions"`
	ExtractedAnswers   ExtractedAnswers    `json:"extracted_answers"`
	Metadata           map[string]any      `json:"metadata,omitempty"`
}

type QASummary struct {
	KeyPoints      []string       `json:"key_points"`
	QuestionTypes  map[string]int `json:"question_types"`
	Difficulty     map[string]int `json:"difficulty"`
	TotalQuestions int            `json:"total_questions"`
	Confidence     *int           `json:"confidence,omitempty"`
	Sources        []Source       `json:"sources,omitempty"`
}

type GeneratedQuestion struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Hint       *string  `json:"hint,omitempty"`
	Difficulty *string  `json:"difficulty,omitempty"`
	Confidence *int     `json:"confidence,omitempty"`
	Sources    []Source `json:"sources,omitempty"`
}

type ExtractedAnswers struct {
	Answers []string `json:"answers"`
}

// SystemResult is the system view's six-step artifact.
type SystemResult struct {
	ConfigSteps         []ConfigStep        `json:"config_steps"`
	Components          []SystemComponent   `json:"components"`
	ArchitectureView    string              `json:"architecture_view"`
	PlainExplanation    string              `json:"plain_explanation"`
	Checklist           Checklist           `json:"checklist"`
	RelatedTechnologies RelatedTechnologies `json:"related_technologies"`
	Metadata            map[string]any      `json:"metadata,omitempty"`
}

type ConfigStep struct {
	Step        int      `json:"step"`
	Description string   `json:"description"`
	Confidence  *int     `json:"confidence,omitempty"`
	Sources     []Source `json:"sources,omitempty"`
}

type SystemComponent struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        *string `json:"type,omitempty"`
}

type Checklist struct {
	Items []string `json:"items"`
}
