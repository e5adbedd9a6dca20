package model

import (
	"encoding/json"
	"time"
)

// Segment is a numbered, position-bounded fragment of preprocessed text.
// Segment ids (1..N) are the stable referent used in prompts and source
// citations; Start/End are rune offsets into the preprocessed text.
type Segment struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// IntermediateResult holds the view-agnostic artifacts of a document.
// Unique per document; written once per successful extraction and read
// by every view processor and the view-switch fast path.
type IntermediateResult struct {
	ID               int64           `json:"id"`
	DocumentID       int64           `json:"document_id"`
	RawText          string          `json:"raw_text"`
	PreprocessedText string          `json:"preprocessed_text"`
	Segments         []Segment       `json:"segments"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
