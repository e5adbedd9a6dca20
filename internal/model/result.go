package model

import (
	"encoding/json"
	"time"
)

// ProcessingResult is one view's artifact for a document. The composite
// key (DocumentID, View) is unique; the engine's view-independence
// guarantee rests on that constraint.
type ProcessingResult struct {
	ID                    int64           `json:"id"`
	DocumentID            int64           `json:"document_id"`
	View                  ViewName        `json:"view"`
	ResultData            json.RawMessage `json:"result_data"`
	IsPrimary             bool            `json:"is_primary"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
