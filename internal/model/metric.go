package model

import "time"

// AiCallStatus is the outcome class of one gateway invocation.
type AiCallStatus string

const (
	AiCallStatusSuccess AiCallStatus = "success"
	AiCallStatusFailed  AiCallStatus = "failed"
	AiCallStatusMocked  AiCallStatus = "mocked"
)

// AiCallMetric is an append-only record of one LLM invocation
// (including all its retry attempts). Swept after the configured
// retention window.
type AiCallMetric struct {
	ID             int64        `json:"id"`
	DocumentID     *int64       `json:"document_id,omitempty"`
	TaskID         *int64       `json:"task_id,omitempty"`
	CallType       string       `json:"call_type"`
	Status         AiCallStatus `json:"status"`
	ResponseTimeMs int64        `json:"response_time_ms"`
	ErrorType      *string      `json:"error_type,omitempty"`
	RetryCount     int32        `json:"retry_count"`
	CreatedAt      time.Time    `json:"created_at"`
}

// AiResultQuality summarizes a completed view's output quality.
type AiResultQuality struct {
	ID                  int64     `json:"id"`
	DocumentID          int64     `json:"document_id"`
	View                ViewName  `json:"view"`
	FieldCompleteness   float64   `json:"field_completeness"`
	ConfidenceAvg       float64   `json:"confidence_avg"`
	ConfidenceMin       float64   `json:"confidence_min"`
	ConfidenceMax       float64   `json:"confidence_max"`
	SourcesCount        int32     `json:"sources_count"`
	SourcesCompleteness float64   `json:"sources_completeness"`
	QualityScore        float64   `json:"quality_score"`
	CreatedAt           time.Time `json:"created_at"`
}
