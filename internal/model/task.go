package model

import "time"

// TaskStage is the coarse pipeline phase a task is in.
type TaskStage string

const (
	TaskStageExtract  TaskStage = "extract"
	TaskStageIdentify TaskStage = "identify"
	TaskStageProcess  TaskStage = "process"
)

// ProcessingTask is one worker-side execution of a document. Retries
// create new rows; the most recent row with View unset is authoritative
// for the document. Secondary view runs carry View and report progress
// on their own topic without touching the document's task.
type ProcessingTask struct {
	ID           int64          `json:"id"`
	DocumentID   int64          `json:"document_id"`
	View         *ViewName      `json:"view,omitempty"`
	Stage        TaskStage      `json:"stage"`
	Status       DocumentStatus `json:"status"`
	Progress     int32          `json:"progress"`
	CurrentStage string         `json:"current_stage"`
	ErrorType    *string        `json:"error_type,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
