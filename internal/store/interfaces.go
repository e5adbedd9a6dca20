package store

import (
	"context"
	"errors"
	"time"

	"basegraph.app/insight/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// HistoryFilter narrows and pages the document history listing. The
// date bounds are inclusive and compare against upload_time.
type HistoryFilter struct {
	Status   *model.DocumentStatus
	FileType *model.FileType
	Search   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// DocumentStore defines the contract for document data access
type DocumentStore interface {
	GetByID(ctx context.Context, id int64) (*model.Document, error)
	Create(ctx context.Context, doc *model.Document) error
	SetStatus(ctx context.Context, id int64, status model.DocumentStatus) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter HistoryFilter) ([]model.Document, int64, error)
}

// TaskStore defines the contract for processing task data access.
// Tasks are append-only per document; the newest document-level row
// (view IS NULL) is authoritative for the document.
type TaskStore interface {
	GetByID(ctx context.Context, id int64) (*model.ProcessingTask, error)
	GetLatestByDocument(ctx context.Context, documentID int64) (*model.ProcessingTask, error)
	GetLatestByDocumentAndView(ctx context.Context, documentID int64, view model.ViewName) (*model.ProcessingTask, error)
	Create(ctx context.Context, task *model.ProcessingTask) error
	Start(ctx context.Context, id int64) error
	SetProgress(ctx context.Context, id int64, stage model.TaskStage, progress int32, currentStage string) error
	Terminalize(ctx context.Context, id int64, status model.DocumentStatus, errorType, errorMessage *string) error
	DeleteByDocument(ctx context.Context, documentID int64) error
}

// IntermediateStore defines the contract for view-agnostic artifact access
type IntermediateStore interface {
	GetByDocument(ctx context.Context, documentID int64) (*model.IntermediateResult, error)
	Upsert(ctx context.Context, ir *model.IntermediateResult) error
	DeleteByDocument(ctx context.Context, documentID int64) error
}

// ProfileStore defines the contract for view profile access
type ProfileStore interface {
	GetByDocument(ctx context.Context, documentID int64) (*model.DocumentViewProfile, error)
	Upsert(ctx context.Context, profile *model.DocumentViewProfile) error
	DeleteByDocument(ctx context.Context, documentID int64) error
}

// ResultStore defines the contract for per-view result access.
// Upsert keys on (document_id, view) so reprocessing replaces in place.
type ResultStore interface {
	GetByDocumentAndView(ctx context.Context, documentID int64, view model.ViewName) (*model.ProcessingResult, error)
	ListByDocument(ctx context.Context, documentID int64) ([]model.ProcessingResult, error)
	Upsert(ctx context.Context, result *model.ProcessingResult) error
	DeleteByDocument(ctx context.Context, documentID int64) error
}

// MetricStore defines the contract for AI call metric access
type MetricStore interface {
	Append(ctx context.Context, metric *model.AiCallMetric) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// QualityStore defines the contract for result quality access
type QualityStore interface {
	Append(ctx context.Context, quality *model.AiResultQuality) error
	GetLatestByDocumentAndView(ctx context.Context, documentID int64, view model.ViewName) (*model.AiResultQuality, error)
	DeleteByDocument(ctx context.Context, documentID int64) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
