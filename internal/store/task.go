package store

import (
	"context"
	"errors"

	"basegraph.app/insight/core/db"
	"basegraph.app/insight/internal/model"
	"github.com/jackc/pgx/v5"
)

type taskStore struct {
	dbtx db.DBTX
}

func newTaskStore(dbtx db.DBTX) TaskStore {
	return &taskStore{dbtx: dbtx}
}

const taskColumns = `id, document_id, view, stage, status, progress, current_stage, error_type, error_message, started_at, finished_at, created_at, updated_at`

func (s *taskStore) GetByID(ctx context.Context, id int64) (*model.ProcessingTask, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM processing_tasks WHERE id = $1`, id)
	return scanTask(row)
}

// GetLatestByDocument returns the newest document-level task. Secondary
// view tasks are excluded; they never represent the document.
func (s *taskStore) GetLatestByDocument(ctx context.Context, documentID int64) (*model.ProcessingTask, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM processing_tasks
		 WHERE document_id = $1 AND view IS NULL
		 ORDER BY created_at DESC, id DESC LIMIT 1`, documentID)
	return scanTask(row)
}

func (s *taskStore) GetLatestByDocumentAndView(ctx context.Context, documentID int64, view model.ViewName) (*model.ProcessingTask, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM processing_tasks
		 WHERE document_id = $1 AND view = $2
		 ORDER BY created_at DESC, id DESC LIMIT 1`, documentID, view)
	return scanTask(row)
}

func (s *taskStore) Create(ctx context.Context, task *model.ProcessingTask) error {
	return s.dbtx.QueryRow(ctx,
		`INSERT INTO processing_tasks (id, document_id, view, stage, status, progress, current_stage)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		task.ID, task.DocumentID, task.View, task.Stage, task.Status, task.Progress, task.CurrentStage,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
}

// Start stamps started_at once and flips the task to processing. A task
// reclaimed after a worker crash keeps its original start time.
func (s *taskStore) Start(ctx context.Context, id int64) error {
	tag, err := s.dbtx.Exec(ctx,
		`UPDATE processing_tasks
		 SET status = $2, started_at = COALESCE(started_at, now()), updated_at = now()
		 WHERE id = $1`, id, model.DocumentStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *taskStore) SetProgress(ctx context.Context, id int64, stage model.TaskStage, progress int32, currentStage string) error {
	tag, err := s.dbtx.Exec(ctx,
		`UPDATE processing_tasks
		 SET stage = $2, progress = GREATEST(progress, $3), current_stage = $4, updated_at = now()
		 WHERE id = $1`, id, stage, progress, currentStage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Terminalize closes the task with a final status. Progress jumps to
// 100 only on completion; failures keep the last reported value.
func (s *taskStore) Terminalize(ctx context.Context, id int64, status model.DocumentStatus, errorType, errorMessage *string) error {
	tag, err := s.dbtx.Exec(ctx,
		`UPDATE processing_tasks
		 SET status = $2,
		     progress = CASE WHEN $2 = 'completed' THEN 100 ELSE progress END,
		     error_type = $3, error_message = $4,
		     finished_at = now(), updated_at = now()
		 WHERE id = $1`, id, status, errorType, errorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *taskStore) DeleteByDocument(ctx context.Context, documentID int64) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM processing_tasks WHERE document_id = $1`, documentID)
	return err
}

func scanTask(row pgx.Row) (*model.ProcessingTask, error) {
	var task model.ProcessingTask
	err := row.Scan(
		&task.ID,
		&task.DocumentID,
		&task.View,
		&task.Stage,
		&task.Status,
		&task.Progress,
		&task.CurrentStage,
		&task.ErrorType,
		&task.ErrorMessage,
		&task.StartedAt,
		&task.FinishedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}
