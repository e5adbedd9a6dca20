package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"basegraph.app/insight/common/id"
	"basegraph.app/insight/core/config"
	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/queue"
	"basegraph.app/insight/internal/store"
	"basegraph.app/insight/internal/textproc"
)

// assumedViewCount sizes the time estimate when the caller gives no
// views hint; the classifier may enable up to all three views.
const assumedViewCount = 3

// UploadService ingests document files and kicks off processing.
type UploadService interface {
	// Upload validates, stores and enqueues one uploaded file. The
	// returned document and task are both pending; progress arrives on
	// the task's topic once a worker picks the job up.
	Upload(ctx context.Context, filename string, size int64, content io.Reader, viewsHint []model.ViewName) (*model.Document, *model.ProcessingTask, error)
}

type uploadService struct {
	tx       TxRunner
	blobs    store.BlobStore
	producer queue.Producer
	cfg      config.ProcessingConfig
	logger   *slog.Logger
}

func NewUploadService(tx TxRunner, blobs store.BlobStore, producer queue.Producer, cfg config.ProcessingConfig, logger *slog.Logger) UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &uploadService{
		tx:       tx,
		blobs:    blobs,
		producer: producer,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *uploadService) Upload(ctx context.Context, filename string, size int64, content io.Reader, viewsHint []model.ViewName) (*model.Document, *model.ProcessingTask, error) {
	fileType, err := validateExtension(filename)
	if err != nil {
		return nil, nil, err
	}

	if size > s.cfg.MaxFileSizeBytes {
		return nil, nil, apperr.Newf(apperr.KindFileTooLarge, "file is %d bytes, limit is %d", size, s.cfg.MaxFileSizeBytes).
			WithDetail("file_size", size).
			WithDetail("max_file_size", s.cfg.MaxFileSizeBytes)
	}

	for _, v := range viewsHint {
		if !model.ValidView(v) {
			return nil, nil, apperr.Newf(apperr.KindBadRequest, "unknown view %q", v)
		}
	}

	viewCount := len(viewsHint)
	if viewCount == 0 {
		viewCount = assumedViewCount
	}
	estimated := textproc.EstimateSeconds(textproc.EstimatedChars(fileType, size), viewCount)
	if estimated > s.cfg.TimeCeilingSeconds {
		return nil, nil, apperr.Newf(apperr.KindTimeExceedsBudget,
			"estimated %ds of processing exceeds the %ds ceiling", estimated, s.cfg.TimeCeilingSeconds).
			WithDetail("estimated_seconds", estimated).
			WithDetail("ceiling_seconds", s.cfg.TimeCeilingSeconds)
	}

	// The declared size passed validation; the stream is still capped
	// in case it disagrees with the multipart header.
	data, err := io.ReadAll(io.LimitReader(content, s.cfg.MaxFileSizeBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxFileSizeBytes {
		return nil, nil, apperr.Newf(apperr.KindFileTooLarge, "file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes).
			WithDetail("max_file_size", s.cfg.MaxFileSizeBytes)
	}

	docID := id.New()
	relPath, err := s.blobs.Write(ctx, docID, filename, data)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBlobTooLarge):
			return nil, nil, apperr.Wrap(apperr.KindFileTooLarge, err)
		case errors.Is(err, store.ErrBlobEmpty):
			return nil, nil, apperr.New(apperr.KindBadRequest, "uploaded file is empty")
		default:
			return nil, nil, fmt.Errorf("storing blob: %w", err)
		}
	}

	doc := &model.Document{
		ID:         docID,
		Filename:   filepath.Base(filename),
		BlobPath:   relPath,
		FileSize:   int64(len(data)),
		FileType:   fileType,
		Status:     model.DocumentStatusPending,
		UploadTime: time.Now().UTC(),
	}
	task := &model.ProcessingTask{
		ID:           id.New(),
		DocumentID:   docID,
		Stage:        model.TaskStageExtract,
		Status:       model.DocumentStatusPending,
		Progress:     0,
		CurrentStage: "queued",
	}

	err = s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Documents().Create(ctx, doc); err != nil {
			return fmt.Errorf("creating document: %w", err)
		}
		if err := stores.Tasks().Create(ctx, task); err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		return nil
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, relPath); delErr != nil {
			s.logger.WarnContext(ctx, "orphaned blob after failed upload",
				"blob_path", relPath, "error", delErr)
		}
		return nil, nil, err
	}

	job := queue.Job{
		JobType:    queue.JobTypeProcessDocument,
		DocumentID: doc.ID,
		TaskID:     task.ID,
		Views:      viewStrings(viewsHint),
	}
	if err := s.producer.Enqueue(ctx, job); err != nil {
		// No worker will ever see these rows; terminalize so the client
		// gets a retryable failure instead of eternal pending.
		s.terminalizeUnqueued(ctx, doc.ID, task.ID, err)
		return nil, nil, fmt.Errorf("enqueueing processing job: %w", err)
	}

	s.logger.InfoContext(ctx, "document uploaded",
		"document_id", doc.ID,
		"task_id", task.ID,
		"file_type", fileType,
		"file_size", doc.FileSize,
		"views_hint", job.Views,
	)
	return doc, task, nil
}

func (s *uploadService) terminalizeUnqueued(ctx context.Context, documentID, taskID int64, cause error) {
	errType := string(apperr.KindServerError)
	errMsg := cause.Error()
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Tasks().Terminalize(ctx, taskID, model.DocumentStatusFailed, &errType, &errMsg); err != nil {
			return err
		}
		return stores.Documents().SetStatus(ctx, documentID, model.DocumentStatusFailed)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "terminalizing unqueued upload failed",
			"document_id", documentID, "task_id", taskID, "error", err)
	}
}

// validateExtension maps the filename extension to a FileType. Legacy
// .doc gets a dedicated message because converting to .docx is the
// expected user action.
func validateExtension(filename string) (model.FileType, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "doc" {
		return "", apperr.New(apperr.KindUnsupportedFormat, "legacy .doc files are not supported, convert to .docx first").
			WithDetail("extension", ext).
			WithDetail("suggested_action", "convert_to_docx")
	}
	fileType, ok := model.FileTypeFromExtension(ext)
	if !ok {
		return "", apperr.Newf(apperr.KindUnsupportedFormat, "unsupported file type %q", ext).
			WithDetail("extension", ext)
	}
	return fileType, nil
}

func viewStrings(views []model.ViewName) []string {
	if len(views) == 0 {
		return nil
	}
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = string(v)
	}
	return out
}
