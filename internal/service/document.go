package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/store"
)

// ProgressInfo is the live processing state of a document, combined
// from the newest document-level task and the view profile. TaskID is
// nil until a task row exists.
type ProgressInfo struct {
	DocumentID   int64
	Progress     int32
	CurrentStage string
	Status       model.DocumentStatus
	EnabledViews []model.ViewName
	PrimaryView  model.ViewName
	TaskID       *int64
}

// HistoryPage is one page of the upload history listing.
type HistoryPage struct {
	Documents  []model.Document
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

const (
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

// DocumentService reads document lifecycle state and deletes documents.
type DocumentService interface {
	Get(ctx context.Context, documentID int64) (*model.Document, error)
	Progress(ctx context.Context, documentID int64) (*ProgressInfo, error)
	History(ctx context.Context, filter store.HistoryFilter) (*HistoryPage, error)

	// Delete removes the document with all derived rows in one
	// transaction, then the blob best-effort.
	Delete(ctx context.Context, documentID int64) error
}

type documentService struct {
	stores StoreProvider
	tx     TxRunner
	blobs  store.BlobStore
	logger *slog.Logger
}

func NewDocumentService(stores StoreProvider, tx TxRunner, blobs store.BlobStore, logger *slog.Logger) DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentService{
		stores: stores,
		tx:     tx,
		blobs:  blobs,
		logger: logger,
	}
}

func (s *documentService) Get(ctx context.Context, documentID int64) (*model.Document, error) {
	return s.stores.Documents().GetByID(ctx, documentID)
}

func (s *documentService) Progress(ctx context.Context, documentID int64) (*ProgressInfo, error) {
	doc, err := s.stores.Documents().GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	info := &ProgressInfo{DocumentID: documentID, Status: doc.Status}

	task, err := s.stores.Tasks().GetLatestByDocument(ctx, documentID)
	switch {
	case err == nil:
		info.Progress = task.Progress
		info.CurrentStage = task.CurrentStage
		info.Status = task.Status
		info.TaskID = &task.ID
	case errors.Is(err, store.ErrNotFound):
		// Not queued yet; the document status stands on its own.
	default:
		return nil, fmt.Errorf("loading latest task: %w", err)
	}

	profile, err := s.stores.Profiles().GetByDocument(ctx, documentID)
	switch {
	case err == nil:
		info.EnabledViews = profile.EnabledViews
		info.PrimaryView = profile.PrimaryView
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading view profile: %w", err)
	}

	return info, nil
}

func (s *documentService) History(ctx context.Context, filter store.HistoryFilter) (*HistoryPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultHistoryPageSize
	}
	if filter.PageSize > maxHistoryPageSize {
		filter.PageSize = maxHistoryPageSize
	}

	docs, total, err := s.stores.Documents().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	totalPages := int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))
	return &HistoryPage{
		Documents:  docs,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *documentService) Delete(ctx context.Context, documentID int64) error {
	doc, err := s.stores.Documents().GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Results().DeleteByDocument(ctx, documentID); err != nil {
			return fmt.Errorf("deleting results: %w", err)
		}
		if err := stores.Quality().DeleteByDocument(ctx, documentID); err != nil {
			return fmt.Errorf("deleting quality rows: %w", err)
		}
		if err := stores.Profiles().DeleteByDocument(ctx, documentID); err != nil {
			return fmt.Errorf("deleting view profile: %w", err)
		}
		if err := stores.Intermediates().DeleteByDocument(ctx, documentID); err != nil {
			return fmt.Errorf("deleting intermediate results: %w", err)
		}
		if err := stores.Tasks().DeleteByDocument(ctx, documentID); err != nil {
			return fmt.Errorf("deleting tasks: %w", err)
		}
		return stores.Documents().Delete(ctx, documentID)
	})
	if err != nil {
		return err
	}

	// Rows are gone; a stale blob is an acceptable leak, not a failure.
	if err := s.blobs.Delete(ctx, doc.BlobPath); err != nil {
		s.logger.WarnContext(ctx, "blob removal failed after document delete",
			"document_id", documentID, "blob_path", doc.BlobPath, "error", err)
	}

	s.logger.InfoContext(ctx, "document deleted", "document_id", documentID)
	return nil
}
