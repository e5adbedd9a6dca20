package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/insight/common/id"
	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/store"
	"basegraph.app/insight/internal/views"
)

// switchWarnAfter is the fast-path latency promise. Crossing it only
// logs; the caller still gets the result.
const switchWarnAfter = 5 * time.Second

// ViewSwitch is the outcome of one switch-view call.
type ViewSwitch struct {
	DocumentID              int64
	View                    model.ViewName
	Result                  json.RawMessage
	FromCache               bool
	UsedIntermediateResults bool
	ProcessingTimeSeconds   float64
}

// ViewSwitchService serves view switches from cache, or generates the
// missing view inline from the stored intermediate artifacts. It never
// re-extracts the document.
type ViewSwitchService interface {
	Switch(ctx context.Context, documentID int64, view model.ViewName) (*ViewSwitch, error)
}

type viewSwitchService struct {
	stores   StoreProvider
	tx       TxRunner
	registry *views.Registry
	logger   *slog.Logger
}

func NewViewSwitchService(stores StoreProvider, tx TxRunner, registry *views.Registry, logger *slog.Logger) ViewSwitchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &viewSwitchService{
		stores:   stores,
		tx:       tx,
		registry: registry,
		logger:   logger,
	}
}

func (s *viewSwitchService) Switch(ctx context.Context, documentID int64, view model.ViewName) (*ViewSwitch, error) {
	if !s.registry.Has(view) {
		return nil, apperr.Newf(apperr.KindBadRequest, "unknown view %q", view)
	}
	if _, err := s.stores.Documents().GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	if _, err := s.stores.Profiles().GetByDocument(ctx, documentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Newf(apperr.KindBadRequest, "document %d has not been classified yet", documentID)
		}
		return nil, fmt.Errorf("loading view profile: %w", err)
	}

	cached, err := s.stores.Results().GetByDocumentAndView(ctx, documentID, view)
	switch {
	case err == nil:
		return &ViewSwitch{
			DocumentID:            documentID,
			View:                  view,
			Result:                cached.ResultData,
			FromCache:             true,
			ProcessingTimeSeconds: cached.ProcessingTimeSeconds,
		}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("loading cached result: %w", err)
	}

	ir, err := s.stores.Intermediates().GetByDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Newf(apperr.KindBadRequest, "document %d has no intermediate artifacts to process from", documentID)
		}
		return nil, fmt.Errorf("loading intermediate results: %w", err)
	}

	processor, _ := s.registry.Get(view)
	start := time.Now()
	data, err := processor.Process(ctx, views.ProcessInput{
		DocumentID:   documentID,
		Preprocessed: ir.PreprocessedText,
		Segments:     ir.Segments,
	})
	if err != nil {
		return nil, fmt.Errorf("generating %s view: %w", view, err)
	}
	elapsed := time.Since(start).Seconds()

	result := &model.ProcessingResult{
		ID:                    id.New(),
		DocumentID:            documentID,
		View:                  view,
		ResultData:            data,
		IsPrimary:             false,
		ProcessingTimeSeconds: elapsed,
	}
	err = s.tx.WithTx(ctx, func(stores StoreProvider) error {
		return stores.Results().Upsert(ctx, result)
	})
	if err != nil {
		return nil, fmt.Errorf("storing %s result: %w", view, err)
	}
	s.recordQuality(ctx, documentID, view, data)

	if elapsed > switchWarnAfter.Seconds() {
		s.logger.WarnContext(ctx, "view switch exceeded fast-path budget",
			"document_id", documentID, "view", view, "seconds", elapsed)
	}
	s.logger.InfoContext(ctx, "view generated on switch",
		"document_id", documentID, "view", view, "seconds", elapsed)

	return &ViewSwitch{
		DocumentID:              documentID,
		View:                    view,
		Result:                  data,
		FromCache:               false,
		UsedIntermediateResults: true,
		ProcessingTimeSeconds:   elapsed,
	}, nil
}

func (s *viewSwitchService) recordQuality(ctx context.Context, documentID int64, view model.ViewName, payload json.RawMessage) {
	quality, err := views.ComputeQuality(documentID, view, payload)
	if err != nil {
		s.logger.WarnContext(ctx, "quality scoring failed",
			"document_id", documentID, "view", view, "error", err)
		return
	}
	quality.ID = id.New()
	if err := s.stores.Quality().Append(ctx, quality); err != nil {
		s.logger.WarnContext(ctx, "quality append failed",
			"document_id", documentID, "view", view, "error", err)
	}
}
