package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/store"
)

// MultiViewResult bundles every stored view artifact of a document.
type MultiViewResult struct {
	DocumentID int64
	Views      map[model.ViewName]json.RawMessage
	Meta       ResultMeta
}

// ResultMeta summarizes the profile behind a multi-view result.
// Timestamp is the newest result row's update time.
type ResultMeta struct {
	EnabledViews []model.ViewName
	PrimaryView  model.ViewName
	Confidence   float64
	ViewCount    int
	Timestamp    time.Time
}

// SingleViewResult is the one-view form including quality bookkeeping.
// QualityScore is nil when no quality row has been recorded.
type SingleViewResult struct {
	DocumentID            int64
	View                  model.ViewName
	DocumentType          string
	Result                json.RawMessage
	ProcessingTimeSeconds float64
	QualityScore          *float64
	CreatedAt             time.Time
}

// SelectedViewsResult holds the stored subset of the views the caller
// asked for; requested views without a result are omitted from Results.
type SelectedViewsResult struct {
	DocumentID     int64
	RequestedViews []model.ViewName
	Results        map[model.ViewName]json.RawMessage
}

// ViewStatus describes one view's availability. Ready is the
// authoritative readable signal: true only when a result row exists.
type ViewStatus struct {
	View                  model.ViewName
	Status                model.DocumentStatus
	Ready                 bool
	IsPrimary             bool
	ProcessingTimeSeconds *float64
	HasContent            *bool
}

// ViewsStatus is the per-view availability map of a document.
type ViewsStatus struct {
	DocumentID   int64
	Views        map[model.ViewName]ViewStatus
	PrimaryView  model.ViewName
	EnabledViews []model.ViewName
}

// ResultService reads stored view results in their API forms.
type ResultService interface {
	MultiView(ctx context.Context, documentID int64) (*MultiViewResult, error)
	SingleView(ctx context.Context, documentID int64, view model.ViewName) (*SingleViewResult, error)
	SelectedViews(ctx context.Context, documentID int64, requested []model.ViewName) (*SelectedViewsResult, error)
	Status(ctx context.Context, documentID int64) (*ViewsStatus, error)
}

type resultService struct {
	stores StoreProvider
}

func NewResultService(stores StoreProvider) ResultService {
	return &resultService{stores: stores}
}

func (s *resultService) MultiView(ctx context.Context, documentID int64) (*MultiViewResult, error) {
	if _, err := s.stores.Documents().GetByID(ctx, documentID); err != nil {
		return nil, err
	}

	results, err := s.stores.Results().ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	if len(results) == 0 {
		return nil, store.ErrNotFound
	}

	out := &MultiViewResult{
		DocumentID: documentID,
		Views:      make(map[model.ViewName]json.RawMessage, len(results)),
	}
	var latest time.Time
	for _, r := range results {
		out.Views[r.View] = r.ResultData
		if r.UpdatedAt.After(latest) {
			latest = r.UpdatedAt
		}
	}
	out.Meta = ResultMeta{ViewCount: len(results), Timestamp: latest}

	profile, err := s.stores.Profiles().GetByDocument(ctx, documentID)
	switch {
	case err == nil:
		out.Meta.EnabledViews = profile.EnabledViews
		out.Meta.PrimaryView = profile.PrimaryView
		out.Meta.Confidence = profile.Confidence
	case errors.Is(err, store.ErrNotFound):
		// Results without a profile only happen mid-delete; serve what
		// exists.
	default:
		return nil, fmt.Errorf("loading view profile: %w", err)
	}

	return out, nil
}

func (s *resultService) SingleView(ctx context.Context, documentID int64, view model.ViewName) (*SingleViewResult, error) {
	if !model.ValidView(view) {
		return nil, apperr.Newf(apperr.KindBadRequest, "unknown view %q", view)
	}

	result, err := s.stores.Results().GetByDocumentAndView(ctx, documentID, view)
	if err != nil {
		return nil, err
	}

	out := &SingleViewResult{
		DocumentID:            documentID,
		View:                  view,
		DocumentType:          DocumentTypeFor(view),
		Result:                result.ResultData,
		ProcessingTimeSeconds: result.ProcessingTimeSeconds,
		CreatedAt:             result.CreatedAt,
	}

	// The document type follows the profile's primary view when known.
	profile, err := s.stores.Profiles().GetByDocument(ctx, documentID)
	switch {
	case err == nil:
		out.DocumentType = DocumentTypeFor(profile.PrimaryView)
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading view profile: %w", err)
	}

	quality, err := s.stores.Quality().GetLatestByDocumentAndView(ctx, documentID, view)
	switch {
	case err == nil:
		out.QualityScore = &quality.QualityScore
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading quality score: %w", err)
	}

	return out, nil
}

func (s *resultService) SelectedViews(ctx context.Context, documentID int64, requested []model.ViewName) (*SelectedViewsResult, error) {
	if len(requested) == 0 {
		return nil, apperr.New(apperr.KindBadRequest, "views list is empty")
	}
	for _, v := range requested {
		if !model.ValidView(v) {
			return nil, apperr.Newf(apperr.KindBadRequest, "unknown view %q", v)
		}
	}
	if _, err := s.stores.Documents().GetByID(ctx, documentID); err != nil {
		return nil, err
	}

	out := &SelectedViewsResult{
		DocumentID:     documentID,
		RequestedViews: requested,
		Results:        make(map[model.ViewName]json.RawMessage, len(requested)),
	}
	for _, v := range requested {
		result, err := s.stores.Results().GetByDocumentAndView(ctx, documentID, v)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s result: %w", v, err)
		}
		out.Results[v] = result.ResultData
	}
	if len(out.Results) == 0 {
		return nil, store.ErrNotFound
	}

	return out, nil
}

func (s *resultService) Status(ctx context.Context, documentID int64) (*ViewsStatus, error) {
	if _, err := s.stores.Documents().GetByID(ctx, documentID); err != nil {
		return nil, err
	}

	out := &ViewsStatus{
		DocumentID: documentID,
		Views:      make(map[model.ViewName]ViewStatus, len(model.AllViews)),
	}

	profile, err := s.stores.Profiles().GetByDocument(ctx, documentID)
	switch {
	case err == nil:
		out.PrimaryView = profile.PrimaryView
		out.EnabledViews = profile.EnabledViews
	case errors.Is(err, store.ErrNotFound):
		// Not classified yet; report every known view as pending.
	default:
		return nil, fmt.Errorf("loading view profile: %w", err)
	}

	viewSet := out.EnabledViews
	if len(viewSet) == 0 {
		viewSet = model.AllViews
	}
	for _, v := range viewSet {
		st, err := s.viewStatus(ctx, documentID, v, out.PrimaryView)
		if err != nil {
			return nil, err
		}
		out.Views[v] = st
	}

	return out, nil
}

func (s *resultService) viewStatus(ctx context.Context, documentID int64, view, primary model.ViewName) (ViewStatus, error) {
	st := ViewStatus{View: view, Status: model.DocumentStatusPending, IsPrimary: view == primary}

	result, err := s.stores.Results().GetByDocumentAndView(ctx, documentID, view)
	switch {
	case err == nil:
		hasContent := len(result.ResultData) > 0
		st.Status = model.DocumentStatusCompleted
		st.Ready = true
		st.IsPrimary = result.IsPrimary
		st.ProcessingTimeSeconds = &result.ProcessingTimeSeconds
		st.HasContent = &hasContent
		return st, nil
	case !errors.Is(err, store.ErrNotFound):
		return st, fmt.Errorf("loading %s result: %w", view, err)
	}

	// No result yet; the newest per-view task tells pending from failed.
	task, err := s.stores.Tasks().GetLatestByDocumentAndView(ctx, documentID, view)
	switch {
	case err == nil:
		st.Status = task.Status
	case !errors.Is(err, store.ErrNotFound):
		return st, fmt.Errorf("loading %s task: %w", view, err)
	}
	return st, nil
}
