package service

import (
	"context"
	"fmt"

	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/views"
)

// viewDocumentTypes maps each view to the document-type label the
// result and recommendation APIs expose.
var viewDocumentTypes = map[model.ViewName]string{
	model.ViewLearning: "tutorial",
	model.ViewQA:       "faq",
	model.ViewSystem:   "technical_doc",
}

// DocumentTypeFor returns the document-type label for a view.
func DocumentTypeFor(view model.ViewName) string {
	if t, ok := viewDocumentTypes[view]; ok {
		return t
	}
	return "document"
}

// TypeMapping returns a copy of the view to document-type table.
func TypeMapping() map[model.ViewName]string {
	out := make(map[model.ViewName]string, len(viewDocumentTypes))
	for v, t := range viewDocumentTypes {
		out[v] = t
	}
	return out
}

// Recommendation is an on-demand classifier verdict for an already
// extracted document.
type Recommendation struct {
	PrimaryView     model.ViewName
	EnabledViews    []model.ViewName
	DetectionScores map[model.ViewName]float64
	CacheKey        string
	TypeMapping     map[model.ViewName]string
	Method          model.DetectionMethod
}

// RecommendService re-runs view detection against the stored
// intermediate artifacts. The stored profile is left untouched; the
// verdict is advisory.
type RecommendService interface {
	Recommend(ctx context.Context, documentID int64) (*Recommendation, error)
}

type recommendService struct {
	stores     StoreProvider
	classifier *views.Classifier
}

func NewRecommendService(stores StoreProvider, classifier *views.Classifier) RecommendService {
	return &recommendService{stores: stores, classifier: classifier}
}

func (s *recommendService) Recommend(ctx context.Context, documentID int64) (*Recommendation, error) {
	ir, err := s.stores.Intermediates().GetByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	det, err := s.classifier.Classify(ctx, documentID, 0, ir.PreprocessedText)
	if err != nil {
		return nil, fmt.Errorf("classifying document: %w", err)
	}

	return &Recommendation{
		PrimaryView:     det.Primary,
		EnabledViews:    det.Enabled,
		DetectionScores: det.Scores,
		CacheKey:        views.CacheKey(documentID, det.Scores),
		TypeMapping:     TypeMapping(),
		Method:          det.Method,
	}, nil
}
