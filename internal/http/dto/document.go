package dto

import (
	"encoding/json"
	"time"

	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/service"
)

// Snowflake IDs serialize as strings so browser clients keep the full
// 64 bits.

type UploadResponse struct {
	DocumentID int64                `json:"document_id,string"`
	TaskID     int64                `json:"task_id,string"`
	Filename   string               `json:"filename"`
	FileSize   int64                `json:"file_size"`
	FileType   model.FileType       `json:"file_type"`
	Status     model.DocumentStatus `json:"status"`
	UploadTime time.Time            `json:"upload_time"`
}

func ToUploadResponse(doc *model.Document, task *model.ProcessingTask) *UploadResponse {
	return &UploadResponse{
		DocumentID: doc.ID,
		TaskID:     task.ID,
		Filename:   doc.Filename,
		FileSize:   doc.FileSize,
		FileType:   doc.FileType,
		Status:     doc.Status,
		UploadTime: doc.UploadTime,
	}
}

type DocumentResponse struct {
	ID         int64                `json:"id,string"`
	Filename   string               `json:"filename"`
	FileSize   int64                `json:"file_size"`
	FileType   model.FileType       `json:"file_type"`
	Status     model.DocumentStatus `json:"status"`
	UploadTime time.Time            `json:"upload_time"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func ToDocumentResponse(doc *model.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:         doc.ID,
		Filename:   doc.Filename,
		FileSize:   doc.FileSize,
		FileType:   doc.FileType,
		Status:     doc.Status,
		UploadTime: doc.UploadTime,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

type ProgressResponse struct {
	DocumentID   int64                `json:"document_id,string"`
	Progress     int32                `json:"progress"`
	CurrentStage string               `json:"current_stage"`
	Status       model.DocumentStatus `json:"status"`
	EnabledViews []model.ViewName     `json:"enabled_views,omitempty"`
	PrimaryView  model.ViewName       `json:"primary_view,omitempty"`
	TaskID       *int64               `json:"task_id,string,omitempty"`
}

func ToProgressResponse(info *service.ProgressInfo) *ProgressResponse {
	return &ProgressResponse{
		DocumentID:   info.DocumentID,
		Progress:     info.Progress,
		CurrentStage: info.CurrentStage,
		Status:       info.Status,
		EnabledViews: info.EnabledViews,
		PrimaryView:  info.PrimaryView,
		TaskID:       info.TaskID,
	}
}

type ResultMetaResponse struct {
	EnabledViews []model.ViewName `json:"enabled_views"`
	PrimaryView  model.ViewName   `json:"primary_view"`
	Confidence   float64          `json:"confidence"`
	ViewCount    int              `json:"view_count"`
	Timestamp    time.Time        `json:"timestamp"`
}

type MultiViewResultResponse struct {
	DocumentID int64                              `json:"document_id,string"`
	Views      map[model.ViewName]json.RawMessage `json:"views"`
	Meta       ResultMetaResponse                 `json:"meta"`
}

func ToMultiViewResultResponse(res *service.MultiViewResult) *MultiViewResultResponse {
	return &MultiViewResultResponse{
		DocumentID: res.DocumentID,
		Views:      res.Views,
		Meta: ResultMetaResponse{
			EnabledViews: res.Meta.EnabledViews,
			PrimaryView:  res.Meta.PrimaryView,
			Confidence:   res.Meta.Confidence,
			ViewCount:    res.Meta.ViewCount,
			Timestamp:    res.Meta.Timestamp,
		},
	}
}

type SingleViewResultResponse struct {
	DocumentID     int64           `json:"document_id,string"`
	View           model.ViewName  `json:"view"`
	DocumentType   string          `json:"document_type"`
	Result         json.RawMessage `json:"result"`
	ProcessingTime float64         `json:"processing_time"`
	QualityScore   *float64        `json:"quality_score,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func ToSingleViewResultResponse(res *service.SingleViewResult) *SingleViewResultResponse {
	return &SingleViewResultResponse{
		DocumentID:     res.DocumentID,
		View:           res.View,
		DocumentType:   res.DocumentType,
		Result:         res.Result,
		ProcessingTime: res.ProcessingTimeSeconds,
		QualityScore:   res.QualityScore,
		CreatedAt:      res.CreatedAt,
	}
}

type SelectedViewsResponse struct {
	DocumentID     int64                              `json:"document_id,string"`
	RequestedViews []model.ViewName                   `json:"requested_views"`
	Results        map[model.ViewName]json.RawMessage `json:"results"`
}

func ToSelectedViewsResponse(res *service.SelectedViewsResult) *SelectedViewsResponse {
	return &SelectedViewsResponse{
		DocumentID:     res.DocumentID,
		RequestedViews: res.RequestedViews,
		Results:        res.Results,
	}
}

type ViewStatusResponse struct {
	View           model.ViewName       `json:"view"`
	Status         model.DocumentStatus `json:"status"`
	Ready          bool                 `json:"ready"`
	IsPrimary      bool                 `json:"is_primary"`
	ProcessingTime *float64             `json:"processing_time,omitempty"`
	HasContent     *bool                `json:"has_content,omitempty"`
}

type ViewsStatusResponse struct {
	DocumentID   int64                                 `json:"document_id,string"`
	ViewsStatus  map[model.ViewName]ViewStatusResponse `json:"views_status"`
	PrimaryView  model.ViewName                        `json:"primary_view,omitempty"`
	EnabledViews []model.ViewName                      `json:"enabled_views"`
}

func ToViewsStatusResponse(res *service.ViewsStatus) *ViewsStatusResponse {
	statuses := make(map[model.ViewName]ViewStatusResponse, len(res.Views))
	for view, vs := range res.Views {
		statuses[view] = ViewStatusResponse{
			View:           vs.View,
			Status:         vs.Status,
			Ready:          vs.Ready,
			IsPrimary:      vs.IsPrimary,
			ProcessingTime: vs.ProcessingTimeSeconds,
			HasContent:     vs.HasContent,
		}
	}
	return &ViewsStatusResponse{
		DocumentID:   res.DocumentID,
		ViewsStatus:  statuses,
		PrimaryView:  res.PrimaryView,
		EnabledViews: res.EnabledViews,
	}
}

type SwitchViewResponse struct {
	DocumentID              int64           `json:"document_id,string"`
	View                    model.ViewName  `json:"view"`
	Result                  json.RawMessage `json:"result"`
	FromCache               bool            `json:"from_cache"`
	UsedIntermediateResults bool            `json:"used_intermediate_results"`
	ProcessingTime          float64         `json:"processing_time"`
}

func ToSwitchViewResponse(sw *service.ViewSwitch) *SwitchViewResponse {
	return &SwitchViewResponse{
		DocumentID:              sw.DocumentID,
		View:                    sw.View,
		Result:                  sw.Result,
		FromCache:               sw.FromCache,
		UsedIntermediateResults: sw.UsedIntermediateResults,
		ProcessingTime:          sw.ProcessingTimeSeconds,
	}
}

type RecommendViewsResponse struct {
	PrimaryView     model.ViewName             `json:"primary_view"`
	EnabledViews    []model.ViewName           `json:"enabled_views"`
	DetectionScores map[model.ViewName]float64 `json:"detection_scores"`
	CacheKey        string                     `json:"cache_key"`
	TypeMapping     map[model.ViewName]string  `json:"type_mapping"`
	Method          model.DetectionMethod      `json:"method"`
}

func ToRecommendViewsResponse(rec *service.Recommendation) *RecommendViewsResponse {
	return &RecommendViewsResponse{
		PrimaryView:     rec.PrimaryView,
		EnabledViews:    rec.EnabledViews,
		DetectionScores: rec.DetectionScores,
		CacheKey:        rec.CacheKey,
		TypeMapping:     rec.TypeMapping,
		Method:          rec.Method,
	}
}

type HistoryResponse struct {
	Documents  []DocumentResponse `json:"documents"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

func ToHistoryResponse(page *service.HistoryPage) *HistoryResponse {
	docs := make([]DocumentResponse, 0, len(page.Documents))
	for i := range page.Documents {
		docs = append(docs, *ToDocumentResponse(&page.Documents[i]))
	}
	return &HistoryResponse{
		Documents:  docs,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
}

type DeleteDocumentResponse struct {
	DocumentID int64 `json:"document_id,string"`
	Deleted    bool  `json:"deleted"`
}
