package store

import (
	"context"
	"errors"
	"time"

	"basegraph.app/insight/core/db"
	"basegraph.app/insight/internal/model"
	"github.com/jackc/pgx/v5"
)

type metricStore struct {
	dbtx db.DBTX
}

func newMetricStore(dbtx db.DBTX) MetricStore {
	return &metricStore{dbtx: dbtx}
}

func (s *metricStore) Append(ctx context.Context, metric *model.AiCallMetric) error {
	return s.dbtx.QueryRow(ctx,
		`INSERT INTO ai_call_metrics (id, document_id, task_id, call_type, status, response_time_ms, error_type, retry_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		metric.ID, metric.DocumentID, metric.TaskID, metric.CallType, metric.Status,
		metric.ResponseTimeMs, metric.ErrorType, metric.RetryCount,
	).Scan(&metric.CreatedAt)
}

func (s *metricStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.dbtx.Exec(ctx, `DELETE FROM ai_call_metrics WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type qualityStore struct {
	dbtx db.DBTX
}

func newQualityStore(dbtx db.DBTX) QualityStore {
	return &qualityStore{dbtx: dbtx}
}

func (s *qualityStore) Append(ctx context.Context, quality *model.AiResultQuality) error {
	return s.dbtx.QueryRow(ctx,
		`INSERT INTO ai_result_quality (id, document_id, view, field_completeness, confidence_avg, confidence_min, confidence_max, sources_count, sources_completeness, quality_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		quality.ID, quality.DocumentID, quality.View,
		quality.FieldCompleteness, quality.ConfidenceAvg, quality.ConfidenceMin, quality.ConfidenceMax,
		quality.SourcesCount, quality.SourcesCompleteness, quality.QualityScore,
	).Scan(&quality.CreatedAt)
}

func (s *qualityStore) GetLatestByDocumentAndView(ctx context.Context, documentID int64, view model.ViewName) (*model.AiResultQuality, error) {
	var quality model.AiResultQuality
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, document_id, view, field_completeness, confidence_avg, confidence_min, confidence_max, sources_count, sources_completeness, quality_score, created_at
		 FROM ai_result_quality
		 WHERE document_id = $1 AND view = $2
		 ORDER BY created_at DESC, id DESC LIMIT 1`, documentID, view,
	).Scan(
		&quality.ID,
		&quality.DocumentID,
		&quality.View,
		&quality.FieldCompleteness,
		&quality.ConfidenceAvg,
		&quality.ConfidenceMin,
		&quality.ConfidenceMax,
		&quality.SourcesCount,
		&quality.SourcesCompleteness,
		&quality.QualityScore,
		&quality.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &quality, nil
}

func (s *qualityStore) DeleteByDocument(ctx context.Context, documentID int64) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM ai_result_quality WHERE document_id = $1`, documentID)
	return err
}

func (s *qualityStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.dbtx.Exec(ctx, `DELETE FROM ai_result_quality WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
