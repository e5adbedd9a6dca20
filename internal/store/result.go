package store

import (
	"context"
	"errors"

	"basegraph.app/insight/core/db"
	"basegraph.app/insight/internal/model"
	"github.com/jackc/pgx/v5"
)

type resultStore struct {
	dbtx db.DBTX
}

func newResultStore(dbtx db.DBTX) ResultStore {
	return &resultStore{dbtx: dbtx}
}

const resultColumns = `id, document_id, view, result_data, is_primary, processing_time_seconds, created_at, updated_at`

func (s *resultStore) GetByDocumentAndView(ctx context.Context, documentID int64, view model.ViewName) (*model.ProcessingResult, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM processing_results
		 WHERE document_id = $1 AND view = $2`, documentID, view)
	return scanResult(row)
}

func (s *resultStore) ListByDocument(ctx context.Context, documentID int64) ([]model.ProcessingResult, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT `+resultColumns+` FROM processing_results
		 WHERE document_id = $1 ORDER BY is_primary DESC, view ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ProcessingResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Upsert keys on (document_id, view): a view is rewritten atomically,
// never duplicated, regardless of how its job arrived. Writing a
// primary row demotes any other primary of the document in the same
// statement, so at most one is_primary row exists per document.
func (s *resultStore) Upsert(ctx context.Context, result *model.ProcessingResult) error {
	return s.dbtx.QueryRow(ctx,
		`WITH demoted AS (
		   UPDATE processing_results
		   SET is_primary = false, updated_at = now()
		   WHERE document_id = $2 AND view <> $3 AND is_primary AND $5::boolean
		 )
		 INSERT INTO processing_results (id, document_id, view, result_data, is_primary, processing_time_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (document_id, view) DO UPDATE SET
		   result_data = EXCLUDED.result_data,
		   is_primary = EXCLUDED.is_primary,
		   processing_time_seconds = EXCLUDED.processing_time_seconds,
		   updated_at = now()
		 RETURNING id, created_at, updated_at`,
		result.ID, result.DocumentID, result.View, result.ResultData, result.IsPrimary, result.ProcessingTimeSeconds,
	).Scan(&result.ID, &result.CreatedAt, &result.UpdatedAt)
}

func (s *resultStore) DeleteByDocument(ctx context.Context, documentID int64) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM processing_results WHERE document_id = $1`, documentID)
	return err
}

func scanResult(row pgx.Row) (*model.ProcessingResult, error) {
	var result model.ProcessingResult
	err := row.Scan(
		&result.ID,
		&result.DocumentID,
		&result.View,
		&result.ResultData,
		&result.IsPrimary,
		&result.ProcessingTimeSeconds,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}
