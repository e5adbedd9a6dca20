package store

import (
	"context"
	"encoding/json"
	"errors"

	"basegraph.app/insight/core/db"
	"basegraph.app/insight/internal/model"
	"github.com/jackc/pgx/v5"
)

type intermediateStore struct {
	dbtx db.DBTX
}

func newIntermediateStore(dbtx db.DBTX) IntermediateStore {
	return &intermediateStore{dbtx: dbtx}
}

func (s *intermediateStore) GetByDocument(ctx context.Context, documentID int64) (*model.IntermediateResult, error) {
	var (
		ir           model.IntermediateResult
		segmentsJSON []byte
	)
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, document_id, raw_text, preprocessed_text, segments, metadata, created_at, updated_at
		 FROM intermediate_results WHERE document_id = $1`, documentID,
	).Scan(
		&ir.ID,
		&ir.DocumentID,
		&ir.RawText,
		&ir.PreprocessedText,
		&segmentsJSON,
		&ir.Metadata,
		&ir.CreatedAt,
		&ir.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(segmentsJSON) > 0 {
		if err := json.Unmarshal(segmentsJSON, &ir.Segments); err != nil {
			return nil, err
		}
	}
	return &ir, nil
}

// Upsert keys on document_id so a retried extraction replaces the
// previous artifacts in place.
func (s *intermediateStore) Upsert(ctx context.Context, ir *model.IntermediateResult) error {
	segmentsJSON, err := json.Marshal(ir.Segments)
	if err != nil {
		return err
	}
	metadata := ir.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	return s.dbtx.QueryRow(ctx,
		`INSERT INTO intermediate_results (id, document_id, raw_text, preprocessed_text, segments, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (document_id) DO UPDATE SET
		   raw_text = EXCLUDED.raw_text,
		   preprocessed_text = EXCLUDED.preprocessed_text,
		   segments = EXCLUDED.segments,
		   metadata = EXCLUDED.metadata,
		   updated_at = now()
		 RETURNING id, created_at, updated_at`,
		ir.ID, ir.DocumentID, ir.RawText, ir.PreprocessedText, segmentsJSON, metadata,
	).Scan(&ir.ID, &ir.CreatedAt, &ir.UpdatedAt)
}

func (s *intermediateStore) DeleteByDocument(ctx context.Context, documentID int64) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM intermediate_results WHERE document_id = $1`, documentID)
	return err
}
