package store

import (
	"context"
	"encoding/json"
	"errors"

	"basegraph.app/insight/core/db"
	"basegraph.app/insight/internal/model"
	"github.com/jackc/pgx/v5"
)

type profileStore struct {
	dbtx db.DBTX
}

func newProfileStore(dbtx db.DBTX) ProfileStore {
	return &profileStore{dbtx: dbtx}
}

func (s *profileStore) GetByDocument(ctx context.Context, documentID int64) (*model.DocumentViewProfile, error) {
	var (
		profile     model.DocumentViewProfile
		enabledJSON []byte
		scoresJSON  []byte
	)
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, document_id, primary_view, enabled_views, detection_scores, detection_method, confidence, created_at, updated_at
		 FROM document_view_profiles WHERE document_id = $1`, documentID,
	).Scan(
		&profile.ID,
		&profile.DocumentID,
		&profile.PrimaryView,
		&enabledJSON,
		&scoresJSON,
		&profile.DetectionMethod,
		&profile.Confidence,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(enabledJSON) > 0 {
		if err := json.Unmarshal(enabledJSON, &profile.EnabledViews); err != nil {
			return nil, err
		}
	}
	if len(scoresJSON) > 0 {
		if err := json.Unmarshal(scoresJSON, &profile.DetectionScores); err != nil {
			return nil, err
		}
	}
	return &profile, nil
}

func (s *profileStore) Upsert(ctx context.Context, profile *model.DocumentViewProfile) error {
	enabledJSON, err := json.Marshal(profile.EnabledViews)
	if err != nil {
		return err
	}
	scoresJSON, err := json.Marshal(profile.DetectionScores)
	if err != nil {
		return err
	}
	return s.dbtx.QueryRow(ctx,
		`INSERT INTO document_view_profiles (id, document_id, primary_view, enabled_views, detection_scores, detection_method, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (document_id) DO UPDATE SET
		   primary_view = EXCLUDED.primary_view,
		   enabled_views = EXCLUDED.enabled_views,
		   detection_scores = EXCLUDED.detection_scores,
		   detection_method = EXCLUDED.detection_method,
		   confidence = EXCLUDED.confidence,
		   updated_at = now()
		 RETURNING id, created_at, updated_at`,
		profile.ID, profile.DocumentID, profile.PrimaryView, enabledJSON, scoresJSON, profile.DetectionMethod, profile.Confidence,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
}

func (s *profileStore) DeleteByDocument(ctx context.Context, documentID int64) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM document_view_profiles WHERE document_id = $1`, documentID)
	return err
}
