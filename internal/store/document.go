package store

import (
	"context"
	"errors"
	"fmt"

	"basegraph.app/insight/core/db"
	"basegraph.app/insight/internal/model"
	"github.com/jackc/pgx/v5"
)

type documentStore struct {
	dbtx db.DBTX
}

func newDocumentStore(dbtx db.DBTX) DocumentStore {
	return &documentStore{dbtx: dbtx}
}

const documentColumns = `id, filename, blob_path, file_size, file_type, status, upload_time, created_at, updated_at`

func (s *documentStore) GetByID(ctx context.Context, id int64) (*model.Document, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (s *documentStore) Create(ctx context.Context, doc *model.Document) error {
	return s.dbtx.QueryRow(ctx,
		`INSERT INTO documents (id, filename, blob_path, file_size, file_type, status, upload_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		doc.ID, doc.Filename, doc.BlobPath, doc.FileSize, doc.FileType, doc.Status, doc.UploadTime,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
}

func (s *documentStore) SetStatus(ctx context.Context, id int64, status model.DocumentStatus) error {
	tag, err := s.dbtx.Exec(ctx,
		`UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *documentStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.dbtx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one history page (newest upload first) plus the total
// row count the filter matches.
func (s *documentStore) List(ctx context.Context, filter HistoryFilter) ([]model.Document, int64, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.FileType != nil {
		args = append(args, *filter.FileType)
		where += fmt.Sprintf(` AND file_type = $%d`, len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(` AND filename ILIKE $%d`, len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(` AND upload_time >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(` AND upload_time <= $%d`, len(args))
	}

	var total int64
	if err := s.dbtx.QueryRow(ctx, `SELECT count(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	args = append(args, pageSize, (page-1)*pageSize)
	query := `SELECT ` + documentColumns + ` FROM documents` + where +
		fmt.Sprintf(` ORDER BY upload_time DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.dbtx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var doc model.Document
	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.BlobPath,
		&doc.FileSize,
		&doc.FileType,
		&doc.Status,
		&doc.UploadTime,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}
