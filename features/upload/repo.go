package upload

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// metadata is stored as nullable text: "" in the model maps to NULL.
func metadataToDB(m string) interface{} {
	if m == "" {
		return nil
	}
	return m
}

func (r *PostgresRepo) Save(ctx context.Context, up *Upload) error {
	query := `INSERT INTO uploads (id, name, media_type, storage_path, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		up.ID, up.Name, up.MediaType, up.StoragePath, up.Status, metadataToDB(up.Metadata),
	).Scan(&up.CreatedAt, &up.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Upload, error) {
	up := &Upload{}
	var metadata, ingestError sql.NullString
	query := `SELECT id, name, media_type, storage_path, status, ingest_attempts, ingest_error, metadata, created_at, updated_at
		FROM uploads WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&up.ID, &up.Name, &up.MediaType, &up.StoragePath, &up.Status,
		&up.IngestAttempts, &ingestError, &metadata, &up.CreatedAt, &up.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	up.IngestError = ingestError.String
	up.Metadata = metadata.String
	return up, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Upload, error) {
	query := `SELECT id, name, media_type, storage_path, status, ingest_attempts, ingest_error, metadata, created_at, updated_at
		FROM uploads WHERE deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		var up Upload
		var metadata, ingestError sql.NullString
		if err := rows.Scan(
			&up.ID, &up.Name, &up.MediaType, &up.StoragePath, &up.Status,
			&up.IngestAttempts, &ingestError, &metadata, &up.CreatedAt, &up.UpdatedAt,
		); err != nil {
			return nil, err
		}
		up.IngestError = ingestError.String
		up.Metadata = metadata.String
		uploads = append(uploads, up)
	}
	return uploads, rows.Err()
}

func (r *PostgresRepo) UpdateMetadata(ctx context.Context, id, metadata string) error {
	query := `UPDATE uploads SET metadata = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, metadataToDB(metadata), id)
	return err
}

func (r *PostgresRepo) SetIngestState(ctx context.Context, id, status string, attempts int, errMsg string) error {
	query := `UPDATE uploads SET status = $1, ingest_attempts = $2, ingest_error = $3, updated_at = NOW() WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, status, attempts, errMsg, id)
	return err
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE uploads SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM uploads WHERE deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
