// Package files provides a PostgreSQL-backed repository for file records.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, user_id, original_filename, stored_filename, file_size, file_type,
		encryption_iv, encryption_key, auth_tag, uploaded_at`

// Create inserts a new file record and returns it with the generated id.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (user_id, original_filename, stored_filename, file_size, file_type,
			encryption_iv, encryption_key, auth_tag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, uploaded_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.UserID, file.OriginalFilename, file.StoredFilename, file.FileSize, file.FileType,
		file.EncryptionIV, file.EncryptionKey, file.AuthTag).Scan(&file.ID, &file.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// GetByID returns the record for id, or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE id = $1
	`
	file := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&file.ID, &file.UserID, &file.OriginalFilename, &file.StoredFilename, &file.FileSize,
		&file.FileType, &file.EncryptionIV, &file.EncryptionKey, &file.AuthTag, &file.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// ListAccessible returns files owned by userID plus files a permission grant
// assigns to userID, de-duplicated, newest first.
func (r *PostgresRepository) ListAccessible(ctx context.Context, userID string) ([]*models.File, error) {
	query := `
		SELECT DISTINCT ` + fileColumns + `
		FROM files
		WHERE user_id = $1
		   OR id IN (SELECT file_id FROM permissions WHERE assigned_id = $1)
		ORDER BY uploaded_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		file := &models.File{}
		if err := rows.Scan(
			&file.ID, &file.UserID, &file.OriginalFilename, &file.StoredFilename, &file.FileSize,
			&file.FileType, &file.EncryptionIV, &file.EncryptionKey, &file.AuthTag, &file.UploadedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Delete removes a file record by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM files
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
