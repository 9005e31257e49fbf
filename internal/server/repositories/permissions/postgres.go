// Package permissions provides a PostgreSQL-backed repository for per-file
// access grants. The grant set for a file is replaced wholesale by the
// service layer: DeleteByFile followed by Create calls inside one
// transaction.
package permissions

import (
	"context"
	"fmt"

	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts one grant row.
func (r *PostgresRepository) Create(ctx context.Context, p *models.Permission) error {
	query := `
		INSERT INTO permissions (file_id, owner_id, assigned_id, access_type)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, p.FileID, p.OwnerID, p.AssignedID, p.AccessType); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByFile returns all grants for fileID.
func (r *PostgresRepository) ListByFile(ctx context.Context, fileID string) ([]*models.Permission, error) {
	query := `
		SELECT id, file_id, owner_id, assigned_id, access_type
		FROM permissions
		WHERE file_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Permission
	for rows.Next() {
		p := &models.Permission{}
		if err := rows.Scan(&p.ID, &p.FileID, &p.OwnerID, &p.AssignedID, &p.AccessType); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// HasGrant reports whether a grant assigns fileID to userID.
func (r *PostgresRepository) HasGrant(ctx context.Context, fileID string, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM permissions
			WHERE file_id = $1 AND assigned_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, fileID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// DeleteByFile removes every grant for fileID.
func (r *PostgresRepository) DeleteByFile(ctx context.Context, fileID string) error {
	query := `
		DELETE FROM permissions
		WHERE file_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, fileID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteByUser removes every grant naming userID as owner or assignee.
// Used when an account is deleted.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	query := `
		DELETE FROM permissions
		WHERE owner_id = $1 OR assigned_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
