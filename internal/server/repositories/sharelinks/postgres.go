// Package sharelinks provides a PostgreSQL-backed repository for share
// links. Quota enforcement lives here: ConsumeDownload performs the
// check-and-increment as a single conditional UPDATE so that concurrent
// redemptions of the same token can never exceed max_downloads.
package sharelinks

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

const linkColumns = `id, file_id, share_token, created_at, expires_at,
		max_downloads, current_downloads, allow_view, allow_download`

// Create inserts a new share link. The unique constraint on share_token
// backs up the generator's collision avoidance.
func (r *PostgresRepository) Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error) {
	query := `
		INSERT INTO share_links (file_id, share_token, expires_at, max_downloads, allow_view, allow_download)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		link.FileID, link.Token, link.ExpiresAt, link.MaxDownloads,
		link.AllowView, link.AllowDownload).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

// FindByToken returns the link row for token, or common.ErrorNotFound.
func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM share_links
		WHERE share_token = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, token))
}

// ConsumeDownload atomically increments current_downloads for a link that is
// neither expired nor exhausted, returning the post-increment row. A zero-row
// result (missing, expired, or exhausted link) maps to common.ErrorNotFound;
// the caller classifies further with FindByToken.
func (r *PostgresRepository) ConsumeDownload(ctx context.Context, token string) (*models.ShareLink, error) {
	query := `
		UPDATE share_links
		SET current_downloads = current_downloads + 1
		WHERE share_token = $1
		  AND expires_at > now()
		  AND current_downloads < max_downloads
		RETURNING ` + linkColumns + `
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, token))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.ShareLink, error) {
	link := &models.ShareLink{}
	err := row.Scan(&link.ID, &link.FileID, &link.Token, &link.CreatedAt, &link.ExpiresAt,
		&link.MaxDownloads, &link.CurrentDownloads, &link.AllowView, &link.AllowDownload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

// DeleteByFile removes every link for fileID.
func (r *PostgresRepository) DeleteByFile(ctx context.Context, fileID string) error {
	query := `
		DELETE FROM share_links
		WHERE file_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, fileID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
