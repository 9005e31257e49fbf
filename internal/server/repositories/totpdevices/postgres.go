// Package totpdevices provides a PostgreSQL-backed repository for TOTP
// second-factor devices. The primary key on user_id enforces the
// one-device-per-account invariant at the storage level.
package totpdevices

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

// Get returns the device for userID, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.TOTPDevice, error) {
	query := `
		SELECT user_id, secret, is_verified
		FROM totp_devices
		WHERE user_id = $1
	`
	device := &models.TOTPDevice{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&device.UserID, &device.Secret, &device.Verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return device, nil
}

// Create inserts an unverified device for userID.
func (r *PostgresRepository) Create(ctx context.Context, userID string, secret string) error {
	query := `
		INSERT INTO totp_devices (user_id, secret, is_verified)
		VALUES ($1, $2, FALSE)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, secret); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SetVerified marks the device verified. The transition is one-way; no
// query in this repository reverts it.
func (r *PostgresRepository) SetVerified(ctx context.Context, userID string) error {
	query := `
		UPDATE totp_devices SET is_verified = TRUE
		WHERE user_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Delete removes the device for userID, if any.
func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	query := `
		DELETE FROM totp_devices
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
