package totpdevices

import (
	"context"

	"github.com/avolkov/filevault/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, userID string) (*models.TOTPDevice, error)
	Create(ctx context.Context, userID string, secret string) error
	SetVerified(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
}
