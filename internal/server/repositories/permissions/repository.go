package permissions

import (
	"context"

	"github.com/avolkov/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Permission) error
	ListByFile(ctx context.Context, fileID string) ([]*models.Permission, error)
	HasGrant(ctx context.Context, fileID string, userID string) (bool, error)
	DeleteByFile(ctx context.Context, fileID string) error
	DeleteByUser(ctx context.Context, userID string) error
}
