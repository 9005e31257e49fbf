package sharelinks

import (
	"context"

	"github.com/avolkov/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error)
	FindByToken(ctx context.Context, token string) (*models.ShareLink, error)
	ConsumeDownload(ctx context.Context, token string) (*models.ShareLink, error)
	DeleteByFile(ctx context.Context, fileID string) error
}
