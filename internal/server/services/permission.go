package services

import (
	"context"
	"database/sql"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/avolkov/filevault/internal/server/repositories/repomanager"
)

// GrantAssignment names one user receiving access to a file.
type GrantAssignment struct {
	UserID     string
	AccessType string
}

// PermissionService manages per-file access grants. Grants are declarative:
// each Grant call replaces the file's full grant set rather than appending,
// so revocation is just a call that omits the user.
type PermissionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewPermissionService(db *sql.DB, m repomanager.RepositoryManager) *PermissionService {
	return &PermissionService{db: db, repomanager: m}
}

// Grant atomically replaces the grant set of a file. Only the owner or an
// admin may change grants. An assignment with an empty access type defaults
// to view.
func (s *PermissionService) Grant(ctx context.Context, caller *models.User, fileID string, assignments []GrantAssignment) error {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if file.UserID != caller.ID && caller.Role != models.RoleAdmin {
		return common.ErrorUnauthorized
	}
	for _, a := range assignments {
		if a.UserID == "" {
			return common.ErrorMalformed
		}
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Permissions(tx)
		if err := repo.DeleteByFile(ctx, fileID); err != nil {
			return err
		}
		for _, a := range assignments {
			accessType := a.AccessType
			if accessType == "" {
				accessType = models.AccessTypeView
			}
			p := &models.Permission{
				FileID:     fileID,
				OwnerID:    file.UserID,
				AssignedID: a.UserID,
				AccessType: accessType,
			}
			if err := repo.Create(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListGrants returns the current grant set of a file.
func (s *PermissionService) ListGrants(ctx context.Context, fileID string) ([]*models.Permission, error) {
	return s.repomanager.Permissions(s.db).ListByFile(ctx, fileID)
}

// RevokeAll clears every grant on a file.
func (s *PermissionService) RevokeAll(ctx context.Context, caller *models.User, fileID string) error {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if file.UserID != caller.ID && caller.Role != models.RoleAdmin {
		return common.ErrorUnauthorized
	}
	return s.repomanager.Permissions(s.db).DeleteByFile(ctx, fileID)
}
