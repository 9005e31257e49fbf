package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/cryptox"
	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/avolkov/filevault/internal/server/repositories/repomanager"
	"github.com/avolkov/filevault/internal/server/storage"
)

// FileService stores ciphertext blobs and their metadata. Payloads are
// encrypted client-side; the server validates the accompanying key material
// and never decrypts during upload, listing or download.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       storage.BlobStore
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, blobs storage.BlobStore) *FileService {
	return &FileService{db: db, repomanager: m, blobs: blobs}
}

// Upload stores an already-encrypted payload under a fresh storage key and
// records its metadata. Guests cannot upload. The IV, key and tag strings
// must parse as serialized byte arrays; they are stored verbatim so the
// download path can return them to the client unchanged.
func (s *FileService) Upload(ctx context.Context, user *models.User, originalFilename string, content []byte, iv, key, tag string) (*models.File, error) {
	if user.Role == models.RoleGuest {
		return nil, common.ErrorUnauthorized
	}
	if originalFilename == "" || len(content) == 0 {
		return nil, common.ErrorMalformed
	}
	for _, material := range []string{iv, key, tag} {
		if _, err := cryptox.ParseKeyMaterial(material); err != nil {
			return nil, common.ErrorMalformed
		}
	}

	storedName := uuid.NewString() + "_" + originalFilename

	if err := s.blobs.Write(ctx, storedName, content); err != nil {
		return nil, fmt.Errorf("storing blob: %w", err)
	}

	file := &models.File{
		UserID:           user.ID,
		OriginalFilename: originalFilename,
		StoredFilename:   storedName,
		FileSize:         int64(len(content)),
		FileType:         detectFileType(originalFilename),
		EncryptionIV:     iv,
		EncryptionKey:    key,
		AuthTag:          tag,
	}

	created, err := s.repomanager.Files(s.db).Create(ctx, file)
	if err != nil {
		// Keep the store consistent with the metadata table.
		_ = s.blobs.Delete(ctx, storedName)
		return nil, err
	}
	return created, nil
}

// ListAccessible returns the files userID owns plus every file shared with
// them through a grant, newest first.
func (s *FileService) ListAccessible(ctx context.Context, userID string) ([]*models.File, error) {
	return s.repomanager.Files(s.db).ListAccessible(ctx, userID)
}

// Download returns a file's metadata and ciphertext for the owner, a
// grantee, or an admin. The payload stays encrypted; clients decrypt with
// the key material echoed back alongside it.
func (s *FileService) Download(ctx context.Context, user *models.User, fileID string) (*models.File, []byte, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.authorize(ctx, user, file); err != nil {
		return nil, nil, err
	}

	content, err := s.blobs.Read(ctx, file.StoredFilename)
	if err != nil {
		return nil, nil, err
	}
	return file, content, nil
}

// Delete removes a file's grants, share links and metadata in one
// transaction, then the blob. Only the owner or an admin may delete.
// The removed record is returned so callers can report what was deleted.
func (s *FileService) Delete(ctx context.Context, user *models.User, fileID string) (*models.File, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != user.ID && user.Role != models.RoleAdmin {
		return nil, common.ErrorUnauthorized
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Permissions(tx).DeleteByFile(ctx, fileID); err != nil {
			return err
		}
		if err := s.repomanager.ShareLinks(tx).DeleteByFile(ctx, fileID); err != nil {
			return err
		}
		return s.repomanager.Files(tx).Delete(ctx, fileID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.blobs.Delete(ctx, file.StoredFilename); err != nil {
		return nil, fmt.Errorf("deleting blob: %w", err)
	}
	return file, nil
}

func (s *FileService) authorize(ctx context.Context, user *models.User, file *models.File) error {
	if file.UserID == user.ID || user.Role == models.RoleAdmin {
		return nil
	}
	granted, err := s.repomanager.Permissions(s.db).HasGrant(ctx, file.ID, user.ID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if !granted {
		return common.ErrorUnauthorized
	}
	return nil
}

var fileTypesByExtension = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":  "text/csv",
	".zip":  "application/zip",
	".json": "application/json",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
}

func detectFileType(filename string) string {
	if t, ok := fileTypesByExtension[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}
	return "application/octet-stream"
}
