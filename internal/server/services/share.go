package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/cryptox"
	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/avolkov/filevault/internal/server/repositories/repomanager"
	"github.com/avolkov/filevault/internal/server/storage"
)

const (
	defaultShareTTL          = 60 * time.Second
	defaultShareMaxDownloads = 1
)

// ShareService creates and redeems time- and quota-boxed share links.
// Redemption is the one place the server decrypts: a share link hands the
// recipient plaintext, so quota accounting and decryption run inside a
// single transaction and a failed decrypt never burns a download.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       storage.BlobStore
}

func NewShareService(db *sql.DB, m repomanager.RepositoryManager, blobs storage.BlobStore) *ShareService {
	return &ShareService{db: db, repomanager: m, blobs: blobs}
}

// Create mints a share link for a file the caller owns or has a grant on.
// Non-positive ttl and maxDownloads fall back to 60 seconds and a single
// download.
func (s *ShareService) Create(ctx context.Context, caller *models.User, fileID string, ttl time.Duration, maxDownloads int, allowView, allowDownload bool) (*models.ShareLink, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != caller.ID && caller.Role != models.RoleAdmin {
		granted, err := s.repomanager.Permissions(s.db).HasGrant(ctx, fileID, caller.ID)
		if err != nil {
			return nil, err
		}
		if !granted {
			return nil, common.ErrorUnauthorized
		}
	}

	if ttl <= 0 {
		ttl = defaultShareTTL
	}
	if maxDownloads <= 0 {
		maxDownloads = defaultShareMaxDownloads
	}

	token, err := generateShareToken()
	if err != nil {
		return nil, err
	}

	link := &models.ShareLink{
		FileID:        fileID,
		Token:         token,
		ExpiresAt:     time.Now().UTC().Add(ttl),
		MaxDownloads:  maxDownloads,
		AllowView:     allowView,
		AllowDownload: allowDownload,
	}
	return s.repomanager.ShareLinks(s.db).Create(ctx, link)
}

// Redeem consumes one download from the link and returns the decrypted
// payload. The quota increment is a conditional UPDATE, so two concurrent
// redemptions of a one-download link cannot both succeed; everything after
// it runs in the same transaction, so a missing blob or failed decrypt
// rolls the increment back.
func (s *ShareService) Redeem(ctx context.Context, token string) (*models.File, []byte, error) {
	var (
		file      *models.File
		plaintext []byte
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		link, err := s.repomanager.ShareLinks(tx).ConsumeDownload(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return s.classifyRedeemFailure(ctx, tx, token)
			}
			return err
		}
		if !link.AllowDownload {
			return common.ErrorUnauthorized
		}

		f, err := s.repomanager.Files(tx).GetByID(ctx, link.FileID)
		if err != nil {
			return err
		}

		iv, err := cryptox.ParseKeyMaterial(f.EncryptionIV)
		if err != nil {
			return err
		}
		key, err := cryptox.ParseKeyMaterial(f.EncryptionKey)
		if err != nil {
			return err
		}
		tag, err := cryptox.ParseKeyMaterial(f.AuthTag)
		if err != nil {
			return err
		}

		ciphertext, err := s.blobs.Read(ctx, f.StoredFilename)
		if err != nil {
			return err
		}

		pt, err := cryptox.Decrypt(ciphertext, iv, key, tag)
		if err != nil {
			return err
		}

		file, plaintext = f, pt
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return file, plaintext, nil
}

// Peek returns a link's file metadata without consuming a download.
func (s *ShareService) Peek(ctx context.Context, token string) (*models.File, *models.ShareLink, error) {
	link, err := s.repomanager.ShareLinks(s.db).FindByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if !time.Now().Before(link.ExpiresAt) {
		return nil, nil, common.ErrorShareLinkExpired
	}
	if link.CurrentDownloads >= link.MaxDownloads {
		return nil, nil, common.ErrorQuotaExceeded
	}
	if !link.AllowView {
		return nil, nil, common.ErrorUnauthorized
	}

	file, err := s.repomanager.Files(s.db).GetByID(ctx, link.FileID)
	if err != nil {
		return nil, nil, err
	}
	return file, link, nil
}

// classifyRedeemFailure tells an unknown token apart from an expired or
// exhausted one after the conditional UPDATE matched no row. Expiry wins
// when both apply.
func (s *ShareService) classifyRedeemFailure(ctx context.Context, tx dbx.DBTX, token string) error {
	link, err := s.repomanager.ShareLinks(tx).FindByToken(ctx, token)
	if err != nil {
		return err
	}
	if !time.Now().Before(link.ExpiresAt) {
		return common.ErrorShareLinkExpired
	}
	if link.CurrentDownloads >= link.MaxDownloads {
		return common.ErrorQuotaExceeded
	}
	return common.ErrorNotFound
}

// generateShareToken derives a 32-hex-character token from fresh random
// input. The column's unique constraint backstops the negligible collision
// chance.
func generateShareToken() (string, error) {
	random, err := common.MakeRandHexString(16)
	if err != nil {
		return "", fmt.Errorf("generating share token: %w", err)
	}
	sum := sha256.Sum256([]byte(uuid.NewString() + random))
	return hex.EncodeToString(sum[:])[:32], nil
}
