// Package services contains server-side business logic. This file implements
// UserService: the credential store (registration, password verification) and
// session token issuance, plus account administration.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/auth"
	"github.com/avolkov/filevault/internal/server/config"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/avolkov/filevault/internal/server/repositories/repomanager"
)

// UserService provides authentication-related operations:
// - Register: create accounts with hashed passwords
// - Login: verify credentials (and the second factor, when enabled) and mint
//   a session token
// - List/UpdateRole/Delete: account administration
type UserService struct {
	db                   *sql.DB
	repomanager          repomanager.RepositoryManager
	jwtSecret            []byte
	sessionTokenValidity time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                   db,
		repomanager:          m,
		jwtSecret:            []byte(cfg.SecretKey),
		sessionTokenValidity: cfg.SessionTokenValidity,
	}
}

// Register creates a new account. Passwords are stored only as bcrypt hashes.
// An empty role defaults to the least-privileged non-guest tier.
func (s *UserService) Register(ctx context.Context, email, name, password, role string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, common.ErrorMalformed
	}
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, common.ErrorMalformed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %v", err)
	}

	user := &models.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorDuplicateEmail) {
			return nil, common.ErrorDuplicateEmail
		}
		return nil, fmt.Errorf("error creating user: %v", err)
	}
	return u, nil
}

// Login verifies the password against the stored bcrypt hash and, when the
// account has a verified TOTP device, the provided code. On success it
// returns the account and a freshly minted session token.
//
// A missing account and a wrong password both yield ErrorInvalidCredentials.
// A verified device with no code yields ErrTwoFactorRequired so the HTTP
// layer can ask the client for one.
func (s *UserService) Login(ctx context.Context, email, password, totpCode string) (*models.User, string, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", common.ErrorInvalidCredentials
		}
		return nil, "", common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", common.ErrorInvalidCredentials
	}

	device, err := s.repomanager.TOTPDevices(s.db).Get(ctx, user.ID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, "", common.ErrorInternal
	}
	if err == nil && device.Verified {
		if totpCode == "" {
			return nil, "", common.ErrTwoFactorRequired
		}
		if !validateTOTPCode(device.Secret, totpCode) {
			return nil, "", common.ErrorInvalidTOTPCode
		}
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.sessionTokenValidity)
	if err != nil {
		return nil, "", common.ErrorInternal
	}
	return user, token, nil
}

// GetByID loads an account by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// List returns all accounts.
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

// UpdateRole changes an account's role.
func (s *UserService) UpdateRole(ctx context.Context, userID, role string) error {
	if !models.ValidRole(role) {
		return common.ErrorMalformed
	}
	return s.repomanager.Users(s.db).UpdateRole(ctx, userID, role)
}

// Delete removes an account together with its TOTP device and every grant
// naming it as owner or assignee, in one transaction. Files it owns are
// left in place.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.TOTPDevices(tx).Delete(ctx, userID); err != nil {
			return err
		}
		if err := s.repomanager.Permissions(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return s.repomanager.Users(tx).Delete(ctx, userID)
	})
}
