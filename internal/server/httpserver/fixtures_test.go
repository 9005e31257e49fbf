package httpserver

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/logging"
	"github.com/avolkov/filevault/internal/server/auth"
	"github.com/avolkov/filevault/internal/server/config"
	"github.com/avolkov/filevault/internal/server/models"
	filesrepo "github.com/avolkov/filevault/internal/server/repositories/files"
	permissionsrepo "github.com/avolkov/filevault/internal/server/repositories/permissions"
	sharelinksrepo "github.com/avolkov/filevault/internal/server/repositories/sharelinks"
	totpdevicesrepo "github.com/avolkov/filevault/internal/server/repositories/totpdevices"
	usersrepo "github.com/avolkov/filevault/internal/server/repositories/users"
	"github.com/avolkov/filevault/internal/server/services"
)

// In-memory repository fakes backing real services, so handler tests exercise
// the full request path without a database.

var commonNotFound = common.ErrorNotFound

type fakeUsersRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	out := *u
	out.ID = "new-user"
	return &out, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, commonNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, commonNotFound
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsersRepo) UpdateRole(ctx context.Context, id string, role string) error { return nil }
func (f *fakeUsersRepo) Delete(ctx context.Context, id string) error                  { return nil }

type fakeTOTPRepo struct {
	devices map[string]*models.TOTPDevice
}

func (f *fakeTOTPRepo) Get(ctx context.Context, userID string) (*models.TOTPDevice, error) {
	if d, ok := f.devices[userID]; ok {
		return d, nil
	}
	return nil, commonNotFound
}

func (f *fakeTOTPRepo) Create(ctx context.Context, userID string, secret string) error {
	f.devices[userID] = &models.TOTPDevice{UserID: userID, Secret: secret}
	return nil
}

func (f *fakeTOTPRepo) SetVerified(ctx context.Context, userID string) error {
	f.devices[userID].Verified = true
	return nil
}

func (f *fakeTOTPRepo) Delete(ctx context.Context, userID string) error { return nil }

type fakeFilesRepo struct {
	files map[string]*models.File
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	out := *file
	out.ID = "new-file"
	out.UploadedAt = time.Now().UTC()
	f.files[out.ID] = &out
	return &out, nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	if file, ok := f.files[id]; ok {
		return file, nil
	}
	return nil, commonNotFound
}

func (f *fakeFilesRepo) ListAccessible(ctx context.Context, userID string) ([]*models.File, error) {
	out := []*models.File{}
	for _, file := range f.files {
		if file.UserID == userID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id string) error {
	delete(f.files, id)
	return nil
}

type fakePermissionsRepo struct {
	grants []*models.Permission
}

func (f *fakePermissionsRepo) Create(ctx context.Context, p *models.Permission) error {
	f.grants = append(f.grants, p)
	return nil
}

func (f *fakePermissionsRepo) ListByFile(ctx context.Context, fileID string) ([]*models.Permission, error) {
	out := []*models.Permission{}
	for _, g := range f.grants {
		if g.FileID == fileID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakePermissionsRepo) HasGrant(ctx context.Context, fileID string, userID string) (bool, error) {
	for _, g := range f.grants {
		if g.FileID == fileID && g.AssignedID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePermissionsRepo) DeleteByFile(ctx context.Context, fileID string) error {
	kept := f.grants[:0]
	for _, g := range f.grants {
		if g.FileID != fileID {
			kept = append(kept, g)
		}
	}
	f.grants = kept
	return nil
}

func (f *fakePermissionsRepo) DeleteByUser(ctx context.Context, userID string) error { return nil }

type fakeShareLinksRepo struct {
	byToken map[string]*models.ShareLink
}

func (f *fakeShareLinksRepo) Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error) {
	out := *link
	out.ID = "new-link"
	out.CreatedAt = time.Now().UTC()
	f.byToken[out.Token] = &out
	return &out, nil
}

func (f *fakeShareLinksRepo) FindByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	if l, ok := f.byToken[token]; ok {
		return l, nil
	}
	return nil, commonNotFound
}

func (f *fakeShareLinksRepo) ConsumeDownload(ctx context.Context, token string) (*models.ShareLink, error) {
	l, ok := f.byToken[token]
	if !ok || !time.Now().Before(l.ExpiresAt) || l.CurrentDownloads >= l.MaxDownloads {
		return nil, commonNotFound
	}
	l.CurrentDownloads++
	return l, nil
}

func (f *fakeShareLinksRepo) DeleteByFile(ctx context.Context, fileID string) error { return nil }

type fakeRepoManager struct {
	u  *fakeUsersRepo
	d  *fakeTOTPRepo
	f  *fakeFilesRepo
	p  *fakePermissionsRepo
	sl *fakeShareLinksRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error       { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository             { return m.u }
func (m *fakeRepoManager) TOTPDevices(db dbx.DBTX) totpdevicesrepo.Repository { return m.d }
func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository             { return m.f }
func (m *fakeRepoManager) Permissions(db dbx.DBTX) permissionsrepo.Repository { return m.p }
func (m *fakeRepoManager) ShareLinks(db dbx.DBTX) sharelinksrepo.Repository   { return m.sl }

type fakeBlobStore struct {
	data map[string][]byte
}

func (f *fakeBlobStore) Write(ctx context.Context, key string, data []byte) error {
	f.data[key] = data
	return nil
}

func (f *fakeBlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	if d, ok := f.data[key]; ok {
		return d, nil
	}
	return nil, commonNotFound
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	delete(f.data, key)
	return nil
}

// fixture wires real services over the fakes and exposes the router for
// httptest requests.
type fixture struct {
	srv   *Server
	mock  sqlmock.Sqlmock
	db    *sql.DB
	rm    *fakeRepoManager
	blobs *fakeBlobStore
	cfg   *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		EndpointAddr:         ":0",
		PublicBaseURL:        "http://localhost:8080/api",
		SecretKey:            "k",
		SessionTokenValidity: time.Hour,
		TOTPIssuer:           "filevault",
	}

	rm := &fakeRepoManager{
		u:  &fakeUsersRepo{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}},
		d:  &fakeTOTPRepo{devices: map[string]*models.TOTPDevice{}},
		f:  &fakeFilesRepo{files: map[string]*models.File{}},
		p:  &fakePermissionsRepo{},
		sl: &fakeShareLinksRepo{byToken: map[string]*models.ShareLink{}},
	}
	blobs := &fakeBlobStore{data: map[string][]byte{}}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))

	srv := NewServer(cfg, logger,
		services.NewUserService(db, rm, cfg),
		services.NewTOTPService(db, rm, cfg),
		services.NewFileService(db, rm, blobs),
		services.NewPermissionService(db, rm),
		services.NewShareService(db, rm, blobs),
	)

	return &fixture{srv: srv, mock: mock, db: db, rm: rm, blobs: blobs, cfg: cfg}
}

// addUser registers an account directly in the fakes and returns a valid
// session cookie value for it.
func (fx *fixture) addUser(t *testing.T, u *models.User) string {
	t.Helper()
	fx.rm.u.byID[u.ID] = u
	fx.rm.u.byEmail[u.Email] = u

	token, err := auth.GenerateToken(u.ID, []byte(fx.cfg.SecretKey), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}
