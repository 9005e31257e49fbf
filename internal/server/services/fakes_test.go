package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/models"
	filesrepo "github.com/avolkov/filevault/internal/server/repositories/files"
	permissionsrepo "github.com/avolkov/filevault/internal/server/repositories/permissions"
	"github.com/avolkov/filevault/internal/server/repositories/repomanager"
	sharelinksrepo "github.com/avolkov/filevault/internal/server/repositories/sharelinks"
	totpdevicesrepo "github.com/avolkov/filevault/internal/server/repositories/totpdevices"
	usersrepo "github.com/avolkov/filevault/internal/server/repositories/users"
)

// --- shared test fixtures ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	byEmailOut *models.User
	byEmailErr error

	byIDOut *models.User
	byIDErr error

	listOut []*models.User
	listErr error

	updateRoleErr error
	deleteErr     error

	deletedID string
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *u
	out.ID = "new-user"
	return &out, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.byEmailErr != nil {
		return nil, f.byEmailErr
	}
	return f.byEmailOut, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byIDOut, nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	return f.listOut, f.listErr
}

func (f *fakeUsersRepo) UpdateRole(ctx context.Context, id string, role string) error {
	return f.updateRoleErr
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id string) error {
	f.deletedID = id
	return f.deleteErr
}

type fakeTOTPRepo struct {
	getOut *models.TOTPDevice
	getErr error

	createErr      error
	createdSecret  string
	setVerifiedErr error
	verifiedUserID string
	deleteErr      error
}

func (f *fakeTOTPRepo) Get(ctx context.Context, userID string) (*models.TOTPDevice, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeTOTPRepo) Create(ctx context.Context, userID string, secret string) error {
	f.createdSecret = secret
	return f.createErr
}

func (f *fakeTOTPRepo) SetVerified(ctx context.Context, userID string) error {
	f.verifiedUserID = userID
	return f.setVerifiedErr
}

func (f *fakeTOTPRepo) Delete(ctx context.Context, userID string) error {
	return f.deleteErr
}

type fakeFilesRepo struct {
	createOut *models.File
	createErr error

	getOut *models.File
	getErr error

	listOut []*models.File
	listErr error

	deleteErr error
	deletedID string
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *file
	out.ID = "new-file"
	return &out, nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeFilesRepo) ListAccessible(ctx context.Context, userID string) ([]*models.File, error) {
	return f.listOut, f.listErr
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id string) error {
	f.deletedID = id
	return f.deleteErr
}

type fakePermissionsRepo struct {
	created   []*models.Permission
	createErr error

	listOut []*models.Permission
	listErr error

	hasGrantOut bool
	hasGrantErr error

	deleteByFileErr    error
	deleteByFileCalled bool
	deleteByUserErr    error
}

func (f *fakePermissionsRepo) Create(ctx context.Context, p *models.Permission) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, p)
	return nil
}

func (f *fakePermissionsRepo) ListByFile(ctx context.Context, fileID string) ([]*models.Permission, error) {
	return f.listOut, f.listErr
}

func (f *fakePermissionsRepo) HasGrant(ctx context.Context, fileID string, userID string) (bool, error) {
	return f.hasGrantOut, f.hasGrantErr
}

func (f *fakePermissionsRepo) DeleteByFile(ctx context.Context, fileID string) error {
	f.deleteByFileCalled = true
	return f.deleteByFileErr
}

func (f *fakePermissionsRepo) DeleteByUser(ctx context.Context, userID string) error {
	return f.deleteByUserErr
}

type fakeShareLinksRepo struct {
	createIn  *models.ShareLink
	createErr error

	findOut *models.ShareLink
	findErr error

	consumeOut *models.ShareLink
	consumeErr error

	deleteByFileErr error
}

func (f *fakeShareLinksRepo) Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createIn = link
	out := *link
	out.ID = "new-link"
	return &out, nil
}

func (f *fakeShareLinksRepo) FindByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeShareLinksRepo) ConsumeDownload(ctx context.Context, token string) (*models.ShareLink, error) {
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	return f.consumeOut, nil
}

func (f *fakeShareLinksRepo) DeleteByFile(ctx context.Context, fileID string) error {
	return f.deleteByFileErr
}

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

var _ repomanager.RepositoryManager = (*fakeRepoManager)(nil)

type fakeBlobStore struct {
	data map[string][]byte

	writeErr  error
	readErr   error
	deleteErr error

	deletedKey string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{data: map[string][]byte{}}
}

func (f *fakeBlobStore) Write(ctx context.Context, key string, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.data[key] = data
	return nil
}

func (f *fakeBlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.data[key], nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.deletedKey = key
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.data, key)
	return nil
}
