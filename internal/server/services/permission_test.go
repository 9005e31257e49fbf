package services

import (
	"context"
	"errors"
	"testing"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/server/models"
)

func TestGrant_ReplacesGrantSet(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	file := &models.File{ID: "f1", UserID: "owner"}
	pr := &fakePermissionsRepo{}
	s := NewPermissionService(db, &fakeRepoManager{f: &fakeFilesRepo{getOut: file}, p: pr})

	assignments := []GrantAssignment{
		{UserID: "u2", AccessType: models.AccessTypeView},
		{UserID: "u3"}, // empty access type defaults to view
	}
	err := s.Grant(context.Background(), &models.User{ID: "owner", Role: models.RoleUser}, "f1", assignments)
	if err != nil {
		t.Fatalf("Grant error: %v", err)
	}
	if !pr.deleteByFileCalled {
		t.Fatalf("previous grants not cleared")
	}
	if len(pr.created) != 2 {
		t.Fatalf("want 2 grants, got %d", len(pr.created))
	}
	for _, p := range pr.created {
		if p.FileID != "f1" || p.OwnerID != "owner" || p.AccessType != models.AccessTypeView {
			t.Fatalf("bad grant: %+v", p)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestGrant_EmptySetRevokesAll(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	file := &models.File{ID: "f1", UserID: "owner"}
	pr := &fakePermissionsRepo{}
	s := NewPermissionService(db, &fakeRepoManager{f: &fakeFilesRepo{getOut: file}, p: pr})

	if err := s.Grant(context.Background(), &models.User{ID: "owner"}, "f1", nil); err != nil {
		t.Fatalf("Grant error: %v", err)
	}
	if !pr.deleteByFileCalled || len(pr.created) != 0 {
		t.Fatalf("empty set should only clear: cleared=%v created=%d", pr.deleteByFileCalled, len(pr.created))
	}
}

func TestGrant_NonOwnerRejected(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	file := &models.File{ID: "f1", UserID: "owner"}
	pr := &fakePermissionsRepo{}
	s := NewPermissionService(db, &fakeRepoManager{f: &fakeFilesRepo{getOut: file}, p: pr})

	err := s.Grant(context.Background(), &models.User{ID: "other", Role: models.RoleUser}, "f1", []GrantAssignment{{UserID: "u2"}})
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want ErrorUnauthorized, got %v", err)
	}
	if pr.deleteByFileCalled {
		t.Fatalf("grants touched by non-owner")
	}

	// admins may manage grants on any file
	db2, mock2 := newSQLMockDB(t)
	defer db2.Close()
	mock2.ExpectBegin()
	mock2.ExpectCommit()
	s2 := NewPermissionService(db2, &fakeRepoManager{f: &fakeFilesRepo{getOut: file}, p: pr})
	if err := s2.Grant(context.Background(), &models.User{ID: "root", Role: models.RoleAdmin}, "f1", nil); err != nil {
		t.Fatalf("admin grant: %v", err)
	}
}

func TestGrant_Validation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	file := &models.File{ID: "f1", UserID: "owner"}
	s := NewPermissionService(db, &fakeRepoManager{f: &fakeFilesRepo{getOut: file}, p: &fakePermissionsRepo{}})

	err := s.Grant(context.Background(), &models.User{ID: "owner"}, "f1", []GrantAssignment{{UserID: ""}})
	if !errors.Is(err, common.ErrorMalformed) {
		t.Fatalf("want ErrorMalformed, got %v", err)
	}

	sNF := NewPermissionService(db, &fakeRepoManager{f: &fakeFilesRepo{getErr: common.ErrorNotFound}})
	err = sNF.Grant(context.Background(), &models.User{ID: "owner"}, "nope", nil)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("missing file: want ErrorNotFound, got %v", err)
	}
}

func TestGrant_RollsBackOnCreateError(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	file := &models.File{ID: "f1", UserID: "owner"}
	pr := &fakePermissionsRepo{createErr: errBoom{}}
	s := NewPermissionService(db, &fakeRepoManager{f: &fakeFilesRepo{getOut: file}, p: pr})

	err := s.Grant(context.Background(), &models.User{ID: "owner"}, "f1", []GrantAssignment{{UserID: "u2"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestListGrants(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	want := []*models.Permission{{ID: "p1", FileID: "f1", AssignedID: "u2"}}
	s := NewPermissionService(db, &fakeRepoManager{p: &fakePermissionsRepo{listOut: want}})

	got, err := s.ListGrants(context.Background(), "f1")
	if err != nil || len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("ListGrants: got %v, err %v", got, err)
	}
}

func TestRevokeAll(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	file := &models.File{ID: "f1", UserID: "owner"}
	pr := &fakePermissionsRepo{}
	s := NewPermissionService(db, &fakeRepoManager{f: &fakeFilesRepo{getOut: file}, p: pr})

	if err := s.RevokeAll(context.Background(), &models.User{ID: "other", Role: models.RoleUser}, "f1"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("non-owner revoke: want ErrorUnauthorized, got %v", err)
	}
	if err := s.RevokeAll(context.Background(), &models.User{ID: "owner"}, "f1"); err != nil {
		t.Fatalf("owner revoke: %v", err)
	}
	if !pr.deleteByFileCalled {
		t.Fatalf("grants not cleared")
	}
}
