package repomanager

import (
	"context"
	"database/sql"

	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/repositories/files"
	"github.com/avolkov/filevault/internal/server/repositories/permissions"
	"github.com/avolkov/filevault/internal/server/repositories/sharelinks"
	"github.com/avolkov/filevault/internal/server/repositories/totpdevices"
	"github.com/avolkov/filevault/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// services can run the same repository code inside or outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	TOTPDevices(db dbx.DBTX) totpdevices.Repository
	Files(db dbx.DBTX) files.Repository
	Permissions(db dbx.DBTX) permissions.Repository
	ShareLinks(db dbx.DBTX) sharelinks.Repository
}
