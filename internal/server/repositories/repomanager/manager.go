package repomanager

import (
	"context"
	"database/sql"

	"github.com/campuslab/accountd/internal/dbx"
	"github.com/campuslab/accountd/internal/server/repositories/emails"
	"github.com/campuslab/accountd/internal/server/repositories/groups"
	"github.com/campuslab/accountd/internal/server/repositories/permissions"
	"github.com/campuslab/accountd/internal/server/repositories/resettokens"
	"github.com/campuslab/accountd/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// services can run the same repository code against *sql.DB or a
// transaction handle.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Groups(db dbx.DBTX) groups.Repository
	Permissions(db dbx.DBTX) permissions.Repository
	Emails(db dbx.DBTX) emails.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository

	RunMigrations(ctx context.Context, db *sql.DB) error
}
