package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/campuslab/accountd/internal/dbx"
	"github.com/campuslab/accountd/internal/logging"
	"github.com/campuslab/accountd/internal/server/config"
	"github.com/campuslab/accountd/internal/server/models"
	"github.com/campuslab/accountd/internal/server/repositories/emails"
	"github.com/campuslab/accountd/internal/server/repositories/groups"
	"github.com/campuslab/accountd/internal/server/repositories/permissions"
	"github.com/campuslab/accountd/internal/server/repositories/resettokens"
	"github.com/campuslab/accountd/internal/server/repositories/users"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.TokenValidityDuration = time.Hour
	cfg.TokenResendLimit = 2
	return cfg
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// fakeRepoManager vends the same fakes regardless of the handle, so a
// service call inside a transaction sees exactly the canned repositories.
type fakeRepoManager struct {
	users  users.Repository
	groups groups.Repository
	perms  permissions.Repository
	emails emails.Repository
	resets resettokens.Repository
}

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) Groups(dbx.DBTX) groups.Repository           { return m.groups }
func (m *fakeRepoManager) Permissions(dbx.DBTX) permissions.Repository { return m.perms }
func (m *fakeRepoManager) Emails(dbx.DBTX) emails.Repository           { return m.emails }
func (m *fakeRepoManager) ResetTokens(dbx.DBTX) resettokens.Repository { return m.resets }
func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate() { c.calls++ }

// fakeUsersRepo embeds the interface so tests only implement the methods a
// service under test actually reaches.
type fakeUsersRepo struct {
	users.Repository

	nextUID     int64
	nextUIDErr  error
	createErr   error
	lockCalls   int
	created     *models.User
	createdHash string

	user      *models.User
	userErr   error
	all       []models.User
	allCalls  int
	creds     *users.Credentials
	credsErr  error
	newDigest string
	lastLogin int64

	memberships    []models.UserMembership
	membershipsErr error

	shell      string
	shellCalls []string
}

func (f *fakeUsersRepo) LockUsers(ctx context.Context) error {
	f.lockCalls++
	return nil
}

func (f *fakeUsersRepo) NextFreeUID(ctx context.Context, minUID int64) (int64, error) {
	if f.nextUIDErr != nil {
		return 0, f.nextUIDErr
	}
	if f.lockCalls == 0 {
		panic("NextFreeUID called without table lock")
	}
	return f.nextUID, nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, user *models.User, digest string) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	created := *user
	created.Idx = 42
	f.created = &created
	f.createdHash = digest
	return &created, nil
}

func (f *fakeUsersRepo) GetByIdx(ctx context.Context, userIdx int64) (*models.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeUsersRepo) GetAll(ctx context.Context) ([]models.User, error) {
	f.allCalls++
	return f.all, nil
}

func (f *fakeUsersRepo) GetCredentials(ctx context.Context, username string) (*users.Credentials, error) {
	if f.credsErr != nil {
		return nil, f.credsErr
	}
	return f.creds, nil
}

func (f *fakeUsersRepo) UpdatePasswordDigest(ctx context.Context, userIdx int64, digest string) error {
	f.newDigest = digest
	return nil
}

func (f *fakeUsersRepo) UpdateLastLogin(ctx context.Context, userIdx int64) error {
	f.lastLogin = userIdx
	return nil
}

func (f *fakeUsersRepo) UpdateShell(ctx context.Context, userIdx int64, shell string) error {
	f.shellCalls = append(f.shellCalls, shell)
	return nil
}

func (f *fakeUsersRepo) GetShell(ctx context.Context, userIdx int64) (string, error) {
	return f.shell, nil
}

func (f *fakeUsersRepo) ListMemberships(ctx context.Context, userIdx int64) ([]models.UserMembership, error) {
	if f.membershipsErr != nil {
		return nil, f.membershipsErr
	}
	return f.memberships, nil
}
