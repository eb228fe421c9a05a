package users

import (
	"context"

	"github.com/campuslab/accountd/internal/server/models"
)

// Credentials is the subset of a user row needed to authenticate.
type Credentials struct {
	Idx            int64
	PasswordDigest string
	Activated      bool
}

// Repository defines storage operations on user rows and membership edges.
//
// LockUsers and NextFreeUID only make sense inside a transaction: the caller
// must hold one transaction across lock, scan, and insert so concurrent
// account creation cannot race to the same UID gap.
type Repository interface {
	LockUsers(ctx context.Context) error
	NextFreeUID(ctx context.Context, minUID int64) (int64, error)

	Create(ctx context.Context, user *models.User, passwordDigest string) (*models.User, error)
	Delete(ctx context.Context, userIdx int64) error
	GetAll(ctx context.Context) ([]models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByIdx(ctx context.Context, userIdx int64) (*models.User, error)

	GetCredentials(ctx context.Context, username string) (*Credentials, error)
	UpdatePasswordDigest(ctx context.Context, userIdx int64, digest string) error
	UpdateLastLogin(ctx context.Context, userIdx int64) error
	SetActivated(ctx context.Context, userIdx int64, activated bool) error

	GetShell(ctx context.Context, userIdx int64) (string, error)
	UpdateShell(ctx context.Context, userIdx int64, shell string) error

	AddMembership(ctx context.Context, userIdx, groupIdx int64) (int64, error)
	DeleteMembership(ctx context.Context, membershipIdx int64) error
	ListMemberships(ctx context.Context, userIdx int64) ([]models.UserMembership, error)
}
