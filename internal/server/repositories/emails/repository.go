package emails

import (
	"context"
	"time"

	"github.com/campuslab/accountd/internal/server/models"
)

// Repository defines storage operations on email addresses and the
// verification tokens bound to them.
//
// Token state machine: no row exists until the first upsert; reissuing for
// the same address replaces the secret and expiry and increments the resend
// counter; consumption deletes the row. A stored token can be expired but
// still present, which is why expiry and existence are distinct checks.
type Repository interface {
	Create(ctx context.Context, local, domain string) (int64, error)
	GetIdxByAddress(ctx context.Context, local, domain string) (int64, error)
	Validate(ctx context.Context, userIdx, emailIdx int64) error
	IsValidated(ctx context.Context, emailIdx int64) (bool, error)
	OwnerIdx(ctx context.Context, local, domain string) (int64, error)
	GetByOwner(ctx context.Context, ownerIdx int64) ([]models.EmailAddress, error)

	ResetResendCountIfExpired(ctx context.Context, emailIdx int64) error
	UpsertToken(ctx context.Context, emailIdx int64, token string, expires time.Time) error
	GetToken(ctx context.Context, token string) (*models.VerificationToken, error)
	ConsumeToken(ctx context.Context, token string) (int64, error)
	GetAddressByToken(ctx context.Context, token string) (*models.EmailAddress, error)
}
