package resettokens

import (
	"context"
	"time"

	"github.com/campuslab/accountd/internal/server/models"
)

// Repository defines storage operations on password-change tokens. Same
// state machine as email verification tokens, but the owner key is a user.
type Repository interface {
	ResetResendCountIfExpired(ctx context.Context, userIdx int64) error
	Upsert(ctx context.Context, userIdx int64, token string, expires time.Time) error
	GetToken(ctx context.Context, token string) (*models.VerificationToken, error)
	Consume(ctx context.Context, token string) (int64, error)
}
