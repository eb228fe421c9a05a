package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/campuslab/accountd/internal/common"
	"github.com/campuslab/accountd/internal/dbx"
	"github.com/campuslab/accountd/internal/logging"
	"github.com/campuslab/accountd/internal/server/config"
	"github.com/campuslab/accountd/internal/server/password"
	"github.com/campuslab/accountd/internal/server/repositories/repomanager"
)

// PasswordResetService drives the password reset token lifecycle. Token
// issuance is keyed by a validated email address and the token itself is
// bound to the owning user, so consuming it identifies who to reset.
type PasswordResetService struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	validity    time.Duration
	resendLimit int
	logger      logging.Logger
}

func NewPasswordResetService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *PasswordResetService {
	return &PasswordResetService{
		db:          db,
		repos:       repos,
		validity:    cfg.TokenValidityDuration,
		resendLimit: cfg.TokenResendLimit,
		logger:      logger,
	}
}

// RequestReset issues a reset token for the user owning the given validated
// address. Unknown and unvalidated addresses are both common.ErrNoSuchEntry,
// indistinguishable to the caller. Resend counting works exactly like email
// verification: an expired previous token resets the counter, exceeding the
// limit rolls the issuance back with common.ErrResendLimitExceeded.
func (s *PasswordResetService) RequestReset(ctx context.Context, local, domain string) (string, error) {
	if err := validateAddress(local, domain); err != nil {
		return "", err
	}

	var token string

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userIdx, err := s.repos.Emails(tx).OwnerIdx(ctx, local, domain)
		if err != nil {
			return err
		}

		repo := s.repos.ResetTokens(tx)

		if err := repo.ResetResendCountIfExpired(ctx, userIdx); err != nil {
			return err
		}

		token, err = common.MakeRandHexString(common.TokenByteLength)
		if err != nil {
			return err
		}

		if err := repo.Upsert(ctx, userIdx, token, time.Now().Add(s.validity)); err != nil {
			return err
		}

		stored, err := repo.GetToken(ctx, token)
		if err != nil {
			return err
		}
		if stored.ResendCount > s.resendLimit {
			return common.ErrResendLimitExceeded
		}

		s.logger.Info(ctx, "reset token issued", "user_idx", userIdx, "resend_count", stored.ResendCount)
		return nil
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

// CheckToken returns the user a live reset token belongs to without
// consuming it.
func (s *PasswordResetService) CheckToken(ctx context.Context, token string) (int64, error) {
	repo := s.repos.ResetTokens(s.db)

	stored, err := repo.GetToken(ctx, token)
	if err != nil {
		return 0, err
	}
	if err := checkNotExpired(time.Now(), stored.Expires); err != nil {
		return 0, err
	}
	return stored.OwnerIdx, nil
}

// ResetPassword consumes the token and replaces the owner's password digest
// in one transaction. A second call with the same token fails with
// common.ErrNoSuchEntry because consumption deleted the row.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) (int64, error) {
	if err := validation.Validate(newPassword, validation.Required, validation.Length(8, 0)); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrInvalidRequest, err)
	}

	digest, err := password.Hash(newPassword)
	if err != nil {
		return 0, err
	}

	var userIdx int64

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.ResetTokens(tx)

		stored, err := repo.GetToken(ctx, token)
		if err != nil {
			return err
		}
		if err := checkNotExpired(time.Now(), stored.Expires); err != nil {
			return err
		}

		userIdx, err = repo.Consume(ctx, token)
		if err != nil {
			return err
		}

		return s.repos.Users(tx).UpdatePasswordDigest(ctx, userIdx, digest)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "password reset", "user_idx", userIdx)
	return userIdx, nil
}
