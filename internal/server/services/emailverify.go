package services

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/campuslab/accountd/internal/common"
	"github.com/campuslab/accountd/internal/dbx"
	"github.com/campuslab/accountd/internal/logging"
	"github.com/campuslab/accountd/internal/server/config"
	"github.com/campuslab/accountd/internal/server/models"
	"github.com/campuslab/accountd/internal/server/repositories/repomanager"
)

// emailLocalPattern rejects separators and whitespace so a crafted local
// part cannot smuggle a second recipient into an outgoing message.
var emailLocalPattern = regexp.MustCompile(`^[^@,\s]+$`)

// EmailService drives the email verification token lifecycle: issue a
// single-use token for an address, check it, and consume it to bind the
// address to a user.
type EmailService struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	validity    time.Duration
	resendLimit int
	logger      logging.Logger
}

func NewEmailService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *EmailService {
	return &EmailService{
		db:          db,
		repos:       repos,
		validity:    cfg.TokenValidityDuration,
		resendLimit: cfg.TokenResendLimit,
		logger:      logger,
	}
}

func validateAddress(local, domain string) error {
	if err := validation.Validate(local, validation.Required, validation.Match(emailLocalPattern)); err != nil {
		return fmt.Errorf("%w: local part: %v", common.ErrInvalidRequest, err)
	}
	if err := validation.Validate(domain, validation.Required, is.Host); err != nil {
		return fmt.Errorf("%w: domain: %v", common.ErrInvalidRequest, err)
	}
	return nil
}

// RequestVerification issues a fresh verification token for the address,
// creating the address row if needed. Reissuing for the same address
// replaces the previous token. If the previous token had already expired
// the resend counter starts over; otherwise it keeps counting, and once it
// passes the configured limit the whole issuance rolls back with
// common.ErrResendLimitExceeded.
func (s *EmailService) RequestVerification(ctx context.Context, local, domain string) (string, error) {
	if err := validateAddress(local, domain); err != nil {
		return "", err
	}

	var token string

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Emails(tx)

		emailIdx, err := repo.Create(ctx, local, domain)
		if err != nil {
			return err
		}

		if err := repo.ResetResendCountIfExpired(ctx, emailIdx); err != nil {
			return err
		}

		token, err = common.MakeRandHexString(common.TokenByteLength)
		if err != nil {
			return err
		}

		if err := repo.UpsertToken(ctx, emailIdx, token, time.Now().Add(s.validity)); err != nil {
			return err
		}

		stored, err := repo.GetToken(ctx, token)
		if err != nil {
			return err
		}
		if stored.ResendCount > s.resendLimit {
			return common.ErrResendLimitExceeded
		}

		s.logger.Info(ctx, "verification token issued", "email_idx", emailIdx, "resend_count", stored.ResendCount)
		return nil
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

// CheckToken returns the address a live token was issued for without
// consuming it. An expired token yields common.ErrExpiredToken even though
// its row still exists.
func (s *EmailService) CheckToken(ctx context.Context, token string) (*models.EmailAddress, error) {
	repo := s.repos.Emails(s.db)

	stored, err := repo.GetToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := checkNotExpired(time.Now(), stored.Expires); err != nil {
		return nil, err
	}

	return repo.GetAddressByToken(ctx, token)
}

// VerifyEmail consumes the token and records the address as validated for
// the given user. Consumption and validation happen in one transaction, so
// a token can never be spent without the address ending up bound.
func (s *EmailService) VerifyEmail(ctx context.Context, token string, userIdx int64) (int64, error) {
	var emailIdx int64

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Emails(tx)

		stored, err := repo.GetToken(ctx, token)
		if err != nil {
			return err
		}
		if err := checkNotExpired(time.Now(), stored.Expires); err != nil {
			return err
		}

		emailIdx, err = repo.ConsumeToken(ctx, token)
		if err != nil {
			return err
		}

		return repo.Validate(ctx, userIdx, emailIdx)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "email verified", "email_idx", emailIdx, "user_idx", userIdx)
	return emailIdx, nil
}

func (s *EmailService) GetByOwner(ctx context.Context, ownerIdx int64) ([]models.EmailAddress, error) {
	return s.repos.Emails(s.db).GetByOwner(ctx, ownerIdx)
}

// AddressStatus reports whether the address is known and whether it has
// been verified by an owner. Unknown addresses are common.ErrNoSuchEntry.
func (s *EmailService) AddressStatus(ctx context.Context, local, domain string) (int64, bool, error) {
	if err := validateAddress(local, domain); err != nil {
		return 0, false, err
	}

	repo := s.repos.Emails(s.db)

	emailIdx, err := repo.GetIdxByAddress(ctx, local, domain)
	if err != nil {
		return 0, false, err
	}

	validated, err := repo.IsValidated(ctx, emailIdx)
	if err != nil {
		return 0, false, err
	}
	return emailIdx, validated, nil
}
