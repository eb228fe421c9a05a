// Package services implements the operations exposed to the API layer:
// account management, authentication, email verification, password reset,
// permission checks, and the POSIX directory view. Each operation takes a
// context and typed arguments and returns typed results or one of the
// sentinel errors in internal/common.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/campuslab/accountd/internal/common"
	"github.com/campuslab/accountd/internal/dbx"
	"github.com/campuslab/accountd/internal/logging"
	"github.com/campuslab/accountd/internal/server/config"
	"github.com/campuslab/accountd/internal/server/models"
	"github.com/campuslab/accountd/internal/server/password"
	"github.com/campuslab/accountd/internal/server/repositories/repomanager"
)

// Invalidator receives cache invalidations from mutating operations.
// Satisfied by directory.Cache.
type Invalidator interface {
	Invalidate()
}

var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// AccountService manages user rows, memberships, and authentication.
type AccountService struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	legacy      password.VerifierRegistry
	minUID      int64
	logger      logging.Logger
	invalidator Invalidator
}

func NewAccountService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger, invalidator Invalidator) *AccountService {
	return &AccountService{
		db:          db,
		repos:       repos,
		legacy:      password.DefaultLegacyVerifiers(),
		minUID:      cfg.MinUID,
		logger:      logger,
		invalidator: invalidator,
	}
}

// CreateUserParams are the inputs for account creation.
type CreateUserParams struct {
	Username          string
	Password          string
	Name              string
	Shell             string
	PreferredLanguage models.Language
}

func (p CreateUserParams) validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, validation.Required, validation.Length(1, 32), validation.Match(usernamePattern)),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 0)),
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Shell, validation.Required),
		validation.Field(&p.PreferredLanguage, validation.Required,
			validation.In(models.LanguageKorean, models.LanguageEnglish)),
	)
}

// CreateUser allocates the smallest free UID at or above the configured
// floor and inserts the user, all inside one transaction holding the users
// table lock. Two concurrent creations can therefore never race to the same
// UID gap, and a rollback cannot leak a reserved UID.
func (s *AccountService) CreateUser(ctx context.Context, p CreateUserParams) (*models.User, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidRequest, err)
	}

	digest, err := password.Hash(p.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	var user *models.User

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)

		if err := repo.LockUsers(ctx); err != nil {
			return err
		}

		uid, err := repo.NextFreeUID(ctx, s.minUID)
		if err != nil {
			return err
		}

		user = &models.User{
			Username:          &p.Username,
			Name:              p.Name,
			UID:               uid,
			Shell:             &p.Shell,
			PreferredLanguage: p.PreferredLanguage,
		}
		user, err = repo.Create(ctx, user, digest)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate()
	s.logger.Info(ctx, "user created", "user_idx", user.Idx, "uid", user.UID)

	return user, nil
}

// DeleteUser removes the user row; memberships, owned email addresses, and
// tokens go with it through the schema's cascades.
func (s *AccountService) DeleteUser(ctx context.Context, userIdx int64) error {
	if err := s.repos.Users(s.db).Delete(ctx, userIdx); err != nil {
		return err
	}
	s.invalidator.Invalidate()
	s.logger.Info(ctx, "user deleted", "user_idx", userIdx)
	return nil
}

func (s *AccountService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repos.Users(s.db).GetByUsername(ctx, username)
}

func (s *AccountService) GetByIdx(ctx context.Context, userIdx int64) (*models.User, error) {
	return s.repos.Users(s.db).GetByIdx(ctx, userIdx)
}

func (s *AccountService) GetAll(ctx context.Context) ([]models.User, error) {
	return s.repos.Users(s.db).GetAll(ctx)
}

// Authenticate verifies the credential and returns the user index. The
// stored digest is self-describing; digests in a registered legacy scheme
// are verified by the matching legacy verifier and rehashed in place with
// the modern scheme on success. A legacy mismatch is indistinguishable from
// an ordinary bad password.
func (s *AccountService) Authenticate(ctx context.Context, username, pw string) (int64, error) {
	var userIdx int64

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)

		creds, err := repo.GetCredentials(ctx, username)
		if err != nil {
			return err
		}
		if !creds.Activated {
			return common.ErrNotActivated
		}
		userIdx = creds.Idx

		scheme, err := password.SchemeID(creds.PasswordDigest)
		if err != nil {
			return err
		}

		if verifier, ok := s.legacy[scheme]; ok {
			parsed, err := password.ParsePHC(creds.PasswordDigest)
			if err != nil {
				return err
			}
			match, err := verifier.Verify(parsed, pw)
			if err != nil {
				return err
			}
			if !match {
				return common.ErrAuthenticationFailure
			}

			// Successful legacy login: migrate the row to the modern scheme.
			digest, err := password.Hash(pw)
			if err != nil {
				return err
			}
			if err := repo.UpdatePasswordDigest(ctx, creds.Idx, digest); err != nil {
				return err
			}
			s.logger.Info(ctx, "legacy digest rehashed", "user_idx", creds.Idx, "scheme", scheme)
		} else {
			match, err := password.Verify(creds.PasswordDigest, pw)
			if err != nil {
				return err
			}
			if !match {
				return common.ErrAuthenticationFailure
			}
		}

		return repo.UpdateLastLogin(ctx, creds.Idx)
	})
	if err != nil {
		return 0, err
	}

	return userIdx, nil
}

// ChangePassword replaces the stored digest with a modern-scheme digest of
// the new credential.
func (s *AccountService) ChangePassword(ctx context.Context, userIdx int64, newPassword string) error {
	if err := validation.Validate(newPassword, validation.Required, validation.Length(8, 0)); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidRequest, err)
	}
	digest, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	return s.repos.Users(s.db).UpdatePasswordDigest(ctx, userIdx, digest)
}

func (s *AccountService) ChangeShell(ctx context.Context, userIdx int64, shell string) error {
	if err := validation.Validate(shell, validation.Required); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidRequest, err)
	}
	if err := s.repos.Users(s.db).UpdateShell(ctx, userIdx, shell); err != nil {
		return err
	}
	s.invalidator.Invalidate()
	return nil
}

func (s *AccountService) GetShell(ctx context.Context, userIdx int64) (string, error) {
	return s.repos.Users(s.db).GetShell(ctx, userIdx)
}

func (s *AccountService) Activate(ctx context.Context, userIdx int64) error {
	return s.repos.Users(s.db).SetActivated(ctx, userIdx, true)
}

func (s *AccountService) Deactivate(ctx context.Context, userIdx int64) error {
	return s.repos.Users(s.db).SetActivated(ctx, userIdx, false)
}

func (s *AccountService) AddMembership(ctx context.Context, userIdx, groupIdx int64) (int64, error) {
	return s.repos.Users(s.db).AddMembership(ctx, userIdx, groupIdx)
}

func (s *AccountService) RemoveMembership(ctx context.Context, membershipIdx int64) error {
	return s.repos.Users(s.db).DeleteMembership(ctx, membershipIdx)
}

func (s *AccountService) ListMemberships(ctx context.Context, userIdx int64) ([]models.UserMembership, error) {
	return s.repos.Users(s.db).ListMemberships(ctx, userIdx)
}

// checkNotExpired enforces the expiry boundary shared by both token stores:
// a token whose expiry equals the current instant is already expired.
func checkNotExpired(now, expires time.Time) error {
	if !now.Before(expires) {
		return common.ErrExpiredToken
	}
	return nil
}
