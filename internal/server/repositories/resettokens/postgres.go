// Package resettokens provides a PostgreSQL-backed repository for
// password-change tokens keyed by user.
package resettokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campuslab/accountd/internal/common"
	"github.com/campuslab/accountd/internal/dbx"
	"github.com/campuslab/accountd/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ResetResendCountIfExpired(ctx context.Context, userIdx int64) error {
	query := `
		UPDATE password_change_tokens SET resend_count = 0
		WHERE user_idx = $1 AND expires <= now()
	`

	if _, err := r.db.ExecContext(ctx, query, userIdx); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Upsert stores a fresh secret and expiry for the user. The conflict path
// increments resend_count; a fresh insert leaves it at the default 0.
func (r *PostgresRepository) Upsert(ctx context.Context, userIdx int64, token string, expires time.Time) error {
	query := `
		INSERT INTO password_change_tokens AS p (user_idx, token, expires)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_idx) DO UPDATE
		SET token = $2, expires = $3, resend_count = p.resend_count + 1
	`

	if _, err := r.db.ExecContext(ctx, query, userIdx, token, expires); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetToken returns the stored token row for the given secret. The owner key
// is the user index.
func (r *PostgresRepository) GetToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	query := `
		SELECT idx, user_idx, token, expires, resend_count
		FROM password_change_tokens
		WHERE token = $1
	`

	t := &models.VerificationToken{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&t.Idx, &t.OwnerIdx, &t.Token, &t.Expires, &t.ResendCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNoSuchEntry
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Consume deletes the token row and returns the user it was bound to.
// Unconditional on expiry; callers check GetToken first when that matters.
func (r *PostgresRepository) Consume(ctx context.Context, token string) (int64, error) {
	query := `
		DELETE FROM password_change_tokens
		WHERE token = $1
		RETURNING user_idx
	`

	var userIdx int64
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&userIdx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNoSuchEntry
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return userIdx, nil
}
