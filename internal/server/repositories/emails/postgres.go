// Package emails provides a PostgreSQL-backed repository for email
// addresses and their verification tokens.
package emails

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

// Create inserts an email address record, or returns the existing record's
// index when the same address already exists case-insensitively.
func (r *PostgresRepository) Create(ctx context.Context, local, domain string) (int64, error) {
	query := `
		INSERT INTO email_addresses (address_local, address_domain)
		VALUES ($1, $2)
		ON CONFLICT (LOWER(address_local), LOWER(address_domain)) DO UPDATE
		SET address_local = $1
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, local, domain).Scan(&idx); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return idx, nil
}

func (r *PostgresRepository) GetIdxByAddress(ctx context.Context, local, domain string) (int64, error) {
	query := `
		SELECT idx FROM email_addresses
		WHERE LOWER(address_local) = LOWER($1) AND LOWER(address_domain) = LOWER($2)
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, local, domain).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNoSuchEntry
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return idx, nil
}

// Validate marks the email address as owned by the given user.
func (r *PostgresRepository) Validate(ctx context.Context, userIdx, emailIdx int64) error {
	query := `
		UPDATE email_addresses SET owner_idx = $1
		WHERE idx = $2
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, userIdx, emailIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNoSuchEntry
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IsValidated(ctx context.Context, emailIdx int64) (bool, error) {
	query := `
		SELECT owner_idx FROM email_addresses
		WHERE idx = $1
	`

	var ownerIdx sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, emailIdx).Scan(&ownerIdx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrNoSuchEntry
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return ownerIdx.Valid, nil
}

// OwnerIdx returns the validated owner of the address. An address without an
// owner yields common.ErrNoSuchEntry, same as a missing address.
func (r *PostgresRepository) OwnerIdx(ctx context.Context, local, domain string) (int64, error) {
	query := `
		SELECT owner_idx FROM email_addresses
		WHERE LOWER(address_local) = LOWER($1) AND LOWER(address_domain) = LOWER($2)
	`

	var ownerIdx sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, local, domain).Scan(&ownerIdx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNoSuchEntry
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	if !ownerIdx.Valid {
		return 0, common.ErrNoSuchEntry
	}
	return ownerIdx.Int64, nil
}

func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerIdx int64) ([]models.EmailAddress, error) {
	query := `
		SELECT idx, address_local, address_domain
		FROM email_addresses
		WHERE owner_idx = $1
		ORDER BY idx
	`

	rows, err := r.db.QueryContext(ctx, query, ownerIdx)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var addresses []models.EmailAddress
	for rows.Next() {
		var a models.EmailAddress
		if err := rows.Scan(&a.Idx, &a.Local, &a.Domain); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		owner := ownerIdx
		a.OwnerIdx = &owner
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(addresses) == 0 {
		return nil, common.ErrNoSuchEntry
	}
	return addresses, nil
}

// ResetResendCountIfExpired zeroes the resend counter when the currently
// stored token has already expired. Called before every reissue so the
// counter tracks resends within a single expiry window.
func (r *PostgresRepository) ResetResendCountIfExpired(ctx context.Context, emailIdx int64) error {
	query := `
		UPDATE email_verification_tokens SET resend_count = 0
		WHERE email_idx = $1 AND expires <= now()
	`

	if _, err := r.db.ExecContext(ctx, query, emailIdx); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpsertToken stores a fresh secret and expiry for the address. The conflict
// path increments resend_count; a fresh insert leaves it at the default 0.
// Concurrent upserts for the same address are serialized by the store's
// row-level conflict handling.
func (r *PostgresRepository) UpsertToken(ctx context.Context, emailIdx int64, token string, expires time.Time) error {
	query := `
		INSERT INTO email_verification_tokens AS e (email_idx, token, expires)
		VALUES ($1, $2, $3)
		ON CONFLICT (email_idx) DO UPDATE
		SET token = $2, expires = $3, resend_count = e.resend_count + 1
	`

	if _, err := r.db.ExecContext(ctx, query, emailIdx, token, expires); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetToken returns the stored token row for the given secret. The owner key
// is the email address index.
func (r *PostgresRepository) GetToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	query := `
		SELECT idx, email_idx, token, expires, resend_count
		FROM email_verification_tokens
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

// ConsumeToken deletes the token row and returns the email index it was
// bound to. Deletion is unconditional on expiry; callers that need expiry to
// block consumption must check GetToken first.
func (r *PostgresRepository) ConsumeToken(ctx context.Context, token string) (int64, error) {
	query := `
		DELETE FROM email_verification_tokens
		WHERE token = $1
		RETURNING email_idx
	`

	var emailIdx int64
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&emailIdx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNoSuchEntry
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return emailIdx, nil
}

func (r *PostgresRepository) GetAddressByToken(ctx context.Context, token string) (*models.EmailAddress, error) {
	query := `
		SELECT e.idx, e.address_local, e.address_domain
		FROM email_addresses AS e
		INNER JOIN email_verification_tokens AS v
		    ON v.token = $1 AND v.email_idx = e.idx
	`

	a := &models.EmailAddress{}
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&a.Idx, &a.Local, &a.Domain); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNoSuchEntry
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}
