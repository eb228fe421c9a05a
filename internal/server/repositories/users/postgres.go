// Package users provides a PostgreSQL-backed repository for user rows,
// POSIX UID allocation, and user-group membership edges.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/campuslab/accountd/internal/common"
	"github.com/campuslab/accountd/internal/dbx"
	"github.com/campuslab/accountd/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LockUsers takes an exclusive table lock on users for the remainder of the
// enclosing transaction. Required before NextFreeUID so that scan+insert is
// serialized against concurrent allocation.
func (r *PostgresRepository) LockUsers(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `LOCK TABLE users IN ACCESS EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// NextFreeUID returns the smallest UID >= minUID not currently assigned.
// Deleted users' UIDs are reused (first-fit, gap-filling), so the identifier
// space is not exhausted by churn.
func (r *PostgresRepository) NextFreeUID(ctx context.Context, minUID int64) (int64, error) {
	query := `
		SELECT candidate FROM (
		    SELECT $1::bigint AS candidate
		    UNION
		    SELECT uid + 1 FROM users WHERE uid + 1 > $1
		) AS c
		WHERE NOT EXISTS (SELECT 1 FROM users WHERE users.uid = c.candidate)
		ORDER BY candidate
		LIMIT 1
	`

	var uid int64
	if err := r.db.QueryRowContext(ctx, query, minUID).Scan(&uid); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return uid, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User, passwordDigest string) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_digest, name, uid, shell, preferred_language)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING idx
	`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, passwordDigest, user.Name, user.UID, user.Shell, string(user.PreferredLanguage)).
		Scan(&user.Idx)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userIdx int64) error {
	query := `
		DELETE FROM users
		WHERE idx = $1
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, userIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNoSuchEntry
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAll(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT idx, username, name, uid, shell, preferred_language
		FROM users
		ORDER BY idx
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT idx, username, name, uid, shell, preferred_language
		FROM users
		WHERE username = $1
	`
	return r.getOne(ctx, query, username)
}

func (r *PostgresRepository) GetByIdx(ctx context.Context, userIdx int64) (*models.User, error) {
	query := `
		SELECT idx, username, name, uid, shell, preferred_language
		FROM users
		WHERE idx = $1
	`
	return r.getOne(ctx, query, userIdx)
}

// GetCredentials fetches the fields needed to authenticate a user by
// username. Returns common.ErrNoSuchEntry if no such user exists.
func (r *PostgresRepository) GetCredentials(ctx context.Context, username string) (*Credentials, error) {
	query := `
		SELECT idx, password_digest, activated
		FROM users
		WHERE username = $1
	`

	c := &Credentials{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&c.Idx, &c.PasswordDigest, &c.Activated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNoSuchEntry
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) UpdatePasswordDigest(ctx context.Context, userIdx int64, digest string) error {
	query := `
		UPDATE users SET password_digest = $1
		WHERE idx = $2
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, digest, userIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNoSuchEntry
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, userIdx int64) error {
	query := `
		UPDATE users SET last_login_at = now()
		WHERE idx = $1
	`

	if _, err := r.db.ExecContext(ctx, query, userIdx); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetActivated(ctx context.Context, userIdx int64, activated bool) error {
	query := `
		UPDATE users SET activated = $1
		WHERE idx = $2
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, activated, userIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNoSuchEntry
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetShell(ctx context.Context, userIdx int64) (string, error) {
	query := `
		SELECT shell FROM users
		WHERE idx = $1
	`

	var shell sql.NullString
	if err := r.db.QueryRowContext(ctx, query, userIdx).Scan(&shell); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNoSuchEntry
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return shell.String, nil
}

func (r *PostgresRepository) UpdateShell(ctx context.Context, userIdx int64, shell string) error {
	query := `
		UPDATE users SET shell = $1
		WHERE idx = $2
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, shell, userIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNoSuchEntry
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddMembership(ctx context.Context, userIdx, groupIdx int64) (int64, error) {
	query := `
		INSERT INTO user_memberships (user_idx, group_idx)
		VALUES ($1, $2)
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, userIdx, groupIdx).Scan(&idx); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return idx, nil
}

func (r *PostgresRepository) DeleteMembership(ctx context.Context, membershipIdx int64) error {
	query := `
		DELETE FROM user_memberships
		WHERE idx = $1
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, membershipIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNoSuchEntry
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListMemberships returns the user's direct membership edges. A user with no
// memberships yields an empty slice, not an error.
func (r *PostgresRepository) ListMemberships(ctx context.Context, userIdx int64) ([]models.UserMembership, error) {
	query := `
		SELECT idx, user_idx, group_idx
		FROM user_memberships
		WHERE user_idx = $1
		ORDER BY idx
	`

	rows, err := r.db.QueryContext(ctx, query, userIdx)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var memberships []models.UserMembership
	for rows.Next() {
		var m models.UserMembership
		if err := rows.Scan(&m.Idx, &m.UserIdx, &m.GroupIdx); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return memberships, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNoSuchEntry
		}
		return nil, err
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u        models.User
		username sql.NullString
		shell    sql.NullString
		language string
	)

	if err := row.Scan(&u.Idx, &username, &u.Name, &u.UID, &shell, &language); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if username.Valid {
		u.Username = &username.String
	}
	if shell.Valid {
		u.Shell = &shell.String
	}
	u.PreferredLanguage = models.Language(language)

	return &u, nil
}
