// Package permissions provides a PostgreSQL-backed repository for
// permissions and the group requirements gating them.
package permissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context, permission *models.Permission) (*models.Permission, error) {
	query := `
		INSERT INTO permissions (name_ko, name_en, description_ko, description_en)
		VALUES ($1, $2, $3, $4)
		RETURNING idx
	`

	err := r.db.QueryRowContext(ctx, query,
		permission.Name.Korean, permission.Name.English,
		permission.Description.Korean, permission.Description.English).
		Scan(&permission.Idx)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return permission, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, permissionIdx int64) error {
	query := `
		DELETE FROM permissions
		WHERE idx = $1
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, permissionIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNoSuchEntry
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddRequirement(ctx context.Context, groupIdx, permissionIdx int64) (*models.PermissionRequirement, error) {
	query := `
		INSERT INTO permission_requirements (group_idx, permission_idx)
		VALUES ($1, $2)
		RETURNING idx
	`

	requirement := &models.PermissionRequirement{GroupIdx: groupIdx, PermissionIdx: permissionIdx}
	if err := r.db.QueryRowContext(ctx, query, groupIdx, permissionIdx).Scan(&requirement.Idx); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return requirement, nil
}

func (r *PostgresRepository) DeleteRequirement(ctx context.Context, requirementIdx int64) error {
	query := `
		DELETE FROM permission_requirements
		WHERE idx = $1
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, requirementIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNoSuchEntry
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, permissionIdx int64) (bool, error) {
	query := `
		SELECT idx FROM permissions
		WHERE idx = $1
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, permissionIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) Requirements(ctx context.Context, permissionIdx int64) ([]int64, error) {
	query := `
		SELECT group_idx
		FROM permission_requirements
		WHERE permission_idx = $1
		ORDER BY group_idx
	`

	rows, err := r.db.QueryContext(ctx, query, permissionIdx)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var groups []int64
	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		groups = append(groups, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return groups, nil
}
