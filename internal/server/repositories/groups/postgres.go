// Package groups provides a PostgreSQL-backed repository for the group
// hierarchy and the reachability closure over it.
package groups

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

func (r *PostgresRepository) Create(ctx context.Context, group *models.Group) (*models.Group, error) {
	query := `
		INSERT INTO groups (name_ko, name_en, description_ko, description_en)
		VALUES ($1, $2, $3, $4)
		RETURNING idx
	`

	err := r.db.QueryRowContext(ctx, query,
		group.Name.Korean, group.Name.English,
		group.Description.Korean, group.Description.English).
		Scan(&group.Idx)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return group, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, groupIdx int64) error {
	query := `
		DELETE FROM groups
		WHERE idx = $1
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, groupIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNoSuchEntry
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddRelation(ctx context.Context, supergroupIdx, subgroupIdx int64) (*models.GroupRelation, error) {
	query := `
		INSERT INTO group_relations (supergroup_idx, subgroup_idx)
		VALUES ($1, $2)
		RETURNING idx
	`

	relation := &models.GroupRelation{SupergroupIdx: supergroupIdx, SubgroupIdx: subgroupIdx}
	if err := r.db.QueryRowContext(ctx, query, supergroupIdx, subgroupIdx).Scan(&relation.Idx); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return relation, nil
}

func (r *PostgresRepository) DeleteRelation(ctx context.Context, relationIdx int64) error {
	query := `
		DELETE FROM group_relations
		WHERE idx = $1
		RETURNING idx
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, relationIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNoSuchEntry
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, groupIdx int64) (bool, error) {
	query := `
		SELECT idx FROM groups
		WHERE idx = $1
	`

	var idx int64
	if err := r.db.QueryRowContext(ctx, query, groupIdx).Scan(&idx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

// DirectSupergroups returns the groups reachable from groupIdx in one step.
func (r *PostgresRepository) DirectSupergroups(ctx context.Context, groupIdx int64) ([]int64, error) {
	query := `
		SELECT supergroup_idx
		FROM group_relations
		WHERE subgroup_idx = $1
		ORDER BY supergroup_idx
	`

	rows, err := r.db.QueryContext(ctx, query, groupIdx)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var supergroups []int64
	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		supergroups = append(supergroups, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return supergroups, nil
}

// ReachableGroups walks the hierarchy breadth-first starting from the seed.
// The visited set makes revisits no-ops, so cyclic hierarchies terminate.
func (r *PostgresRepository) ReachableGroups(ctx context.Context, groupIdx int64) (map[int64]struct{}, error) {
	ok, err := r.Exists(ctx, groupIdx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrNoSuchEntry
	}

	visited := map[int64]struct{}{groupIdx: {}}
	queue := []int64{groupIdx}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		supergroups, err := r.DirectSupergroups(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, sg := range supergroups {
			if _, seen := visited[sg]; seen {
				continue
			}
			visited[sg] = struct{}{}
			queue = append(queue, sg)
		}
	}

	return visited, nil
}
