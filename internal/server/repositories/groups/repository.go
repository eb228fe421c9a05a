package groups

import (
	"context"

	"github.com/campuslab/accountd/internal/server/models"
)

// Repository defines storage operations on groups and hierarchy edges.
type Repository interface {
	Create(ctx context.Context, group *models.Group) (*models.Group, error)
	Delete(ctx context.Context, groupIdx int64) error

	AddRelation(ctx context.Context, supergroupIdx, subgroupIdx int64) (*models.GroupRelation, error)
	DeleteRelation(ctx context.Context, relationIdx int64) error

	Exists(ctx context.Context, groupIdx int64) (bool, error)
	DirectSupergroups(ctx context.Context, groupIdx int64) ([]int64, error)

	// ReachableGroups computes the closure of groups reachable from the
	// seed, the seed included. Returns common.ErrNoSuchEntry if the seed
	// group does not exist.
	ReachableGroups(ctx context.Context, groupIdx int64) (map[int64]struct{}, error)
}
