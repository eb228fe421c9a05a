package permissions

import (
	"context"

	"github.com/campuslab/accountd/internal/server/models"
)

// Repository defines storage operations on permissions and their
// requirement edges.
type Repository interface {
	Create(ctx context.Context, permission *models.Permission) (*models.Permission, error)
	Delete(ctx context.Context, permissionIdx int64) error

	AddRequirement(ctx context.Context, groupIdx, permissionIdx int64) (*models.PermissionRequirement, error)
	DeleteRequirement(ctx context.Context, requirementIdx int64) error

	Exists(ctx context.Context, permissionIdx int64) (bool, error)

	// Requirements returns the group indexes gating the permission. All of
	// them must be reachable for the permission to be granted.
	Requirements(ctx context.Context, permissionIdx int64) ([]int64, error)
}
