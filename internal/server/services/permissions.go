package services

import (
	"context"
	"database/sql"

	"github.com/campuslab/accountd/internal/common"
	"github.com/campuslab/accountd/internal/logging"
	"github.com/campuslab/accountd/internal/server/models"
	"github.com/campuslab/accountd/internal/server/repositories/repomanager"
)

// PermissionService answers reachability and permission queries over the
// group hierarchy.
type PermissionService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

func NewPermissionService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *PermissionService {
	return &PermissionService{db: db, repos: repos, logger: logger}
}

func (s *PermissionService) CreateGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	return s.repos.Groups(s.db).Create(ctx, group)
}

func (s *PermissionService) DeleteGroup(ctx context.Context, groupIdx int64) error {
	return s.repos.Groups(s.db).Delete(ctx, groupIdx)
}

func (s *PermissionService) AddGroupRelation(ctx context.Context, supergroupIdx, subgroupIdx int64) (*models.GroupRelation, error) {
	return s.repos.Groups(s.db).AddRelation(ctx, supergroupIdx, subgroupIdx)
}

func (s *PermissionService) DeleteGroupRelation(ctx context.Context, relationIdx int64) error {
	return s.repos.Groups(s.db).DeleteRelation(ctx, relationIdx)
}

func (s *PermissionService) CreatePermission(ctx context.Context, permission *models.Permission) (*models.Permission, error) {
	return s.repos.Permissions(s.db).Create(ctx, permission)
}

func (s *PermissionService) DeletePermission(ctx context.Context, permissionIdx int64) error {
	return s.repos.Permissions(s.db).Delete(ctx, permissionIdx)
}

func (s *PermissionService) AddRequirement(ctx context.Context, groupIdx, permissionIdx int64) (*models.PermissionRequirement, error) {
	return s.repos.Permissions(s.db).AddRequirement(ctx, groupIdx, permissionIdx)
}

func (s *PermissionService) DeleteRequirement(ctx context.Context, requirementIdx int64) error {
	return s.repos.Permissions(s.db).DeleteRequirement(ctx, requirementIdx)
}

// GroupReachableGroups returns the closure of groups reachable from the
// given group by following sub-to-supergroup edges, the group itself
// included.
func (s *PermissionService) GroupReachableGroups(ctx context.Context, groupIdx int64) (map[int64]struct{}, error) {
	return s.repos.Groups(s.db).ReachableGroups(ctx, groupIdx)
}

// UserReachableGroups unions the reachability closures of all groups the
// user is a direct member of. A user with no memberships reaches the empty
// set; an unknown user is common.ErrNoSuchEntry.
func (s *PermissionService) UserReachableGroups(ctx context.Context, userIdx int64) (map[int64]struct{}, error) {
	usersRepo := s.repos.Users(s.db)

	if _, err := usersRepo.GetByIdx(ctx, userIdx); err != nil {
		return nil, err
	}

	memberships, err := usersRepo.ListMemberships(ctx, userIdx)
	if err != nil {
		return nil, err
	}

	groupsRepo := s.repos.Groups(s.db)
	reachable := make(map[int64]struct{})
	for _, m := range memberships {
		closure, err := groupsRepo.ReachableGroups(ctx, m.GroupIdx)
		if err != nil {
			return nil, err
		}
		for idx := range closure {
			reachable[idx] = struct{}{}
		}
	}

	return reachable, nil
}

// CheckUserPermission reports whether the user reaches every group the
// permission requires. A permission with no requirements is granted to any
// existing user.
func (s *PermissionService) CheckUserPermission(ctx context.Context, userIdx, permissionIdx int64) (bool, error) {
	permsRepo := s.repos.Permissions(s.db)

	ok, err := permsRepo.Exists(ctx, permissionIdx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, common.ErrNoSuchEntry
	}

	required, err := permsRepo.Requirements(ctx, permissionIdx)
	if err != nil {
		return false, err
	}

	reachable, err := s.UserReachableGroups(ctx, userIdx)
	if err != nil {
		return false, err
	}

	for _, groupIdx := range required {
		if _, ok := reachable[groupIdx]; !ok {
			return false, nil
		}
	}
	return true, nil
}
