package services

import (
	"context"
	"database/sql"

	"github.com/campuslab/accountd/internal/server/config"
	"github.com/campuslab/accountd/internal/server/directory"
	"github.com/campuslab/accountd/internal/server/models"
	"github.com/campuslab/accountd/internal/server/repositories/repomanager"
)

// DirectoryService serves the LDAP-style posixAccount view of the user
// table. Full listings come from a snapshot cache that account mutations
// invalidate through the Invalidator interface.
type DirectoryService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	projector *directory.Projector
	cache     *directory.Cache
}

func NewDirectoryService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config) *DirectoryService {
	return &DirectoryService{
		db:        db,
		repos:     repos,
		projector: directory.NewProjector(cfg.BaseDN, cfg.UsersOU, cfg.HomeDirectoryPrefix, cfg.UserGroupGID),
		cache:     directory.NewCache(),
	}
}

// Cache exposes the snapshot cache so mutating services can invalidate it.
func (s *DirectoryService) Cache() *directory.Cache {
	return s.cache
}

// PosixAccounts returns the projection of every user, serving the cached
// snapshot when it is still current. Users without a username or shell are
// left out of the listing.
func (s *DirectoryService) PosixAccounts(ctx context.Context) ([]models.PosixAccount, error) {
	return s.cache.Get(ctx, func(ctx context.Context) ([]models.PosixAccount, error) {
		users, err := s.repos.Users(s.db).GetAll(ctx)
		if err != nil {
			return nil, err
		}
		return s.projector.ProjectAll(users), nil
	})
}

// PosixAccountByUsername projects a single user, bypassing the cache.
// Returns directory.ErrNotProjectable if the user lacks a username or
// shell.
func (s *DirectoryService) PosixAccountByUsername(ctx context.Context, username string) (models.PosixAccount, error) {
	user, err := s.repos.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		return models.PosixAccount{}, err
	}
	return s.projector.Project(*user)
}
