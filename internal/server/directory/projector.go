// Package directory derives the read-only POSIX account view of users that
// the LDAP layer serves, and caches the full projected set.
package directory

import (
	"errors"
	"fmt"

	"github.com/campuslab/accountd/internal/server/models"
)

// ErrNotProjectable is returned when a single user cannot be projected
// because username or shell is null. Batch projection skips such users
// silently instead.
var ErrNotProjectable = errors.New("user cannot be projected to a posix account")

// Projector turns user records into directory entries under a fixed base.
type Projector struct {
	usersDN    string
	homePrefix string
	gid        int64
}

// NewProjector constructs a Projector. Entries are placed under
// ou=<usersOU>,<baseDN>; home directories under homePrefix; every account
// shares the fixed group id.
func NewProjector(baseDN, usersOU, homePrefix string, gid int64) *Projector {
	return &Projector{
		usersDN:    fmt.Sprintf("ou=%s,%s", usersOU, baseDN),
		homePrefix: homePrefix,
		gid:        gid,
	}
}

// Project converts one user into a POSIX account entry. Users without a
// username or shell are not representable and yield ErrNotProjectable.
func (p *Projector) Project(user models.User) (models.PosixAccount, error) {
	if user.Username == nil || user.Shell == nil {
		return models.PosixAccount{}, ErrNotProjectable
	}

	username := *user.Username
	return models.PosixAccount{
		DN: fmt.Sprintf("cn=%s,%s", username, p.usersDN),
		Attributes: models.PosixAccountAttributes{
			UID:           username,
			CN:            username,
			Gecos:         user.Name,
			HomeDirectory: fmt.Sprintf("%s/%s", p.homePrefix, username),
			LoginShell:    *user.Shell,
			ObjectClass:   models.PosixAccountObjectClass,
			UIDNumber:     user.UID,
			GIDNumber:     p.gid,
		},
	}, nil
}

// ProjectAll converts a batch of users, silently skipping the ones that
// cannot be projected.
func (p *Projector) ProjectAll(users []models.User) []models.PosixAccount {
	accounts := make([]models.PosixAccount, 0, len(users))
	for _, u := range users {
		account, err := p.Project(u)
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts
}
