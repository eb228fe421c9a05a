package directory

import (
	"context"
	"sync"

	"github.com/campuslab/accountd/internal/server/models"
)

// Cache holds the most recent full projection of POSIX accounts. It is a
// performance optimization only: any mutation that can change the projection
// must call Invalidate in the same call path, after which the next Get is
// guaranteed to recompute.
//
// Staleness is tracked with a version counter rather than a nullable
// snapshot, so an invalidation between two reads can never be lost.
type Cache struct {
	mu          sync.Mutex
	version     uint64
	snapVersion uint64
	accounts    []models.PosixAccount
}

// NewCache returns an empty cache whose first Get always fetches.
func NewCache() *Cache {
	return &Cache{version: 1}
}

// Invalidate marks the cached projection stale.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
}

// Get returns the cached projection, calling fetch to recompute it when the
// snapshot is stale. The lock is held across fetch so concurrent readers
// cannot observe a projection older than their own invalidations.
func (c *Cache) Get(ctx context.Context, fetch func(ctx context.Context) ([]models.PosixAccount, error)) ([]models.PosixAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapVersion == c.version {
		return c.accounts, nil
	}

	accounts, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.accounts = accounts
	c.snapVersion = c.version
	return accounts, nil
}
