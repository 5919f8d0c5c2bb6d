// Package lock serializes operations on the same environment across
// processes. A DynamoDB table backs the shared lock; MemoryLocker serves
// single-process use and tests.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trussworks/ephemeral-env/errors"
)

// DefaultTTL bounds how long a lease is honoured if its holder dies.
const DefaultTTL = 30 * time.Minute

// Locker acquires exclusive leases by key.
type Locker interface {
	// Acquire takes the lease for key or fails at once with CodeConflict.
	Acquire(ctx context.Context, key string) (*Lease, error)
}

// Lease is a held lock.
type Lease struct {
	Key       string
	Owner     string
	ExpiresAt time.Time

	release func(ctx context.Context) error
}

// Release gives the lease up. Releasing twice is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.release == nil {
		return nil
	}
	release := l.release
	l.release = nil
	return release(ctx)
}

func newOwner() string {
	return uuid.NewString()
}

func conflict(key, owner string) error {
	return errors.Newf(errors.CodeConflict, "lock %q is held", key).
		WithContext("key", key).
		WithContext("owner", owner)
}
