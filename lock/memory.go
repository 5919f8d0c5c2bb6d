package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is an in-process Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]Lease
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryLocker creates a MemoryLocker whose leases expire after ttl.
// A non-positive ttl uses DefaultTTL.
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLocker{
		held: make(map[string]Lease),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Acquire implements Locker.
func (m *MemoryLocker) Acquire(_ context.Context, key string) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if cur, ok := m.held[key]; ok && now.Before(cur.ExpiresAt) {
		return nil, conflict(key, cur.Owner)
	}

	lease := Lease{Key: key, Owner: newOwner(), ExpiresAt: now.Add(m.ttl)}
	m.held[key] = lease

	lease.release = func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if cur, ok := m.held[key]; ok && cur.Owner == lease.Owner {
			delete(m.held, key)
		}
		return nil
	}
	return &lease, nil
}
