package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fbsamples/cp-reference/internal/domain/order"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// InMemoryActionLock implements order.ActionLock within a single process.
// Suitable for single-instance deployments and tests.
type InMemoryActionLock struct {
	mu      sync.Mutex
	entries map[string]lockEntry
	now     func() time.Time
}

// NewInMemoryActionLock creates an empty in-memory lock table
func NewInMemoryActionLock() *InMemoryActionLock {
	return &InMemoryActionLock{
		entries: make(map[string]lockEntry),
		now:     time.Now,
	}
}

// TryAcquire takes key unless an unexpired holder exists
func (l *InMemoryActionLock) TryAcquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, held := l.entries[key]; held && now.Before(e.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.entries[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release drops key if token still owns it
func (l *InMemoryActionLock) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, held := l.entries[key]; held && e.token == token {
		delete(l.entries, key)
	}
	return nil
}

// Size returns the number of held or expired-but-unreleased keys
func (l *InMemoryActionLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

var _ order.ActionLock = (*InMemoryActionLock)(nil)
