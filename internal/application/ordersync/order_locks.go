package ordersync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/domain/order"
)

// heldOrderLocks collects the per-order action locks taken by one batch of
// sync-side deletes. A nil lock grants every order.
type heldOrderLocks struct {
	lock   order.ActionLock
	ttl    time.Duration
	tokens map[string]string
}

func newHeldOrderLocks(lock order.ActionLock, ttl time.Duration) *heldOrderLocks {
	return &heldOrderLocks{lock: lock, ttl: ttl, tokens: make(map[string]string)}
}

// acquire reports false when a lifecycle action holds the order
func (h *heldOrderLocks) acquire(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if h.lock == nil {
		return true, nil
	}
	key := order.LockKey(orderID)
	if _, ok := h.tokens[key]; ok {
		return true, nil
	}
	token, ok, err := h.lock.TryAcquire(ctx, key, h.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire action lock: %w", err)
	}
	if !ok {
		return false, nil
	}
	h.tokens[key] = token
	return true, nil
}

func (h *heldOrderLocks) releaseAll(ctx context.Context, log *zap.Logger) {
	for key, token := range h.tokens {
		if err := h.lock.Release(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn("Failed to release action lock", zap.String("lock_key", key), zap.Error(err))
		}
	}
	h.tokens = make(map[string]string)
}
