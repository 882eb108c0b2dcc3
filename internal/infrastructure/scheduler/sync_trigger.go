package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoreLister lists the stores that should be synced
type StoreLister interface {
	ListConnectedStores(ctx context.Context) ([]uuid.UUID, error)
}

// SyncTriggerConfig holds configuration for the periodic sync trigger
type SyncTriggerConfig struct {
	// Interval is how often every connected store is synced
	Interval time.Duration
	// Stagger spaces out the runs of one tick; the store at index i waits (i+2)*Stagger
	Stagger time.Duration
}

// DefaultSyncTriggerConfig returns default configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		Interval: 15 * time.Minute,
		Stagger:  5 * time.Second,
	}
}

// Validate validates the configuration
func (c *SyncTriggerConfig) Validate() error {
	if c.Interval <= 0 || c.Stagger < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// DelayFor returns the start delay of the store at index within one tick
func (c SyncTriggerConfig) DelayFor(index int) time.Duration {
	return time.Duration(index+2) * c.Stagger
}

// PeriodicSyncTrigger enqueues a run of every connected store each Interval
type PeriodicSyncTrigger struct {
	config    SyncTriggerConfig
	scheduler *SyncScheduler
	stores    StoreLister
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewPeriodicSyncTrigger creates a new periodic sync trigger
func NewPeriodicSyncTrigger(
	config SyncTriggerConfig,
	scheduler *SyncScheduler,
	stores StoreLister,
	logger *zap.Logger,
) (*PeriodicSyncTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodicSyncTrigger{
		config:    config,
		scheduler: scheduler,
		stores:    stores,
		logger:    logger,
	}, nil
}

// Start starts the trigger loop. The first tick fires immediately.
func (t *PeriodicSyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Periodic sync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Duration("stagger", t.config.Stagger),
	)
	return nil
}

// Stop stops the trigger loop
func (t *PeriodicSyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Periodic sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *PeriodicSyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	t.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick lists the connected stores and enqueues one staggered run for each.
// It returns the number of jobs submitted.
func (t *PeriodicSyncTrigger) Tick(ctx context.Context) int {
	stores, err := t.stores.ListConnectedStores(ctx)
	if err != nil {
		t.logger.Error("Failed to list connected stores", zap.Error(err))
		return 0
	}
	if len(stores) == 0 {
		t.logger.Debug("No connected stores to sync")
		return 0
	}

	submitted := 0
	for i, storeID := range stores {
		if _, err := t.scheduler.ScheduleStore(storeID, SyncTriggerPeriodic, t.config.DelayFor(i)); err != nil {
			t.logger.Warn("Failed to schedule store sync",
				zap.String("store_id", storeID.String()),
				zap.Error(err),
			)
			continue
		}
		submitted++
	}

	t.logger.Info("Scheduled store syncs",
		zap.Int("stores", len(stores)),
		zap.Int("submitted", submitted),
	)
	return submitted
}
