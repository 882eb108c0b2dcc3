package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("NewSyncMetrics: meter cannot be nil")

// Lifecycle action outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Acknowledgment results
const (
	AckResultAcknowledged = "acknowledged"
	AckResultDeleted      = "deleted"
)

// SyncMetrics records order sync and lifecycle activity.
// All record methods are safe on a nil receiver.
type SyncMetrics struct {
	logger *zap.Logger

	ordersFetched      *Counter
	ordersWritten      *Counter
	ordersMissingItems *Counter
	ordersAcknowledged *Counter
	syncRuns           *Counter
	syncDuration       *Histogram
	lifecycleActions   *Counter
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewSyncMetrics creates the sync metric instruments on the given meter.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{logger: logger}
	var err error

	if sm.ordersFetched, err = NewCounter(cfg.Meter,
		"cpref_orders_fetched_total", "Orders returned by the commerce platform", "{orders}"); err != nil {
		return nil, err
	}
	if sm.ordersWritten, err = NewCounter(cfg.Meter,
		"cpref_orders_written_total", "Orders created locally by the order writer", "{orders}"); err != nil {
		return nil, err
	}
	if sm.ordersMissingItems, err = NewCounter(cfg.Meter,
		"cpref_orders_missing_items_total", "Orders written with at least one unknown product", "{orders}"); err != nil {
		return nil, err
	}
	if sm.ordersAcknowledged, err = NewCounter(cfg.Meter,
		"cpref_orders_acknowledged_total", "Orders settled by the acknowledgment batcher", "{orders}"); err != nil {
		return nil, err
	}
	if sm.syncRuns, err = NewCounter(cfg.Meter,
		"cpref_sync_runs_total", "Completed sync runs by status", "{runs}"); err != nil {
		return nil, err
	}
	if sm.syncDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "cpref_sync_duration_seconds",
		Description: "Duration of a store sync run",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if sm.lifecycleActions, err = NewCounter(cfg.Meter,
		"cpref_lifecycle_actions_total", "Fulfill, cancel and refund requests by outcome", "{actions}"); err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordFetched counts orders returned by one fetch
func (m *SyncMetrics) RecordFetched(ctx context.Context, storeID uuid.UUID, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ordersFetched.Add(ctx, int64(n), AttrStoreID.String(storeID.String()))
}

// RecordWritten counts orders newly created by the writer
func (m *SyncMetrics) RecordWritten(ctx context.Context, storeID uuid.UUID, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ordersWritten.Add(ctx, int64(n), AttrStoreID.String(storeID.String()))
}

// RecordMissingItems counts an order flagged with missing items
func (m *SyncMetrics) RecordMissingItems(ctx context.Context, storeID uuid.UUID) {
	if m == nil {
		return
	}
	m.ordersMissingItems.Inc(ctx, AttrStoreID.String(storeID.String()))
}

// RecordAcknowledged counts orders confirmed after acknowledgment
func (m *SyncMetrics) RecordAcknowledged(ctx context.Context, storeID uuid.UUID, n int) {
	m.recordAck(ctx, storeID, n, AckResultAcknowledged)
}

// RecordDeleted counts orders deleted after a failed acknowledgment
func (m *SyncMetrics) RecordDeleted(ctx context.Context, storeID uuid.UUID, n int) {
	m.recordAck(ctx, storeID, n, AckResultDeleted)
}

func (m *SyncMetrics) recordAck(ctx context.Context, storeID uuid.UUID, n int, result string) {
	if m == nil || n == 0 {
		return
	}
	m.ordersAcknowledged.Add(ctx, int64(n),
		AttrStoreID.String(storeID.String()),
		AttrAckResult.String(result),
	)
}

// RecordSyncRun records the status and duration of a sync run
func (m *SyncMetrics) RecordSyncRun(ctx context.Context, storeID uuid.UUID, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.Inc(ctx, AttrStoreID.String(storeID.String()), AttrSyncStatus.String(status))
	m.syncDuration.RecordDuration(ctx, d, AttrSyncStatus.String(status))
}

// RecordLifecycleAction counts a fulfill, cancel or refund request by outcome
func (m *SyncMetrics) RecordLifecycleAction(ctx context.Context, action, outcome string) {
	if m == nil {
		return
	}
	m.lifecycleActions.Inc(ctx, AttrAction.String(action), AttrOutcome.String(outcome))
}
