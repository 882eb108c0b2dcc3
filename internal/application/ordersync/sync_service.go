package ordersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/infrastructure/logger"
	"github.com/fbsamples/cp-reference/internal/infrastructure/telemetry"
)

// SyncServiceConfig holds the sync run settings
type SyncServiceConfig struct {
	// LockTTL bounds how long a crashed run can keep the store locked. Zero disables the lock.
	LockTTL time.Duration
	// ActionLockTTL bounds the per-order locks taken while deleting orders.
	// Defaults to DefaultActionLockTTL.
	ActionLockTTL time.Duration
}

// SyncService runs the per-store pipeline: fetch, write, acknowledge
type SyncService struct {
	config       SyncServiceConfig
	credentials  integration.CredentialLookup
	platform     integration.CommercePlatform
	writer       *Writer
	acknowledger *Acknowledger
	uow          order.UnitOfWork
	lock         order.ActionLock
	logger       *zap.Logger
	metrics      *telemetry.SyncMetrics
}

// NewSyncService creates a new SyncService
func NewSyncService(
	config SyncServiceConfig,
	credentials integration.CredentialLookup,
	platform integration.CommercePlatform,
	writer *Writer,
	acknowledger *Acknowledger,
	uow order.UnitOfWork,
	logger *zap.Logger,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ActionLockTTL <= 0 {
		config.ActionLockTTL = DefaultActionLockTTL
	}
	return &SyncService{
		config:       config,
		credentials:  credentials,
		platform:     platform,
		writer:       writer,
		acknowledger: acknowledger,
		uow:          uow,
		logger:       logger,
	}
}

// SetActionLock sets the lock that keeps two runs of one store apart.
// The same lock keeps deletes away from orders under a lifecycle action.
func (s *SyncService) SetActionLock(lock order.ActionLock) {
	s.lock = lock
	s.acknowledger.SetActionLock(lock, s.config.ActionLockTTL)
}

// SetSyncMetrics sets the metrics recorder on the service and its writer and acknowledger
func (s *SyncService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
	s.writer.SetSyncMetrics(m)
	s.acknowledger.SetSyncMetrics(m)
}

// RunSync fetches the store's CREATED and IN_PROGRESS orders, writes them
// locally and acknowledges the CREATED ones.
//
// A store without credentials yields a NOT_CONNECTED report and no error.
// When the acknowledgment loop fails, the report is returned together with
// an error wrapping ErrAcknowledgeLoopFailed.
func (s *SyncService) RunSync(ctx context.Context, storeID uuid.UUID) (*integration.SyncReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "run",
		telemetry.WithAttribute(telemetry.SpanAttrStoreID, storeID.String()),
	)
	defer span.End()

	report := &integration.SyncReport{StoreID: storeID, StartedAt: time.Now()}
	defer func() {
		report.FinishedAt = time.Now()
		s.metrics.RecordSyncRun(ctx, storeID, report.Status.String(), report.Duration())
	}()

	release, err := s.acquire(ctx, storeID)
	if err != nil {
		report.Status = integration.SyncStatusFailed
		telemetry.RecordError(span, err)
		return report, err
	}
	defer release()

	var runErr error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("order_sync", map[string]string{
		telemetry.ProfilingLabelStoreID: storeID.String(),
	}), func(ctx context.Context) {
		runErr = s.run(ctx, storeID, report)
	})
	if runErr != nil {
		telemetry.RecordError(span, runErr)
		return report, runErr
	}

	telemetry.SetAttributes(span, "status", report.Status.String())
	telemetry.SetOK(span)
	return report, nil
}

func (s *SyncService) run(ctx context.Context, storeID uuid.UUID, report *integration.SyncReport) error {
	ctx, _ = logger.WithStoreID(ctx, s.logger, storeID.String())
	log := logger.L(ctx)

	creds, found, err := s.credentials.FindCredentials(ctx, storeID)
	if err != nil {
		report.Status = integration.SyncStatusFailed
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if !found {
		log.Info("Store is not connected, skipping sync")
		report.Status = integration.SyncStatusNotConnected
		return nil
	}

	fetched, err := s.platform.ListOrders(ctx, creds, integration.ListOrdersOptions{
		States: integration.SyncListStates,
	})
	if err != nil {
		report.Status = integration.SyncStatusFailed
		return fmt.Errorf("failed to fetch orders: %w", err)
	}
	if fetched == nil {
		fetched = []integration.RemoteOrder{}
	}
	report.Fetched = fetched
	report.Acknowledged = []integration.AckEntry{}
	s.metrics.RecordFetched(ctx, storeID, len(fetched))

	written := s.writer.Write(ctx, storeID, fetched)
	report.WriteFailures = written.Failed
	report.MissingItems = written.MissingItems

	pending := ackCandidates(fetched, written)
	log.Info("Orders written",
		zap.Int("fetched", len(fetched)),
		zap.Int("created", len(written.Created)),
		zap.Int("failed", len(written.Failed)),
		zap.Int("to_acknowledge", len(pending)),
	)

	if err := s.acknowledgeAll(ctx, storeID, creds, pending, report); err != nil {
		report.Status = integration.SyncStatusFailed
		return err
	}

	report.Status = integration.SyncStatusSuccess
	if len(report.WriteFailures) > 0 {
		report.Status = integration.SyncStatusPartial
	}
	log.Info("Sync run completed",
		zap.String("status", report.Status.String()),
		zap.Int("acknowledged", len(report.Acknowledged)),
		zap.Int("confirmed", report.Confirmed),
		zap.Int("deleted", report.Deleted),
	)
	return nil
}

// acknowledgeAll submits pending in batches taken from its tail. When a batch
// fails, every order not yet acknowledged, the failing batch included, is
// deleted locally so the next run fetches it again as a fresh CREATED order.
func (s *SyncService) acknowledgeAll(ctx context.Context, storeID uuid.UUID, creds integration.Credentials, pending []integration.AckEntry, report *integration.SyncReport) error {
	for len(pending) > 0 {
		start := max(0, len(pending)-integration.MaxAckBatchSize)
		batch := pending[start:]

		ack, err := s.acknowledger.Acknowledge(ctx, storeID, creds, batch)
		if err != nil {
			logger.L(ctx).Error("Acknowledgment batch failed, discarding pending orders",
				zap.Int("batch_size", len(batch)),
				zap.Int("pending", len(pending)),
				zap.Error(err),
			)
			deleted, delErr := s.deletePending(ctx, storeID, pending)
			report.Deleted += deleted
			if delErr != nil {
				return fmt.Errorf("%w: %w", ErrAcknowledgeLoopFailed, errors.Join(err, delErr))
			}
			return fmt.Errorf("%w: %w", ErrAcknowledgeLoopFailed, err)
		}

		report.Acknowledged = append(report.Acknowledged, batch...)
		report.Confirmed += ack.Confirmed
		report.Deleted += ack.Deleted
		pending = pending[:start]
	}
	return nil
}

func (s *SyncService) deletePending(ctx context.Context, storeID uuid.UUID, pending []integration.AckEntry) (int, error) {
	locks := newHeldOrderLocks(s.lock, s.config.ActionLockTTL)
	defer locks.releaseAll(ctx, s.logger)

	deleted := 0
	err := s.uow.Do(ctx, func(ctx context.Context, tx order.Repositories) error {
		deleted = 0
		for _, entry := range pending {
			o, found, err := tx.Orders.FindByExternalIDForUpdate(ctx, storeID, entry.ID)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			free, err := locks.acquire(ctx, o.ID)
			if err != nil {
				return err
			}
			if !free {
				logger.L(ctx).Warn("Order is under a lifecycle action, leaving it in place",
					zap.String("order_id", o.ID.String()),
					zap.String("external_order_id", entry.ID),
				)
				continue
			}
			if err := tx.Orders.Delete(ctx, o.ID); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending orders: %w", err)
	}
	s.metrics.RecordDeleted(ctx, storeID, deleted)
	return deleted, nil
}

func (s *SyncService) acquire(ctx context.Context, storeID uuid.UUID) (func(), error) {
	if s.lock == nil || s.config.LockTTL <= 0 {
		return func() {}, nil
	}
	key := order.StoreSyncLockKey(storeID)
	token, ok, err := s.lock.TryAcquire(ctx, key, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, ErrSyncInProgress
	}
	return func() {
		// The run context may already be cancelled; release must still reach the lock store
		if err := s.lock.Release(context.WithoutCancel(ctx), key, token); err != nil {
			logger.WithLogger(ctx, s.logger).Warn("Failed to release sync lock",
				zap.String("store_id", storeID.String()),
				zap.Error(err),
			)
		}
	}, nil
}

// ackCandidates returns the fetched CREATED orders that have a local record, in fetch order
func ackCandidates(fetched []integration.RemoteOrder, written WriteResult) []integration.AckEntry {
	entries := make([]integration.AckEntry, 0, len(fetched))
	for _, ro := range fetched {
		if ro.State() != integration.RemoteStateCreated {
			continue
		}
		ref, ok := written.Reference(ro.ID)
		if !ok {
			continue
		}
		entries = append(entries, integration.AckEntry{
			ID:                     ro.ID,
			MerchantOrderReference: ref.String(),
		})
	}
	return entries
}
