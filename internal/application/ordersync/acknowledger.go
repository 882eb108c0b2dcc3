package ordersync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/infrastructure/logger"
	"github.com/fbsamples/cp-reference/internal/infrastructure/telemetry"
)

// AckReport is the local effect of one acknowledgment batch
type AckReport struct {
	// Confirmed counts orders moved to CONFIRMED_ORDER
	Confirmed int
	// Deleted counts orders removed because the platform did not accept them
	Deleted int
	// Skipped counts outcomes for orders unknown locally, already completed or held by a lifecycle action
	Skipped int
}

// Acknowledger submits one batch of acknowledgments and applies the per-order outcomes
type Acknowledger struct {
	platform integration.CommercePlatform
	uow      order.UnitOfWork
	lock     order.ActionLock
	lockTTL  time.Duration
	logger   *zap.Logger
	metrics  *telemetry.SyncMetrics
}

// NewAcknowledger creates a new Acknowledger
func NewAcknowledger(platform integration.CommercePlatform, uow order.UnitOfWork, logger *zap.Logger) *Acknowledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acknowledger{
		platform: platform,
		uow:      uow,
		logger:   logger,
	}
}

// SetActionLock makes deletes skip orders a lifecycle action currently holds
func (a *Acknowledger) SetActionLock(lock order.ActionLock, ttl time.Duration) {
	a.lock = lock
	a.lockTTL = ttl
}

// SetSyncMetrics sets the metrics recorder
func (a *Acknowledger) SetSyncMetrics(m *telemetry.SyncMetrics) {
	a.metrics = m
}

// Acknowledge confirms receipt of at most integration.MaxAckBatchSize orders.
// Outcomes are applied in one transaction: IN_PROGRESS confirms the local
// order, any other state deletes it together with its items unless a
// lifecycle action holds the order's action lock.
func (a *Acknowledger) Acknowledge(ctx context.Context, storeID uuid.UUID, creds integration.Credentials, entries []integration.AckEntry) (AckReport, error) {
	if err := integration.ValidateAckBatch(entries); err != nil {
		return AckReport{}, err
	}
	if len(entries) == 0 {
		return AckReport{}, nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "acknowledge",
		telemetry.WithAttribute(telemetry.SpanAttrStoreID, storeID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrBatchSize, len(entries)),
	)
	defer span.End()
	ctx, _ = logger.WithStoreID(ctx, a.logger, storeID.String())

	outcomes, err := a.platform.AcknowledgeOrders(ctx, creds, entries)
	if err != nil {
		telemetry.RecordError(span, err)
		return AckReport{}, err
	}

	locks := newHeldOrderLocks(a.lock, a.lockTTL)
	defer locks.releaseAll(ctx, a.logger)

	var report AckReport
	err = a.uow.Do(ctx, func(ctx context.Context, tx order.Repositories) error {
		report = AckReport{}
		for _, outcome := range outcomes {
			if err := a.apply(ctx, tx, locks, storeID, outcome, &report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return AckReport{}, fmt.Errorf("failed to apply acknowledgment outcomes: %w", err)
	}

	a.metrics.RecordAcknowledged(ctx, storeID, report.Confirmed)
	a.metrics.RecordDeleted(ctx, storeID, report.Deleted)
	telemetry.SetOK(span)

	logger.WithLogger(ctx, a.logger).Info("Acknowledgment batch applied",
		zap.Int("batch_size", len(entries)),
		zap.Int("confirmed", report.Confirmed),
		zap.Int("deleted", report.Deleted),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (a *Acknowledger) apply(ctx context.Context, tx order.Repositories, locks *heldOrderLocks, storeID uuid.UUID, outcome integration.AckOutcome, report *AckReport) error {
	o, found, err := tx.Orders.FindByExternalIDForUpdate(ctx, storeID, outcome.ID)
	if err != nil {
		return err
	}
	log := logger.WithLogger(ctx, a.logger)
	if !found {
		log.Warn("Acknowledged order not found locally, skipping",
			zap.String("external_order_id", outcome.ID),
		)
		report.Skipped++
		return nil
	}

	if !outcome.Accepted() {
		free, err := locks.acquire(ctx, o.ID)
		if err != nil {
			return err
		}
		if !free {
			log.Warn("Order is under a lifecycle action, leaving it in place",
				zap.String("order_id", o.ID.String()),
				zap.String("external_order_id", outcome.ID),
			)
			report.Skipped++
			return nil
		}
		log.Warn("Platform did not accept acknowledgment, deleting order",
			zap.String("order_id", o.ID.String()),
			zap.String("external_order_id", outcome.ID),
			zap.String("state", outcome.State.String()),
		)
		if err := tx.Orders.Delete(ctx, o.ID); err != nil {
			return err
		}
		report.Deleted++
		return nil
	}

	if err := o.Confirm(); err != nil {
		log.Warn("Cannot confirm order, skipping",
			zap.String("order_id", o.ID.String()),
			zap.String("status", o.Status.String()),
			zap.Error(err),
		)
		report.Skipped++
		return nil
	}
	if err := tx.Orders.Save(ctx, o); err != nil {
		return err
	}
	report.Confirmed++
	return nil
}
