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
	"github.com/fbsamples/cp-reference/internal/domain/shared"
	"github.com/fbsamples/cp-reference/internal/infrastructure/logger"
	"github.com/fbsamples/cp-reference/internal/infrastructure/telemetry"
)

// Lifecycle action names used in logs and metrics
const (
	ActionFulfill = "fulfill"
	ActionCancel  = "cancel"
	ActionRefund  = "refund"
)

// DefaultActionLockTTL is used when LifecycleConfig.LockTTL is not set
const DefaultActionLockTTL = 30 * time.Second

// FulfillRequest describes a shipment. Empty Items ships every item that still has a product.
type FulfillRequest struct {
	Carrier        string
	TrackingNumber string
	Items          []integration.ActionItem
}

// CancelRequest describes a cancellation
type CancelRequest struct {
	ReasonCode   order.CancellationReasonCode
	RestockItems bool
	Items        []integration.ActionItem
}

// RefundRequest describes a refund
type RefundRequest struct {
	ReasonCode order.RefundReasonCode
	Items      []integration.ActionItem
}

// Result is the outcome of a lifecycle action the platform answered.
// Success false means the platform declined and nothing changed locally.
type Result struct {
	Order   *order.Order
	Success bool
}

// Err returns integration.ErrRemoteRejected for a declined action
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return integration.ErrRemoteRejected
}

// LifecycleConfig holds the lifecycle action settings
type LifecycleConfig struct {
	LockTTL time.Duration
}

// LifecycleService applies fulfillment, cancellation and refund to orders:
// the platform is called first and the local order only moves when it succeeds
type LifecycleService struct {
	config      LifecycleConfig
	orders      order.OrderRepository
	credentials integration.CredentialLookup
	platform    integration.CommercePlatform
	uow         order.UnitOfWork
	lock        order.ActionLock
	logger      *zap.Logger
	metrics     *telemetry.SyncMetrics
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	config LifecycleConfig,
	orders order.OrderRepository,
	credentials integration.CredentialLookup,
	platform integration.CommercePlatform,
	uow order.UnitOfWork,
	lock order.ActionLock,
	logger *zap.Logger,
) *LifecycleService {
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultActionLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		config:      config,
		orders:      orders,
		credentials: credentials,
		platform:    platform,
		uow:         uow,
		lock:        lock,
		logger:      logger,
	}
}

// SetSyncMetrics sets the metrics recorder
func (s *LifecycleService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// ---------------------------------------------------------------------------
// By identity
// ---------------------------------------------------------------------------

// FulfillByID loads the order and fulfills it
func (s *LifecycleService) FulfillByID(ctx context.Context, orderID uuid.UUID, req FulfillRequest) (*Result, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.Fulfill(ctx, o, req)
}

// CancelByID loads the order and cancels it
func (s *LifecycleService) CancelByID(ctx context.Context, orderID uuid.UUID, req CancelRequest) (*Result, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.Cancel(ctx, o, req)
}

// RefundByID loads the order and refunds it
func (s *LifecycleService) RefundByID(ctx context.Context, orderID uuid.UUID, req RefundRequest) (*Result, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.Refund(ctx, o, req)
}

// ---------------------------------------------------------------------------
// By record
// ---------------------------------------------------------------------------

// Fulfill ships the order. On success every item with a product has its
// inventory decremented by the item quantity, whatever subset was shipped.
func (s *LifecycleService) Fulfill(ctx context.Context, o *order.Order, req FulfillRequest) (*Result, error) {
	if !o.CanFulfill() {
		return nil, invalidState(ActionFulfill, o)
	}
	items := req.Items
	if len(items) == 0 {
		items = actionItems(o)
	}

	return s.apply(ctx, ActionFulfill, o,
		func(ctx context.Context, creds integration.Credentials) (*integration.ActionResponse, error) {
			return s.platform.CreateShipment(ctx, creds, integration.ShipmentRequest{
				ExternalOrderID: o.ExternalOrderID,
				Items:           items,
				Carrier:         req.Carrier,
				TrackingNumber:  req.TrackingNumber,
			})
		},
		func(ctx context.Context, tx order.Repositories, locked *order.Order) error {
			for _, item := range locked.Items {
				if item.ProductID == nil {
					continue
				}
				err := tx.Inventory.AdjustInventory(ctx, *item.ProductID, -item.Quantity)
				if errors.Is(err, shared.ErrNotFound) {
					logger.WithLogger(ctx, s.logger).Warn("Product removed before fulfillment, inventory not adjusted",
						zap.String("order_id", locked.ID.String()),
						zap.String("product_id", *item.ProductID),
					)
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to adjust inventory: %w", err)
				}
			}
			return locked.MarkFulfilled()
		},
	)
}

// Cancel cancels the order. RestockItems is forwarded to the platform only;
// local inventory is left unchanged.
func (s *LifecycleService) Cancel(ctx context.Context, o *order.Order, req CancelRequest) (*Result, error) {
	if !o.CanCancel() {
		return nil, invalidState(ActionCancel, o)
	}

	return s.apply(ctx, ActionCancel, o,
		func(ctx context.Context, creds integration.Credentials) (*integration.ActionResponse, error) {
			return s.platform.CancelOrder(ctx, creds, integration.CancellationRequest{
				ExternalOrderID:   o.ExternalOrderID,
				ReasonCode:        string(req.ReasonCode),
				ReasonDescription: req.ReasonCode.Description(),
				RestockItems:      req.RestockItems,
				Items:             req.Items,
			})
		},
		func(_ context.Context, _ order.Repositories, locked *order.Order) error {
			return locked.MarkCancelled()
		},
	)
}

// Refund refunds the order
func (s *LifecycleService) Refund(ctx context.Context, o *order.Order, req RefundRequest) (*Result, error) {
	if !o.CanRefund() {
		return nil, invalidState(ActionRefund, o)
	}

	return s.apply(ctx, ActionRefund, o,
		func(ctx context.Context, creds integration.Credentials) (*integration.ActionResponse, error) {
			return s.platform.RefundOrder(ctx, creds, integration.RefundRequest{
				ExternalOrderID: o.ExternalOrderID,
				ReasonCode:      string(req.ReasonCode),
				Items:           req.Items,
			})
		},
		func(_ context.Context, _ order.Repositories, locked *order.Order) error {
			return locked.MarkRefunded()
		},
	)
}

type remoteCall func(ctx context.Context, creds integration.Credentials) (*integration.ActionResponse, error)

type localTransition func(ctx context.Context, tx order.Repositories, locked *order.Order) error

// apply holds the order's action lock across the remote call and the local transition
func (s *LifecycleService) apply(ctx context.Context, action string, o *order.Order, call remoteCall, transition localTransition) (result *Result, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_lifecycle", action,
		telemetry.WithAttribute(telemetry.SpanAttrStoreID, o.StoreID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, o.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrExternalOrderID, o.ExternalOrderID),
	)
	defer span.End()
	ctx, _ = logger.WithStoreID(ctx, s.logger, o.StoreID.String())

	log := logger.WithLogger(ctx, s.logger).With(
		zap.String("action", action),
		zap.String("order_id", o.ID.String()),
		zap.String("external_order_id", o.ExternalOrderID),
	)

	defer func() {
		switch {
		case err != nil:
			telemetry.RecordError(span, err)
			s.metrics.RecordLifecycleAction(ctx, action, telemetry.OutcomeFailed)
		case !result.Success:
			telemetry.SetAttributes(span, "success", false)
			s.metrics.RecordLifecycleAction(ctx, action, telemetry.OutcomeRejected)
		default:
			telemetry.SetOK(span)
			s.metrics.RecordLifecycleAction(ctx, action, telemetry.OutcomeSuccess)
		}
	}()

	key := order.LockKey(o.ID)
	token, ok, err := s.lock.TryAcquire(ctx, key, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire action lock: %w", err)
	}
	if !ok {
		return nil, shared.ErrConcurrencyConflict
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx), key, token); relErr != nil {
			log.Warn("Failed to release action lock", zap.Error(relErr))
		}
	}()

	creds, found, err := s.credentials.FindCredentials(ctx, o.StoreID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if !found {
		return nil, integration.ErrCredentialsNotFound
	}

	resp, err := call(ctx, creds)
	if err != nil {
		return nil, err
	}
	if resp == nil || !resp.Success {
		log.Warn("Commerce platform declined the action, order left unchanged")
		return &Result{Order: o, Success: false}, nil
	}

	var updated *order.Order
	err = s.uow.Do(ctx, func(ctx context.Context, tx order.Repositories) error {
		locked, err := tx.Orders.FindByIDForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := transition(ctx, tx, locked); err != nil {
			return err
		}
		if err := tx.Orders.Save(ctx, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		log.Error("Action succeeded remotely but the local transition failed", zap.Error(err))
		return nil, fmt.Errorf("failed to apply %s locally: %w", action, err)
	}

	log.Info("Order action applied", zap.String("status", updated.Status.String()))
	return &Result{Order: updated, Success: true}, nil
}

func invalidState(action string, o *order.Order) error {
	return shared.NewDomainError("INVALID_STATE", fmt.Sprintf(
		"Cannot %s order in %s status (fulfillment %s, cancellation %s, refund %s)",
		action, o.Status, o.FulfillmentState, o.CancellationState, o.RefundState,
	))
}

// actionItems returns every item that still references a product
func actionItems(o *order.Order) []integration.ActionItem {
	items := make([]integration.ActionItem, 0, len(o.Items))
	for _, item := range o.Items {
		if item.ProductID == nil {
			continue
		}
		items = append(items, integration.ActionItem{
			RetailerID: *item.ProductID,
			Quantity:   item.Quantity,
		})
	}
	return items
}
