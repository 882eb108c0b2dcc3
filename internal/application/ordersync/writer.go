// Package ordersync drives the order sync pipeline of a store: fetching remote
// orders, writing them to the local ledger, acknowledging them back and
// applying fulfillment, cancellation and refund transitions.
package ordersync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/domain/catalog"
	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/infrastructure/logger"
	"github.com/fbsamples/cp-reference/internal/infrastructure/telemetry"
)

// WriteResult is the outcome of writing one batch of remote orders
type WriteResult struct {
	// References maps each remote order ID to the local order it is stored as,
	// whether the order was created by this write or already existed
	References map[string]uuid.UUID
	// Created lists remote order IDs inserted by this write
	Created []string
	// MissingItems lists remote order IDs stored without items because a product is unknown
	MissingItems []string
	// Failed lists remote order IDs that could not be written
	Failed []string
}

// Reference returns the merchant reference of a remote order
func (r WriteResult) Reference(remoteID string) (uuid.UUID, bool) {
	id, ok := r.References[remoteID]
	return id, ok
}

// Writer stores remote orders in the local ledger, one transaction per order
type Writer struct {
	uow      order.UnitOfWork
	products catalog.ProductLookup
	logger   *zap.Logger
	metrics  *telemetry.SyncMetrics
}

// NewWriter creates a new Writer
func NewWriter(uow order.UnitOfWork, products catalog.ProductLookup, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		uow:      uow,
		products: products,
		logger:   logger,
	}
}

// SetSyncMetrics sets the metrics recorder
func (w *Writer) SetSyncMetrics(m *telemetry.SyncMetrics) {
	w.metrics = m
}

// Write stores every order of the batch. A failing order is logged and
// recorded in the result; the remaining orders are still written.
func (w *Writer) Write(ctx context.Context, storeID uuid.UUID, orders []integration.RemoteOrder) WriteResult {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_sync", "write",
		telemetry.WithAttribute(telemetry.SpanAttrStoreID, storeID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrBatchSize, len(orders)),
	)
	defer span.End()
	ctx, _ = logger.WithStoreID(ctx, w.logger, storeID.String())
	log := logger.WithLogger(ctx, w.logger)

	result := WriteResult{References: make(map[string]uuid.UUID, len(orders))}
	var failures []error

	for i := range orders {
		ro := &orders[i]
		outcome, err := w.writeOne(ctx, storeID, ro)
		if err != nil {
			log.Error("Failed to write order",
				zap.String("external_order_id", ro.ID),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, ro.ID)
			failures = append(failures, fmt.Errorf("order %s: %w", ro.ID, err))
			continue
		}

		result.References[ro.ID] = outcome.localID
		if outcome.created {
			result.Created = append(result.Created, ro.ID)
		}
		if outcome.missingItems {
			result.MissingItems = append(result.MissingItems, ro.ID)
			w.metrics.RecordMissingItems(ctx, storeID)
		}
	}

	if len(failures) > 0 {
		telemetry.RecordError(span, errors.Join(failures...))
	} else {
		telemetry.SetOK(span)
	}
	w.metrics.RecordWritten(ctx, storeID, len(result.Created))
	return result
}

type writeOutcome struct {
	localID      uuid.UUID
	created      bool
	missingItems bool
}

func (w *Writer) writeOne(ctx context.Context, storeID uuid.UUID, ro *integration.RemoteOrder) (writeOutcome, error) {
	// Products are resolved before the transaction; the catalog is read-only here
	products, err := w.products.FindByIDs(ctx, retailerIDs(ro.Items))
	if err != nil {
		return writeOutcome{}, fmt.Errorf("failed to resolve products: %w", err)
	}

	log := logger.WithLogger(ctx, w.logger).With(zap.String("external_order_id", ro.ID))

	var outcome writeOutcome
	err = w.uow.Do(ctx, func(ctx context.Context, tx order.Repositories) error {
		address := ro.ShippingAddress.Serialize()
		customer, _, err := tx.Customers.ResolveOrCreate(ctx, order.CustomerKey{
			StoreID:  storeID,
			FullName: ro.BuyerDetails.Name,
			Email:    ro.BuyerDetails.Email,
			Address:  address,
		})
		if err != nil {
			return fmt.Errorf("failed to resolve customer: %w", err)
		}

		existing, found, err := tx.Orders.FindByStoreCustomerExternalID(ctx, storeID, customer.ID, ro.ID)
		if err != nil {
			return err
		}
		if found {
			log.Debug("Order already stored, leaving it unchanged",
				zap.String("order_id", existing.ID.String()),
				zap.String("status", existing.Status.String()),
			)
			outcome = writeOutcome{localID: existing.ID}
			return nil
		}

		o, err := order.NewOrder(storeID, customer.ID, ro.ID)
		if err != nil {
			return err
		}
		o.BillingAddress = address
		if ro.State() == integration.RemoteStateInProgress {
			log.Warn("Order already acknowledged remotely but missing locally, recording it as in progress")
			if err := o.MarkInProgress(); err != nil {
				return err
			}
		}

		unknown := unknownProducts(ro.Items, products)
		if len(unknown) > 0 {
			log.Warn("Order references products missing from the catalog, storing it without items",
				zap.Strings("unknown_products", unknown),
			)
			o.FlagMissingItems()
		}

		if err := tx.Orders.Create(ctx, o); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		outcome = writeOutcome{localID: o.ID, created: true, missingItems: o.MissingItems}
		if o.MissingItems {
			return nil
		}

		for _, ri := range ro.Items {
			item, err := order.NewOrderItem(o.ID, ri.RetailerID, ri.Quantity)
			if err != nil {
				return err
			}
			inserted, err := tx.Orders.AddItemIfAbsent(ctx, item)
			if err != nil {
				return fmt.Errorf("failed to add item: %w", err)
			}
			if !inserted {
				log.Info("Order already has an item for product, skipping",
					zap.String("order_id", o.ID.String()),
					zap.String("product_id", ri.RetailerID),
				)
			}
		}
		return nil
	})
	return outcome, err
}

func retailerIDs(items []integration.RemoteItem) []string {
	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.RetailerID] {
			seen[item.RetailerID] = true
			ids = append(ids, item.RetailerID)
		}
	}
	return ids
}

func unknownProducts(items []integration.RemoteItem, known map[string]*catalog.Product) []string {
	var unknown []string
	for _, item := range items {
		if _, ok := known[item.RetailerID]; !ok {
			unknown = append(unknown, item.RetailerID)
		}
	}
	return unknown
}
