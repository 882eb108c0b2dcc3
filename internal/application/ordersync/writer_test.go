package ordersync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/infrastructure/logger"
	"github.com/fbsamples/cp-reference/internal/infrastructure/persistence/models"
)

func TestWriter_Write_CreatesOrderCustomerAndItems(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 10, "12.50")
	env.seedProduct(t, "sku-2", 4, "3.00")
	ctx := context.Background()

	ro := remoteOrder("ext-1", integration.RemoteStateCreated, remoteItem("sku-1", 3), remoteItem("sku-2", 2))
	result := env.newWriter().Write(ctx, env.storeID, []integration.RemoteOrder{ro})

	require.Empty(t, result.Failed)
	assert.Equal(t, []string{"ext-1"}, result.Created)
	assert.Empty(t, result.MissingItems)

	ref, ok := result.Reference("ext-1")
	require.True(t, ok)
	o, err := env.orders.FindByID(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, order.OrderStatusCreated, o.Status)
	assert.Equal(t, order.FulfillmentStateNone, o.FulfillmentState)
	assert.False(t, o.MissingItems)
	assert.Equal(t, 5, o.TotalQuantity())
	assert.Equal(t, ro.ShippingAddress.Serialize(), o.BillingAddress)

	c, err := env.customers.FindByID(ctx, o.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", c.FullName)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, "London", integration.ParseShippingAddress(c.Address).City)
}

func TestWriter_Write_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 10, "12.50")
	ctx := context.Background()
	writer := env.newWriter()

	batch := []integration.RemoteOrder{
		remoteOrder("ext-1", integration.RemoteStateCreated, remoteItem("sku-1", 1)),
		remoteOrder("ext-2", integration.RemoteStateCreated, remoteItem("sku-1", 2)),
	}

	first := writer.Write(ctx, env.storeID, batch)
	second := writer.Write(ctx, env.storeID, batch)

	assert.Len(t, first.Created, 2)
	assert.Empty(t, second.Created)
	assert.Empty(t, second.Failed)
	assert.Equal(t, first.References, second.References)
	assert.Equal(t, int64(2), env.countOrders(t))

	var items int64
	require.NoError(t, env.db.Model(&models.OrderItemModel{}).Count(&items).Error)
	assert.Equal(t, int64(2), items)

	var customers int64
	require.NoError(t, env.db.Model(&models.CustomerModel{}).Count(&customers).Error)
	assert.Equal(t, int64(1), customers)
}

func TestWriter_Write_RefetchLeavesAdvancedOrderUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		advance func(o *order.Order) error
	}{
		{"confirmed", func(o *order.Order) error { return o.Confirm() }},
		{"fulfilled", func(o *order.Order) error {
			if err := o.Confirm(); err != nil {
				return err
			}
			return o.MarkFulfilled()
		}},
		{"cancelled", func(o *order.Order) error { return o.MarkCancelled() }},
		{"refunded", func(o *order.Order) error {
			if err := o.MarkFulfilled(); err != nil {
				return err
			}
			return o.MarkRefunded()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.seedProduct(t, "sku-1", 10, "12.50")
			env.seedProduct(t, "sku-2", 10, "3.00")
			ctx := context.Background()

			o := env.writeOrder(t, remoteOrder("ext-1", integration.RemoteStateCreated, remoteItem("sku-1", 2), remoteItem("sku-2", 1)))
			require.NoError(t, tt.advance(o))
			require.NoError(t, env.orders.Save(ctx, o))
			before, err := env.orders.FindByID(ctx, o.ID)
			require.NoError(t, err)

			// The platform now reports the order as IN_PROGRESS with a different item list
			refetched := remoteOrder("ext-1", integration.RemoteStateInProgress, remoteItem("sku-1", 5), remoteItem("sku-gone", 1))
			result := env.newWriter().Write(ctx, env.storeID, []integration.RemoteOrder{refetched})

			require.Empty(t, result.Failed)
			assert.Empty(t, result.Created)
			assert.Empty(t, result.MissingItems)
			ref, ok := result.Reference("ext-1")
			require.True(t, ok)
			assert.Equal(t, o.ID, ref)

			after, err := env.orders.FindByID(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status)
			assert.Equal(t, before.FulfillmentState, after.FulfillmentState)
			assert.Equal(t, before.CancellationState, after.CancellationState)
			assert.Equal(t, before.RefundState, after.RefundState)
			assert.False(t, after.MissingItems)
			assert.Len(t, after.Items, 2)
			assert.Equal(t, 3, after.TotalQuantity())
			assert.Equal(t, int64(1), env.countOrders(t))
		})
	}
}

func TestWriter_Write_MissingProductIsIsolatedToItsOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 10, "12.50")
	ctx := context.Background()

	batch := []integration.RemoteOrder{
		remoteOrder("ext-unknown", integration.RemoteStateCreated, remoteItem("sku-1", 1), remoteItem("sku-gone", 1)),
		remoteOrder("ext-ok", integration.RemoteStateCreated, remoteItem("sku-1", 2)),
	}
	result := env.newWriter().Write(ctx, env.storeID, batch)

	require.Empty(t, result.Failed)
	assert.Equal(t, []string{"ext-unknown"}, result.MissingItems)
	assert.ElementsMatch(t, []string{"ext-unknown", "ext-ok"}, result.Created)

	flagged, err := env.orders.FindByID(ctx, result.References["ext-unknown"])
	require.NoError(t, err)
	assert.True(t, flagged.MissingItems)
	assert.Empty(t, flagged.Items)
	assert.Equal(t, "Issues with Order", flagged.DisplayStatus())

	clean, err := env.orders.FindByID(ctx, result.References["ext-ok"])
	require.NoError(t, err)
	assert.False(t, clean.MissingItems)
	assert.Equal(t, 2, clean.TotalQuantity())
}

func TestWriter_Write_BackfillsInProgressOrders(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 10, "12.50")

	o := env.writeOrder(t, remoteOrder("ext-1", integration.RemoteStateInProgress, remoteItem("sku-1", 1)))

	assert.Equal(t, order.OrderStatusInProgress, o.Status)
	assert.Len(t, o.Items, 1)
}

func TestWriter_Write_DuplicateProductLineKeepsFirst(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 10, "12.50")

	o := env.writeOrder(t, remoteOrder("ext-1", integration.RemoteStateCreated, remoteItem("sku-1", 2), remoteItem("sku-1", 5)))

	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestWriter_Write_FailureDoesNotStopBatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 10, "12.50")
	ctx := context.Background()

	anonymous := remoteOrder("ext-anon", integration.RemoteStateCreated, remoteItem("sku-1", 1))
	anonymous.BuyerDetails = integration.BuyerDetails{}

	batch := []integration.RemoteOrder{
		anonymous,
		remoteOrder("ext-ok", integration.RemoteStateCreated, remoteItem("sku-1", 1)),
	}
	result := env.newWriter().Write(ctx, env.storeID, batch)

	assert.Equal(t, []string{"ext-anon"}, result.Failed)
	assert.Equal(t, []string{"ext-ok"}, result.Created)
	_, ok := result.Reference("ext-anon")
	assert.False(t, ok)
	assert.Equal(t, int64(1), env.countOrders(t))
}

func TestWriter_Write_LogsCarryRequestAndStore(t *testing.T) {
	env := newTestEnv(t)
	core, logs := observer.New(zapcore.InfoLevel)
	writer := NewWriter(env.uow, env.products, zap.New(core))
	ctx, _ := logger.WithRequestID(context.Background(), zap.NewNop(), "req-7")

	writer.Write(ctx, env.storeID, []integration.RemoteOrder{
		remoteOrder("ext-1", integration.RemoteStateCreated, remoteItem("sku-gone", 1)),
	})

	entries := logs.FilterMessage("Order references products missing from the catalog, storing it without items").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, env.storeID.String(), fields["store_id"])
	assert.Equal(t, "ext-1", fields["external_order_id"])
}
