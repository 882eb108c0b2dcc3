package ordersync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/domain/order"
)

var syncListOptions = integration.ListOrdersOptions{States: integration.SyncListStates}

func TestSyncService_RunSync_NotConnected(t *testing.T) {
	env := newTestEnv(t)
	storeID := env.seedStore(t, integration.Credentials{})

	report, err := env.newSyncService().RunSync(context.Background(), storeID)

	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusNotConnected, report.Status)
	assert.Nil(t, report.Fetched)
	assert.Nil(t, report.Acknowledged)
	env.platform.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncService_RunSync_WritesAndAcknowledgesCreatedOrders(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 10, "12.50")
	ctx := context.Background()

	fetched := []integration.RemoteOrder{
		remoteOrder("ext-1", integration.RemoteStateCreated, remoteItem("sku-1", 1)),
		remoteOrder("ext-2", integration.RemoteStateInProgress, remoteItem("sku-1", 2)),
		remoteOrder("ext-3", integration.RemoteStateCreated, remoteItem("sku-1", 3)),
	}
	env.platform.On("ListOrders", mock.Anything, testCreds, syncListOptions).Return(fetched, nil)
	env.platform.On("AcknowledgeOrders", mock.Anything, testCreds, mock.Anything).Return(acceptAll, nil)

	report, err := env.newSyncService().RunSync(ctx, env.storeID)

	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusSuccess, report.Status)
	assert.Equal(t, fetched, report.Fetched)
	require.Len(t, report.Acknowledged, 2)
	assert.Equal(t, "ext-1", report.Acknowledged[0].ID)
	assert.Equal(t, "ext-3", report.Acknowledged[1].ID)
	assert.Equal(t, 2, report.Confirmed)
	assert.Zero(t, report.Deleted)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	for _, entry := range report.Acknowledged {
		o, found := env.findByExternalID(t, entry.ID)
		require.True(t, found)
		assert.Equal(t, o.ID.String(), entry.MerchantOrderReference)
		assert.Equal(t, order.OrderStatusConfirmed, o.Status)
	}
	backfilled, found := env.findByExternalID(t, "ext-2")
	require.True(t, found)
	assert.Equal(t, order.OrderStatusInProgress, backfilled.Status)
	env.platform.AssertExpectations(t)
}

func TestSyncService_RunSync_ChunksFromTheTail(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 1000, "1.00")

	fetched := createdOrders(250, "sku-1")
	env.platform.On("ListOrders", mock.Anything, testCreds, syncListOptions).Return(fetched, nil)
	env.platform.On("AcknowledgeOrders", mock.Anything, testCreds, mock.Anything).Return(acceptAll, nil)

	report, err := env.newSyncService().RunSync(context.Background(), env.storeID)

	require.NoError(t, err)
	assert.Equal(t, 250, report.Confirmed)
	assert.Len(t, report.Acknowledged, 250)

	var batches [][]integration.AckEntry
	for _, call := range env.platform.Calls {
		if call.Method == "AcknowledgeOrders" {
			batches = append(batches, call.Arguments.Get(2).([]integration.AckEntry))
		}
	}
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 100)
	assert.Equal(t, "ext-150", batches[0][0].ID)
	assert.Equal(t, "ext-249", batches[0][99].ID)
	assert.Len(t, batches[1], 100)
	assert.Equal(t, "ext-050", batches[1][0].ID)
	assert.Len(t, batches[2], 50)
	assert.Equal(t, "ext-000", batches[2][0].ID)
}

func TestSyncService_RunSync_AckFailureDeletesPendingOrders(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 1000, "1.00")

	fetched := createdOrders(250, "sku-1")
	env.platform.On("ListOrders", mock.Anything, testCreds, syncListOptions).Return(fetched, nil)
	env.platform.On("AcknowledgeOrders", mock.Anything, testCreds, mock.Anything).Return(acceptAll, nil).Once()
	env.platform.On("AcknowledgeOrders", mock.Anything, testCreds, mock.Anything).
		Return(nil, fmt.Errorf("%w: status 500", integration.ErrRemoteUnavailable)).Once()

	report, err := env.newSyncService().RunSync(context.Background(), env.storeID)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcknowledgeLoopFailed)
	assert.ErrorIs(t, err, integration.ErrRemoteUnavailable)
	assert.Equal(t, integration.SyncStatusFailed, report.Status)
	assert.Len(t, report.Acknowledged, 100)
	assert.Equal(t, 100, report.Confirmed)
	assert.Equal(t, 150, report.Deleted)

	assert.Equal(t, int64(100), env.countOrders(t))
	for _, id := range []string{"ext-150", "ext-249"} {
		o, found := env.findByExternalID(t, id)
		require.True(t, found, id)
		assert.Equal(t, order.OrderStatusConfirmed, o.Status)
	}
	for _, id := range []string{"ext-000", "ext-149"} {
		_, found := env.findByExternalID(t, id)
		assert.False(t, found, id)
	}
}

func TestSyncService_RunSync_AckFailureKeepsOrderUnderLifecycleAction(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 1000, "1.00")
	ctx := context.Background()

	fetched := createdOrders(3, "sku-1")
	env.platform.On("ListOrders", mock.Anything, testCreds, syncListOptions).Return(fetched, nil)
	env.platform.On("AcknowledgeOrders", mock.Anything, testCreds, mock.Anything).
		Run(func(mock.Arguments) {
			o, found := env.findByExternalID(t, "ext-001")
			require.True(t, found)
			_, ok, err := env.lock.TryAcquire(ctx, order.LockKey(o.ID), time.Minute)
			require.NoError(t, err)
			require.True(t, ok)
		}).
		Return(nil, fmt.Errorf("%w: status 500", integration.ErrRemoteUnavailable)).Once()

	report, err := env.newSyncService().RunSync(ctx, env.storeID)

	assert.ErrorIs(t, err, ErrAcknowledgeLoopFailed)
	assert.Equal(t, 2, report.Deleted)

	o, found := env.findByExternalID(t, "ext-001")
	require.True(t, found, "order under a lifecycle action is not deleted")
	assert.Equal(t, order.OrderStatusCreated, o.Status)
	for _, id := range []string{"ext-000", "ext-002"} {
		_, found := env.findByExternalID(t, id)
		assert.False(t, found, id)
	}
	assert.Equal(t, 1, env.lock.Size(), "store and delete locks are released")
}

func TestSyncService_RunSync_WriteFailureIsPartial(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "sku-1", 10, "12.50")

	anonymous := remoteOrder("ext-anon", integration.RemoteStateCreated, remoteItem("sku-1", 1))
	anonymous.BuyerDetails = integration.BuyerDetails{}
	fetched := []integration.RemoteOrder{
		anonymous,
		remoteOrder("ext-ok", integration.RemoteStateCreated, remoteItem("sku-1", 1)),
	}
	env.platform.On("ListOrders", mock.Anything, testCreds, syncListOptions).Return(fetched, nil)
	env.platform.On("AcknowledgeOrders", mock.Anything, testCreds, mock.Anything).Return(acceptAll, nil)

	report, err := env.newSyncService().RunSync(context.Background(), env.storeID)

	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusPartial, report.Status)
	assert.Equal(t, []string{"ext-anon"}, report.WriteFailures)
	require.Len(t, report.Acknowledged, 1)
	assert.Equal(t, "ext-ok", report.Acknowledged[0].ID)
}

func TestSyncService_RunSync_FetchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.platform.On("ListOrders", mock.Anything, testCreds, syncListOptions).
		Return(nil, fmt.Errorf("%w: dial tcp: timeout", integration.ErrRemoteUnavailable))

	report, err := env.newSyncService().RunSync(context.Background(), env.storeID)

	assert.ErrorIs(t, err, integration.ErrRemoteUnavailable)
	assert.Equal(t, integration.SyncStatusFailed, report.Status)
	env.platform.AssertNotCalled(t, "AcknowledgeOrders", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncService_RunSync_EmptyListing(t *testing.T) {
	env := newTestEnv(t)
	env.platform.On("ListOrders", mock.Anything, testCreds, syncListOptions).Return([]integration.RemoteOrder{}, nil)

	report, err := env.newSyncService().RunSync(context.Background(), env.storeID)

	require.NoError(t, err)
	assert.Equal(t, integration.SyncStatusSuccess, report.Status)
	assert.NotNil(t, report.Fetched)
	assert.Empty(t, report.Fetched)
	assert.NotNil(t, report.Acknowledged)
	assert.Empty(t, report.Acknowledged)
}

func TestSyncService_RunSync_RejectsConcurrentRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token, ok, err := env.lock.TryAcquire(ctx, order.StoreSyncLockKey(env.storeID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.newSyncService().RunSync(ctx, env.storeID)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	env.platform.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, env.lock.Release(ctx, order.StoreSyncLockKey(env.storeID), token))
	env.platform.On("ListOrders", mock.Anything, testCreds, syncListOptions).Return([]integration.RemoteOrder{}, nil)

	_, err = env.newSyncService().RunSync(ctx, env.storeID)
	assert.NoError(t, err)
	assert.Zero(t, env.lock.Size())
}
