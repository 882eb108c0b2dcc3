package ordersync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fbsamples/cp-reference/internal/domain/catalog"
	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/infrastructure/cache"
	"github.com/fbsamples/cp-reference/internal/infrastructure/persistence"
	"github.com/fbsamples/cp-reference/internal/infrastructure/persistence/models"
)

// ---------------------------------------------------------------------------
// Mock commerce platform
// ---------------------------------------------------------------------------

// MockCommercePlatform is a mock implementation of integration.CommercePlatform
type MockCommercePlatform struct {
	mock.Mock
}

func (m *MockCommercePlatform) ListOrders(ctx context.Context, creds integration.Credentials, opts integration.ListOrdersOptions) ([]integration.RemoteOrder, error) {
	args := m.Called(ctx, creds, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.RemoteOrder), args.Error(1)
}

// AcknowledgeOrders accepts either a fixed outcome slice or a
// func([]integration.AckEntry) []integration.AckOutcome computing one per batch
func (m *MockCommercePlatform) AcknowledgeOrders(ctx context.Context, creds integration.Credentials, entries []integration.AckEntry) ([]integration.AckOutcome, error) {
	args := m.Called(ctx, creds, entries)
	if fn, ok := args.Get(0).(func([]integration.AckEntry) []integration.AckOutcome); ok {
		return fn(entries), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.AckOutcome), args.Error(1)
}

func (m *MockCommercePlatform) CreateShipment(ctx context.Context, creds integration.Credentials, req integration.ShipmentRequest) (*integration.ActionResponse, error) {
	args := m.Called(ctx, creds, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ActionResponse), args.Error(1)
}

func (m *MockCommercePlatform) CancelOrder(ctx context.Context, creds integration.Credentials, req integration.CancellationRequest) (*integration.ActionResponse, error) {
	args := m.Called(ctx, creds, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ActionResponse), args.Error(1)
}

func (m *MockCommercePlatform) RefundOrder(ctx context.Context, creds integration.Credentials, req integration.RefundRequest) (*integration.ActionResponse, error) {
	args := m.Called(ctx, creds, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ActionResponse), args.Error(1)
}

// acceptAll moves every acknowledged order to IN_PROGRESS
func acceptAll(entries []integration.AckEntry) []integration.AckOutcome {
	outcomes := make([]integration.AckOutcome, len(entries))
	for i, e := range entries {
		outcomes[i] = integration.AckOutcome{ID: e.ID, State: integration.RemoteStateInProgress}
	}
	return outcomes
}

var testCreds = integration.Credentials{ChannelID: "page-1", AccessToken: "token-1"}

// ---------------------------------------------------------------------------
// Test environment
// ---------------------------------------------------------------------------

type testEnv struct {
	db        *gorm.DB
	storeID   uuid.UUID
	uow       *persistence.GormUnitOfWork
	orders    *persistence.GormOrderRepository
	customers *persistence.GormCustomerRepository
	products  *persistence.GormProductRepository
	stores    *persistence.GormStoreRepository
	lock      *cache.InMemoryActionLock
	platform  *MockCommercePlatform
}

// newTestEnv opens an in-memory database holding one connected store
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.StoreModel{},
		&models.CustomerModel{},
		&models.ProductModel{},
		&models.OrderModel{},
		&models.OrderItemModel{},
	))

	env := &testEnv{
		db:        db,
		uow:       persistence.NewGormUnitOfWork(db),
		orders:    persistence.NewGormOrderRepository(db),
		customers: persistence.NewGormCustomerRepository(db),
		products:  persistence.NewGormProductRepository(db),
		stores:    persistence.NewGormStoreRepository(db),
		lock:      cache.NewInMemoryActionLock(),
		platform:  new(MockCommercePlatform),
	}
	env.storeID = env.seedStore(t, testCreds)
	return env
}

func (e *testEnv) seedStore(t *testing.T, creds integration.Credentials) uuid.UUID {
	now := time.Now()
	store := models.StoreModel{
		BaseModel:   models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:        "test store",
		ChannelID:   creds.ChannelID,
		AccessToken: creds.AccessToken,
	}
	require.NoError(t, e.db.Create(&store).Error)
	return store.ID
}

func (e *testEnv) seedProduct(t *testing.T, id string, inventory int, amount string) {
	require.NoError(t, e.products.Save(context.Background(), &catalog.Product{
		ID:        id,
		StoreID:   e.storeID,
		Title:     "Product " + id,
		Inventory: inventory,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "USD",
	}))
}

func (e *testEnv) inventory(t *testing.T, id string) int {
	p, ok, err := e.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "product %s not found", id)
	return p.Inventory
}

func (e *testEnv) countOrders(t *testing.T) int64 {
	var n int64
	require.NoError(t, e.db.Model(&models.OrderModel{}).Where("store_id = ?", e.storeID).Count(&n).Error)
	return n
}

func (e *testEnv) findByExternalID(t *testing.T, externalID string) (*order.Order, bool) {
	var o *order.Order
	var found bool
	err := e.uow.Do(context.Background(), func(ctx context.Context, tx order.Repositories) error {
		var err error
		o, found, err = tx.Orders.FindByExternalIDForUpdate(ctx, e.storeID, externalID)
		return err
	})
	require.NoError(t, err)
	return o, found
}

func (e *testEnv) newWriter() *Writer {
	return NewWriter(e.uow, e.products, zap.NewNop())
}

func (e *testEnv) newAcknowledger() *Acknowledger {
	a := NewAcknowledger(e.platform, e.uow, zap.NewNop())
	a.SetActionLock(e.lock, time.Minute)
	return a
}

func (e *testEnv) newSyncService() *SyncService {
	svc := NewSyncService(
		SyncServiceConfig{LockTTL: time.Minute},
		e.stores,
		e.platform,
		e.newWriter(),
		e.newAcknowledger(),
		e.uow,
		zap.NewNop(),
	)
	svc.SetActionLock(e.lock)
	return svc
}

func (e *testEnv) newLifecycleService() *LifecycleService {
	return NewLifecycleService(LifecycleConfig{}, e.orders, e.stores, e.platform, e.uow, e.lock, zap.NewNop())
}

// ---------------------------------------------------------------------------
// Remote order builders
// ---------------------------------------------------------------------------

func remoteOrder(id string, state integration.RemoteOrderState, items ...integration.RemoteItem) integration.RemoteOrder {
	return integration.RemoteOrder{
		ID:           id,
		OrderStatus:  integration.RemoteStatus{State: state},
		Items:        items,
		BuyerDetails: integration.BuyerDetails{Name: "Ada Lovelace", Email: "ada@example.com"},
		ShippingAddress: integration.ShippingAddress{
			Name:       "Ada Lovelace",
			Street1:    "12 St James's Square",
			City:       "London",
			PostalCode: "SW1Y 4JH",
			Country:    "GB",
		},
	}
}

func remoteItem(retailerID string, qty int) integration.RemoteItem {
	return integration.RemoteItem{ID: "item-" + retailerID, RetailerID: retailerID, Quantity: qty}
}

// createdOrders builds n CREATED remote orders, each with one unit of sku
func createdOrders(n int, sku string) []integration.RemoteOrder {
	orders := make([]integration.RemoteOrder, n)
	for i := range orders {
		orders[i] = remoteOrder(fmt.Sprintf("ext-%03d", i), integration.RemoteStateCreated, remoteItem(sku, 1))
	}
	return orders
}

// writeOrder stores o through the writer and returns the local order
func (e *testEnv) writeOrder(t *testing.T, ro integration.RemoteOrder) *order.Order {
	result := e.newWriter().Write(context.Background(), e.storeID, []integration.RemoteOrder{ro})
	require.Empty(t, result.Failed)
	ref, ok := result.Reference(ro.ID)
	require.True(t, ok)
	o, err := e.orders.FindByID(context.Background(), ref)
	require.NoError(t, err)
	return o
}
