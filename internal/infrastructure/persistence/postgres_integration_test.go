//go:build integration

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/infrastructure/migration"
	"github.com/fbsamples/cp-reference/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newPostgresDB starts a disposable Postgres and applies the embedded migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("cp_reference_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.NotZero(t, version)

	return db
}

func seedStore(t *testing.T, db *gorm.DB) uuid.UUID {
	now := time.Now()
	store := models.StoreModel{
		BaseModel:   models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:        "integration store",
		ChannelID:   "page-1",
		AccessToken: "token-1",
	}
	require.NoError(t, db.Create(&store).Error)
	return store.ID
}

func TestPostgres_OrderLifecycleAgainstMigratedSchema(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()

	storeID := seedStore(t, db)
	seedProduct(t, db, storeID, "sku-1", 10)
	seedProduct(t, db, storeID, "sku-2", 2)

	customers := NewGormCustomerRepository(db)
	customer, created, err := customers.ResolveOrCreate(ctx, order.CustomerKey{StoreID: storeID, FullName: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	require.True(t, created)

	orders := NewGormOrderRepository(db)
	o := newTestOrder(t, storeID, customer.ID, "ext-1", 3, "sku-1", "sku-2")
	require.NoError(t, orders.Create(ctx, o))

	err = NewGormUnitOfWork(db).Do(ctx, func(ctx context.Context, tx order.Repositories) error {
		locked, err := tx.Orders.FindByIDForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		for _, item := range locked.Items {
			if err := tx.Inventory.AdjustInventory(ctx, *item.ProductID, -item.Quantity); err != nil {
				return err
			}
		}
		if err := locked.MarkFulfilled(); err != nil {
			return err
		}
		return tx.Orders.Save(ctx, locked)
	})
	require.NoError(t, err)

	products := NewGormProductRepository(db)
	p1, _, err := products.FindByID(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 7, p1.Inventory)
	p2, _, err := products.FindByID(ctx, "sku-2")
	require.NoError(t, err)
	assert.Equal(t, -1, p2.Inventory)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderStatusCompleted, got.Status)
	assert.Equal(t, order.FulfillmentStateFully, got.FulfillmentState)
}

func TestPostgres_DeletedProductDetachesOrderItems(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()

	storeID := seedStore(t, db)
	seedProduct(t, db, storeID, "sku-1", 5)
	customer, _, err := NewGormCustomerRepository(db).ResolveOrCreate(ctx, order.CustomerKey{StoreID: storeID, FullName: "Ada"})
	require.NoError(t, err)

	orders := NewGormOrderRepository(db)
	o := newTestOrder(t, storeID, customer.ID, "ext-1", 1, "sku-1")
	require.NoError(t, orders.Create(ctx, o))

	require.NoError(t, db.Exec("DELETE FROM products WHERE id = ?", "sku-1").Error)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Nil(t, got.Items[0].ProductID)
}

func TestPostgres_ConcurrentCustomerResolutionConverges(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()
	storeID := seedStore(t, db)
	repo := NewGormCustomerRepository(db)
	key := order.CustomerKey{StoreID: storeID, FullName: "Ada", Email: "ada@example.com", Address: `{"city":"London"}`}

	const workers = 5
	ids := make(chan uuid.UUID, workers)
	errs := make(chan error, workers)
	for range workers {
		go func() {
			c, _, err := repo.ResolveOrCreate(ctx, key)
			if err != nil {
				errs <- err
				return
			}
			ids <- c.ID
		}()
	}

	seen := map[uuid.UUID]bool{}
	for range workers {
		select {
		case err := <-errs:
			t.Fatalf("ResolveOrCreate failed: %v", err)
		case id := <-ids:
			seen[id] = true
		}
	}
	assert.Len(t, seen, 1)
}

func TestPostgres_MigrationsRollBack(t *testing.T) {
	db := newPostgresDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	m, err := migration.New(sqlDB, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, m.Steps(-1))
	assert.False(t, db.Migrator().HasTable("orders"))
	assert.True(t, db.Migrator().HasTable("products"))

	require.NoError(t, m.Up())
	assert.True(t, db.Migrator().HasTable("order_items"))
}
