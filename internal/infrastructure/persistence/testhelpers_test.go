package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fbsamples/cp-reference/internal/domain/catalog"
	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newMockDB opens a GORM handle on a sqlmock connection speaking the Postgres dialect
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

// newSQLiteDB opens an in-memory database with the order sync schema.
// A single connection keeps every statement on the same in-memory database.
func newSQLiteDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
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
	return db
}

func seedCustomer(t *testing.T, db *gorm.DB, storeID uuid.UUID, name string) *order.Customer {
	c, err := order.NewCustomer(order.CustomerKey{StoreID: storeID, FullName: name, Email: name + "@example.com"})
	require.NoError(t, err)
	var m models.CustomerModel
	m.FromDomain(c)
	require.NoError(t, db.Create(&m).Error)
	return c
}

func seedProduct(t *testing.T, db *gorm.DB, storeID uuid.UUID, id string, inventory int) {
	require.NoError(t, NewGormProductRepository(db).Save(t.Context(), &catalog.Product{
		ID:        id,
		StoreID:   storeID,
		Title:     "Product " + id,
		Inventory: inventory,
		Amount:    decimal.RequireFromString("12.50"),
		Currency:  "USD",
	}))
}

// newTestOrder builds an order with one item per product, all of quantity qty
func newTestOrder(t *testing.T, storeID, customerID uuid.UUID, externalID string, qty int, productIDs ...string) *order.Order {
	o, err := order.NewOrder(storeID, customerID, externalID)
	require.NoError(t, err)
	for _, pid := range productIDs {
		item, err := order.NewOrderItem(o.ID, pid, qty)
		require.NoError(t, err)
		o.Items = append(o.Items, *item)
	}
	return o
}

// shiftCreatedAt moves the creation time of o by d, keeping UpdatedAt in step
func shiftCreatedAt(o *order.Order, d time.Duration) {
	o.CreatedAt = o.CreatedAt.Add(d)
	o.UpdatedAt = o.CreatedAt
}
