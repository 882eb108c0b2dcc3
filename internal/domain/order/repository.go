package order

import (
	"context"
	"time"

	"github.com/fbsamples/cp-reference/internal/domain/catalog"
	"github.com/google/uuid"
)

// OrderRepository persists orders and their items.
// FindByID variants return shared.ErrNotFound; lookups returning a bool
// report expected absence without an error.
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindByIDForUpdate loads the order and row-locks it for the current transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByStoreCustomerExternalID(ctx context.Context, storeID, customerID uuid.UUID, externalOrderID string) (*Order, bool, error)
	FindByExternalIDForUpdate(ctx context.Context, storeID uuid.UUID, externalOrderID string) (*Order, bool, error)
	// ListByStore returns orders of a store, newest first, with items loaded
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]Order, error)
	Create(ctx context.Context, o *Order) error
	Save(ctx context.Context, o *Order) error
	// Delete removes the order together with all of its items
	Delete(ctx context.Context, id uuid.UUID) error
	// AddItemIfAbsent inserts the item unless the order already has one for the product
	AddItemIfAbsent(ctx context.Context, item *OrderItem) (bool, error)
}

// CustomerRepository persists buyers
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	// ResolveOrCreate returns the customer matching key exactly, creating it when none exists
	ResolveOrCreate(ctx context.Context, key CustomerKey) (*Customer, bool, error)
}

// Repositories groups the repositories bound to one transaction
type Repositories struct {
	Orders    OrderRepository
	Customers CustomerRepository
	Inventory catalog.InventorySink
}

// UnitOfWork runs fn inside a single transaction. Everything fn does through
// the given repositories is committed together or rolled back when fn fails.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}

// ActionLock serializes work on one key across processes
type ActionLock interface {
	// TryAcquire takes the lock without waiting. The returned token must be passed to Release.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// LockKey returns the action lock key of an order
func LockKey(orderID uuid.UUID) string {
	return "order-action:" + orderID.String()
}

// StoreSyncLockKey returns the lock key of a store's sync run
func StoreSyncLockKey(storeID uuid.UUID) string {
	return "store-sync:" + storeID.String()
}
