package persistence

import (
	"context"

	"github.com/fbsamples/cp-reference/internal/domain/order"
	"gorm.io/gorm"
)

// GormUnitOfWork implements order.UnitOfWork using GORM transactions.
// Repositories handed to fn share one transaction.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork.
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Do runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn succeeds, the transaction is committed.
func (u *GormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx order.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, TransactionalRepositories(tx))
	})
}

// TransactionalRepositories returns the order repositories bound to tx
func TransactionalRepositories(tx *gorm.DB) order.Repositories {
	return order.Repositories{
		Orders:    NewGormOrderRepository(tx),
		Customers: NewGormCustomerRepository(tx),
		Inventory: NewGormProductRepository(tx),
	}
}

// Ensure GormUnitOfWork implements UnitOfWork
var _ order.UnitOfWork = (*GormUnitOfWork)(nil)
