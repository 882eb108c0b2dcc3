package persistence

import (
	"context"
	"errors"

	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/domain/shared"
	"github.com/fbsamples/cp-reference/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomerRepository implements CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByKey finds the customer with exactly the given dedup key
func (r *GormCustomerRepository) FindByKey(ctx context.Context, key order.CustomerKey) (*order.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND full_name = ? AND email = ? AND address = ?", key.StoreID, key.FullName, key.Email, key.Address).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ResolveOrCreate returns the customer matching key, creating it when none exists.
// created is false when an existing row was returned, including one inserted
// concurrently by another sync run.
func (r *GormCustomerRepository) ResolveOrCreate(ctx context.Context, key order.CustomerKey) (*order.Customer, bool, error) {
	existing, err := r.FindByKey(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}

	customer, err := order.NewCustomer(key)
	if err != nil {
		return nil, false, err
	}

	var model models.CustomerModel
	model.FromDomain(customer)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 0 {
		existing, err := r.FindByKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return customer, true, nil
}

// Compile-time interface check
var _ order.CustomerRepository = (*GormCustomerRepository)(nil)
