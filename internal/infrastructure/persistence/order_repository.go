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

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by its ID, with items loaded
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate finds an order by ID and locks its row until the transaction ends
func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// FindByStoreCustomerExternalID finds the order a sync run already wrote for a buyer
func (r *GormOrderRepository) FindByStoreCustomerExternalID(ctx context.Context, storeID, customerID uuid.UUID, externalOrderID string) (*order.Order, bool, error) {
	o, err := r.findOne(ctx, r.db.WithContext(ctx).
		Where("store_id = ? AND customer_id = ? AND external_order_id = ?", storeID, customerID, externalOrderID))
	return found(o, err)
}

// FindByExternalIDForUpdate finds an order by its platform ID and locks its row
func (r *GormOrderRepository) FindByExternalIDForUpdate(ctx context.Context, storeID uuid.UUID, externalOrderID string) (*order.Order, bool, error) {
	o, err := r.findOne(ctx, r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND external_order_id = ?", storeID, externalOrderID))
	return found(o, err)
}

// ListByStore returns every order of a store, newest first, with items loaded
func (r *GormOrderRepository) ListByStore(ctx context.Context, storeID uuid.UUID) ([]order.Order, error) {
	var orderModels []models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at DESC").
		Find(&orderModels).Error; err != nil {
		return nil, err
	}
	if len(orderModels) == 0 {
		return []order.Order{}, nil
	}

	ids := make([]uuid.UUID, len(orderModels))
	for i := range orderModels {
		ids[i] = orderModels[i].ID
	}
	itemsByOrder, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	orders := make([]order.Order, len(orderModels))
	for i := range orderModels {
		o := orderModels[i].ToDomain()
		o.Items = itemsByOrder[o.ID]
		orders[i] = *o
	}
	return orders, nil
}

// Create inserts a new order together with its items
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	if err := r.db.WithContext(ctx).Create(models.OrderModelFromDomain(o)).Error; err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return nil
	}
	itemModels := make([]models.OrderItemModel, len(o.Items))
	for i := range o.Items {
		itemModels[i].FromDomain(&o.Items[i])
	}
	return r.db.WithContext(ctx).Create(&itemModels).Error
}

// Save updates the order row. Items are never rewritten by Save.
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", o.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(models.OrderModelFromDomain(o))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the order and all of its items
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.OrderModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// AddItemIfAbsent inserts the item unless the order already has a line for the product.
// It reports whether a row was inserted.
func (r *GormOrderRepository) AddItemIfAbsent(ctx context.Context, item *order.OrderItem) (bool, error) {
	var model models.OrderItemModel
	model.FromDomain(item)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormOrderRepository) findOne(ctx context.Context, query *gorm.DB) (*order.Order, error) {
	var model models.OrderModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	itemsByOrder, err := r.loadItems(ctx, []uuid.UUID{model.ID})
	if err != nil {
		return nil, err
	}
	o := model.ToDomain()
	o.Items = itemsByOrder[o.ID]
	return o, nil
}

// loadItems returns the items of the given orders grouped by order, oldest first
func (r *GormOrderRepository) loadItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]order.OrderItem, error) {
	var itemModels []models.OrderItemModel
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("created_at ASC").
		Find(&itemModels).Error; err != nil {
		return nil, err
	}
	grouped := make(map[uuid.UUID][]order.OrderItem, len(orderIDs))
	for i := range itemModels {
		grouped[itemModels[i].OrderID] = append(grouped[itemModels[i].OrderID], itemModels[i].ToDomain())
	}
	return grouped, nil
}

// found turns a shared.ErrNotFound into a (nil, false, nil) lookup result
func found[T any](v *T, err error) (*T, bool, error) {
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Compile-time interface check
var _ order.OrderRepository = (*GormOrderRepository)(nil)
