package persistence

import (
	"context"
	"errors"

	"github.com/fbsamples/cp-reference/internal/domain/catalog"
	"github.com/fbsamples/cp-reference/internal/domain/shared"
	"github.com/fbsamples/cp-reference/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements catalog.ProductLookup and catalog.InventorySink using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its retailer ID
func (r *GormProductRepository) FindByID(ctx context.Context, id string) (*catalog.Product, bool, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return model.ToDomain(), true, nil
}

// FindByIDs returns the products that exist among ids, keyed by ID
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*catalog.Product, error) {
	result := make(map[string]*catalog.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var productModels []models.ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&productModels).Error; err != nil {
		return nil, err
	}
	for i := range productModels {
		result[productModels[i].ID] = productModels[i].ToDomain()
	}
	return result, nil
}

// Save creates or updates a product, keeping the original creation time
func (r *GormProductRepository) Save(ctx context.Context, p *catalog.Product) error {
	var model models.ProductModel
	model.FromDomain(p)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"store_id", "title", "inventory", "amount", "currency", "updated_at"}),
		}).
		Create(&model).Error
}

// AdjustInventory adds delta to the product's inventory in a single UPDATE.
// Negative results are allowed; overselling is reported by the catalog, not blocked here.
func (r *GormProductRepository) AdjustInventory(ctx context.Context, productID string, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", productID).
		UpdateColumn("inventory", gorm.Expr("inventory + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Compile-time interface checks
var (
	_ catalog.ProductLookup = (*GormProductRepository)(nil)
	_ catalog.InventorySink = (*GormProductRepository)(nil)
)
