package persistence

import (
	"context"
	"errors"

	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStoreRepository implements integration.CredentialLookup over the stores table
type GormStoreRepository struct {
	db *gorm.DB
}

// NewGormStoreRepository creates a new GormStoreRepository
func NewGormStoreRepository(db *gorm.DB) *GormStoreRepository {
	return &GormStoreRepository{db: db}
}

// FindCredentials returns the commerce credentials of a store.
// Unknown stores and stores missing a channel or token are reported as not found.
func (r *GormStoreRepository) FindCredentials(ctx context.Context, storeID uuid.UUID) (integration.Credentials, bool, error) {
	var model models.StoreModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", storeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return integration.Credentials{}, false, nil
		}
		return integration.Credentials{}, false, err
	}
	if !model.Connected() {
		return integration.Credentials{}, false, nil
	}
	return model.Credentials(), true, nil
}

// ListConnectedStores returns the IDs of stores with a channel and token, oldest first
func (r *GormStoreRepository) ListConnectedStores(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.StoreModel{}).
		Where("channel_id <> '' AND access_token <> ''").
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Compile-time interface check
var _ integration.CredentialLookup = (*GormStoreRepository)(nil)
