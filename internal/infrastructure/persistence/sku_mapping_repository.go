package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oms/backend/internal/domain/marketplace"
	"github.com/oms/backend/internal/infrastructure/persistence/models"
)

// GormSkuMappingRepository implements marketplace.SkuMappingRepository using GORM
type GormSkuMappingRepository struct {
	db *gorm.DB
}

// NewGormSkuMappingRepository creates a new GormSkuMappingRepository
func NewGormSkuMappingRepository(db *gorm.DB) *GormSkuMappingRepository {
	return &GormSkuMappingRepository{db: db}
}

// FindByExternalSKU finds the binding for a listing SKU on a connection
func (r *GormSkuMappingRepository) FindByExternalSKU(ctx context.Context, connectionID uuid.UUID, externalSKU string) (*marketplace.SkuMapping, error) {
	var model models.SkuMappingModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ? AND external_sku = ?", connectionID, externalSKU).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrSkuMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByConnection returns all bindings for a connection
func (r *GormSkuMappingRepository) FindByConnection(ctx context.Context, connectionID uuid.UUID) ([]*marketplace.SkuMapping, error) {
	var mappingModels []models.SkuMappingModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("external_sku ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]*marketplace.SkuMapping, len(mappingModels))
	for i := range mappingModels {
		mappings[i] = mappingModels[i].ToDomain()
	}
	return mappings, nil
}

// Save creates or updates a binding
func (r *GormSkuMappingRepository) Save(ctx context.Context, mapping *marketplace.SkuMapping) error {
	return r.db.WithContext(ctx).Save(models.SkuMappingModelFromDomain(mapping)).Error
}

// Ensure GormSkuMappingRepository implements marketplace.SkuMappingRepository
var _ marketplace.SkuMappingRepository = (*GormSkuMappingRepository)(nil)
