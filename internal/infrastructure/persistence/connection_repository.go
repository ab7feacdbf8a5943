package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oms/backend/internal/domain/marketplace"
	"github.com/oms/backend/internal/infrastructure/persistence/models"
)

// GormConnectionRepository implements marketplace.ConnectionRepository using GORM
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

// FindByID finds a connection by its ID
func (r *GormConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*marketplace.Connection, error) {
	var model models.ConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns all connections eligible for syncing
func (r *GormConnectionRepository) FindActive(ctx context.Context) ([]*marketplace.Connection, error) {
	var connectionModels []models.ConnectionModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", marketplace.ConnectionStatusActive).
		Order("created_at ASC").
		Find(&connectionModels).Error; err != nil {
		return nil, err
	}

	connections := make([]*marketplace.Connection, len(connectionModels))
	for i := range connectionModels {
		connections[i] = connectionModels[i].ToDomain()
	}
	return connections, nil
}

// FindByCompany returns a company's connections regardless of status
func (r *GormConnectionRepository) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]*marketplace.Connection, error) {
	var connectionModels []models.ConnectionModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&connectionModels).Error; err != nil {
		return nil, err
	}

	connections := make([]*marketplace.Connection, len(connectionModels))
	for i := range connectionModels {
		connections[i] = connectionModels[i].ToDomain()
	}
	return connections, nil
}

// Save creates or updates a connection
func (r *GormConnectionRepository) Save(ctx context.Context, conn *marketplace.Connection) error {
	return r.db.WithContext(ctx).Save(models.ConnectionModelFromDomain(conn)).Error
}

// Ensure GormConnectionRepository implements marketplace.ConnectionRepository
var _ marketplace.ConnectionRepository = (*GormConnectionRepository)(nil)
