package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oms/backend/internal/domain/marketplace"
	"github.com/oms/backend/internal/infrastructure/persistence/models"
)

// GormOrderRecordRepository implements marketplace.OrderRecordRepository using GORM
type GormOrderRecordRepository struct {
	db *gorm.DB
}

// NewGormOrderRecordRepository creates a new GormOrderRecordRepository
func NewGormOrderRecordRepository(db *gorm.DB) *GormOrderRecordRepository {
	return &GormOrderRecordRepository{db: db}
}

// Upsert lands a page of orders, converging on (connection_id, external_order_id)
// so replayed pages overwrite rather than duplicate
func (r *GormOrderRecordRepository) Upsert(ctx context.Context, records []*marketplace.OrderRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	recordModels := make([]models.OrderRecordModel, len(records))
	for i, rec := range records {
		recordModels[i].FromDomain(rec)
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"job_id", "order_number", "customer_name", "customer_email",
			"currency", "total_amount", "financial_status", "line_items",
			"placed_at", "updated_at",
		}),
	}).Create(&recordModels)
	if result.Error != nil {
		return 0, result.Error
	}
	return len(recordModels), nil
}

// FindByExternalID finds a landed order by its marketplace ID
func (r *GormOrderRecordRepository) FindByExternalID(ctx context.Context, connectionID uuid.UUID, externalOrderID string) (*marketplace.OrderRecord, error) {
	var model models.OrderRecordModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ? AND external_order_id = ?", connectionID, externalOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CountByJob counts the orders landed by one job
func (r *GormOrderRecordRepository) CountByJob(ctx context.Context, jobID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderRecordModel{}).
		Where("job_id = ?", jobID).
		Count(&count).Error
	return count, err
}

// Ensure GormOrderRecordRepository implements marketplace.OrderRecordRepository
var _ marketplace.OrderRecordRepository = (*GormOrderRecordRepository)(nil)

// ---------------------------------------------------------------------------
// Inventory
// ---------------------------------------------------------------------------

// GormInventoryRecordRepository implements marketplace.InventoryRecordRepository using GORM
type GormInventoryRecordRepository struct {
	db *gorm.DB
}

// NewGormInventoryRecordRepository creates a new GormInventoryRecordRepository
func NewGormInventoryRecordRepository(db *gorm.DB) *GormInventoryRecordRepository {
	return &GormInventoryRecordRepository{db: db}
}

// Upsert lands a page of stock snapshots, converging on
// (connection_id, external_sku, location_id)
func (r *GormInventoryRecordRepository) Upsert(ctx context.Context, records []*marketplace.InventoryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	recordModels := make([]models.InventoryRecordModel, len(records))
	for i, rec := range records {
		recordModels[i].FromDomain(rec)
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_sku"}, {Name: "location_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"job_id", "local_sku", "available", "captured_at", "updated_at",
		}),
	}).Create(&recordModels)
	if result.Error != nil {
		return 0, result.Error
	}
	return len(recordModels), nil
}

// FindBySKU returns all landed snapshots for a listing SKU
func (r *GormInventoryRecordRepository) FindBySKU(ctx context.Context, connectionID uuid.UUID, externalSKU string) ([]*marketplace.InventoryRecord, error) {
	var recordModels []models.InventoryRecordModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ? AND external_sku = ?", connectionID, externalSKU).
		Order("location_id ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}

	records := make([]*marketplace.InventoryRecord, len(recordModels))
	for i := range recordModels {
		records[i] = recordModels[i].ToDomain()
	}
	return records, nil
}

// Ensure GormInventoryRecordRepository implements marketplace.InventoryRecordRepository
var _ marketplace.InventoryRecordRepository = (*GormInventoryRecordRepository)(nil)

// ---------------------------------------------------------------------------
// Settlements
// ---------------------------------------------------------------------------

// GormSettlementRecordRepository implements marketplace.SettlementRecordRepository using GORM
type GormSettlementRecordRepository struct {
	db *gorm.DB
}

// NewGormSettlementRecordRepository creates a new GormSettlementRecordRepository
func NewGormSettlementRecordRepository(db *gorm.DB) *GormSettlementRecordRepository {
	return &GormSettlementRecordRepository{db: db}
}

// Upsert lands a page of payout lines, converging on
// (connection_id, external_settlement_id)
func (r *GormSettlementRecordRepository) Upsert(ctx context.Context, records []*marketplace.SettlementRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	recordModels := make([]models.SettlementRecordModel, len(records))
	for i, rec := range records {
		recordModels[i].FromDomain(rec)
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "connection_id"}, {Name: "external_settlement_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"job_id", "external_order_id", "currency", "gross_amount",
			"fee_amount", "net_amount", "settled_at", "updated_at",
		}),
	}).Create(&recordModels)
	if result.Error != nil {
		return 0, result.Error
	}
	return len(recordModels), nil
}

// FindByExternalID finds a landed payout line by its marketplace ID
func (r *GormSettlementRecordRepository) FindByExternalID(ctx context.Context, connectionID uuid.UUID, externalSettlementID string) (*marketplace.SettlementRecord, error) {
	var model models.SettlementRecordModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ? AND external_settlement_id = ?", connectionID, externalSettlementID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormSettlementRecordRepository implements marketplace.SettlementRecordRepository
var _ marketplace.SettlementRecordRepository = (*GormSettlementRecordRepository)(nil)
