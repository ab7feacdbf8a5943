package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
	"github.com/oms/backend/internal/infrastructure/persistence/models"
)

// GormDeliveryRepository implements delivery.Repository using GORM
type GormDeliveryRepository struct {
	db *gorm.DB
}

// NewGormDeliveryRepository creates a new GormDeliveryRepository
func NewGormDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

// FindByID finds a delivery with its status history
func (r *GormDeliveryRepository) FindByID(ctx context.Context, id uuid.UUID) (*delivery.Delivery, error) {
	var model models.DeliveryModel
	if err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("recorded_at ASC")
		}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, delivery.ErrDeliveryNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTransporterAndAWB resolves a delivery from tracking identifiers
func (r *GormDeliveryRepository) FindByTransporterAndAWB(ctx context.Context, transporterID uuid.UUID, awb string) (*delivery.Delivery, error) {
	var model models.DeliveryModel
	if err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("recorded_at ASC")
		}).
		Where("transporter_id = ? AND awb = ?", transporterID, awb).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, delivery.ErrDeliveryNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpenByTransporter returns deliveries still expecting tracking updates
func (r *GormDeliveryRepository) FindOpenByTransporter(ctx context.Context, transporterID uuid.UUID, limit int) ([]delivery.Delivery, error) {
	openStatuses := []delivery.DeliveryStatus{
		delivery.StatusCreated,
		delivery.StatusPickedUp,
		delivery.StatusInTransit,
		delivery.StatusOutForDelivery,
		delivery.StatusRTOInitiated,
	}

	var deliveryModels []models.DeliveryModel
	query := r.db.WithContext(ctx).
		Where("transporter_id = ? AND status IN ? AND awb <> ''", transporterID, openStatuses).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&deliveryModels).Error; err != nil {
		return nil, err
	}

	deliveries := make([]delivery.Delivery, len(deliveryModels))
	for i := range deliveryModels {
		deliveries[i] = *deliveryModels[i].ToDomain()
	}
	return deliveries, nil
}

// Save creates or updates a delivery and appends any new history entries.
// History rows are insert-only.
func (r *GormDeliveryRepository) Save(ctx context.Context, d *delivery.Delivery) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveDelivery(tx, d)
	})
}

// saveDelivery persists the delivery row and its history inside tx
func saveDelivery(tx *gorm.DB, d *delivery.Delivery) error {
	model := models.DeliveryModelFromDomain(d)
	history := model.History
	model.History = nil

	if err := tx.Save(model).Error; err != nil {
		return err
	}
	if len(history) > 0 {
		// Existing entries are left untouched; the log only grows
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&history).Error; err != nil {
			return err
		}
	}
	return nil
}

// Ensure GormDeliveryRepository implements delivery.Repository
var _ delivery.Repository = (*GormDeliveryRepository)(nil)

// ---------------------------------------------------------------------------
// Transactional applier
// ---------------------------------------------------------------------------

// GormTransactionalApplier persists a delivery update and its webhook event
// log entry in one transaction.
type GormTransactionalApplier struct {
	db *gorm.DB
}

// NewGormTransactionalApplier creates a new GormTransactionalApplier
func NewGormTransactionalApplier(db *gorm.DB) *GormTransactionalApplier {
	return &GormTransactionalApplier{db: db}
}

// ApplyAndLog writes the delivery and the event entry atomically. The event
// is upserted so finalizing a previously deferred entry reuses its row.
// When another replica already holds the APPLIED slot for the event's key,
// the partial unique index rejects the write and the whole transaction rolls
// back; the caller gets carrier.ErrDuplicateEvent and the delivery update is
// discarded along with it.
func (a *GormTransactionalApplier) ApplyAndLog(ctx context.Context, d *delivery.Delivery, ev *carrier.WebhookEvent) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveDelivery(tx, d); err != nil {
			return err
		}
		return tx.Save(models.WebhookEventModelFromDomain(ev)).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return carrier.ErrDuplicateEvent
	}
	return err
}

// ---------------------------------------------------------------------------
// Transporters
// ---------------------------------------------------------------------------

// GormTransporterRepository implements delivery.TransporterRepository using GORM
type GormTransporterRepository struct {
	db *gorm.DB
}

// NewGormTransporterRepository creates a new GormTransporterRepository
func NewGormTransporterRepository(db *gorm.DB) *GormTransporterRepository {
	return &GormTransporterRepository{db: db}
}

// FindByID finds a transporter by its ID
func (r *GormTransporterRepository) FindByID(ctx context.Context, id uuid.UUID) (*delivery.Transporter, error) {
	var model models.TransporterModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, delivery.ErrTransporterNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindEnabled returns all enabled transporter accounts
func (r *GormTransporterRepository) FindEnabled(ctx context.Context) ([]delivery.Transporter, error) {
	var transporterModels []models.TransporterModel
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("created_at ASC").
		Find(&transporterModels).Error; err != nil {
		return nil, err
	}

	transporters := make([]delivery.Transporter, len(transporterModels))
	for i := range transporterModels {
		transporters[i] = *transporterModels[i].ToDomain()
	}
	return transporters, nil
}

// FindEnabledByCompany returns a company's enabled transporter accounts
func (r *GormTransporterRepository) FindEnabledByCompany(ctx context.Context, companyID uuid.UUID) ([]delivery.Transporter, error) {
	var transporterModels []models.TransporterModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND enabled = ?", companyID, true).
		Order("created_at ASC").
		Find(&transporterModels).Error; err != nil {
		return nil, err
	}

	transporters := make([]delivery.Transporter, len(transporterModels))
	for i := range transporterModels {
		transporters[i] = *transporterModels[i].ToDomain()
	}
	return transporters, nil
}

// Save creates or updates a transporter
func (r *GormTransporterRepository) Save(ctx context.Context, t *delivery.Transporter) error {
	return r.db.WithContext(ctx).Save(models.TransporterModelFromDomain(t)).Error
}

// Ensure GormTransporterRepository implements delivery.TransporterRepository
var _ delivery.TransporterRepository = (*GormTransporterRepository)(nil)
