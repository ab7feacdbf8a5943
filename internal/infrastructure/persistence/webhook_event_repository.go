package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/infrastructure/persistence/models"
)

// GormWebhookEventRepository implements carrier.WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Append writes a new log entry
func (r *GormWebhookEventRepository) Append(ctx context.Context, ev *carrier.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(models.WebhookEventModelFromDomain(ev)).Error
}

// FindByKey finds the most recent entry with the given idempotency key and a
// final outcome. Deferred entries do not count as seen: the event must be
// re-admitted so the retry loop can resolve it.
func (r *GormWebhookEventRepository) FindByKey(ctx context.Context, key string) (*carrier.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ? AND outcome <> ?", key, carrier.OutcomeDeferred).
		Order("received_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, carrier.ErrEventNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDeferredDue returns deferred entries whose retry time has passed
func (r *GormWebhookEventRepository) FindDeferredDue(ctx context.Context, now time.Time, limit int) ([]carrier.WebhookEvent, error) {
	var eventModels []models.WebhookEventModel
	query := r.db.WithContext(ctx).
		Where("outcome = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", carrier.OutcomeDeferred, now).
		Order("next_retry_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&eventModels).Error; err != nil {
		return nil, err
	}

	events := make([]carrier.WebhookEvent, len(eventModels))
	for i := range eventModels {
		events[i] = *eventModels[i].ToDomain()
	}
	return events, nil
}

// Update persists outcome finalization or retry scheduling on a deferred entry
func (r *GormWebhookEventRepository) Update(ctx context.Context, ev *carrier.WebhookEvent) error {
	result := r.db.WithContext(ctx).Save(models.WebhookEventModelFromDomain(ev))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return carrier.ErrEventNotFound
	}
	return nil
}

// List returns log entries matching the filter, newest first
func (r *GormWebhookEventRepository) List(ctx context.Context, filter carrier.EventFilter) ([]carrier.WebhookEvent, int64, error) {
	var total int64
	if err := r.applyFilterWithoutPagination(ctx, filter).
		Model(&models.WebhookEventModel{}).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.SortBy, WebhookEventSortFields, "received_at")
	sortOrder := ValidateSortOrder(filter.SortDir)

	var eventModels []models.WebhookEventModel
	if err := r.applyFilter(ctx, filter).
		Order(sortField + " " + sortOrder).
		Find(&eventModels).Error; err != nil {
		return nil, 0, err
	}

	events := make([]carrier.WebhookEvent, len(eventModels))
	for i := range eventModels {
		events[i] = *eventModels[i].ToDomain()
	}
	return events, total, nil
}

// applyFilter applies filter criteria including pagination
func (r *GormWebhookEventRepository) applyFilter(ctx context.Context, filter carrier.EventFilter) *gorm.DB {
	query := r.applyFilterWithoutPagination(ctx, filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return query.Offset((page - 1) * pageSize).Limit(pageSize)
}

// applyFilterWithoutPagination applies filter criteria except pagination
func (r *GormWebhookEventRepository) applyFilterWithoutPagination(ctx context.Context, filter carrier.EventFilter) *gorm.DB {
	query := r.db.WithContext(ctx)

	if filter.Carrier != nil {
		query = query.Where("carrier = ?", *filter.Carrier)
	}
	if filter.TransporterID != nil {
		query = query.Where("transporter_id = ?", *filter.TransporterID)
	}
	if filter.AWB != "" {
		query = query.Where("awb = ?", filter.AWB)
	}
	if filter.Outcome != nil {
		query = query.Where("outcome = ?", *filter.Outcome)
	}
	if filter.Since != nil {
		query = query.Where("received_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("received_at <= ?", *filter.Until)
	}
	return query
}

// Ensure GormWebhookEventRepository implements carrier.WebhookEventRepository
var _ carrier.WebhookEventRepository = (*GormWebhookEventRepository)(nil)
