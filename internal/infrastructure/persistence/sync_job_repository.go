package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oms/backend/internal/domain/marketplace"
	"github.com/oms/backend/internal/infrastructure/persistence/models"
)

// GormSyncJobRepository implements marketplace.SyncJobRepository using GORM
type GormSyncJobRepository struct {
	db *gorm.DB
}

// NewGormSyncJobRepository creates a new GormSyncJobRepository
func NewGormSyncJobRepository(db *gorm.DB) *GormSyncJobRepository {
	return &GormSyncJobRepository{db: db}
}

// FindByID finds a sync job by its ID
func (r *GormSyncJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*marketplace.SyncJob, error) {
	var model models.SyncJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// TryStart persists the pending job and atomically flips it to running.
// The NOT EXISTS guard skips the flip when a committed running sibling is
// visible; the partial unique index idx_sync_jobs_one_running catches the
// race two concurrent flips can still win against each other under read
// committed. Either way the loser rolls back, taking its pending row with it.
func (r *GormSyncJobRepository) TryStart(ctx context.Context, job *marketplace.SyncJob) error {
	if job.Status != marketplace.JobStatusPending {
		return marketplace.ErrJobNotPending
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.SyncJobModelFromDomain(job)).Error; err != nil {
			return err
		}

		result := tx.Exec(`
			UPDATE sync_jobs
			SET status = ?, started_at = NOW(), updated_at = NOW()
			WHERE id = ? AND status = ?
			AND NOT EXISTS (
				SELECT 1 FROM sync_jobs running
				WHERE running.connection_id = ?
				AND running.job_type = ?
				AND running.status = ?
			)`,
			marketplace.JobStatusRunning,
			job.ID, marketplace.JobStatusPending,
			job.ConnectionID, job.JobType, marketplace.JobStatusRunning,
		)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return marketplace.ErrJobAlreadyRunning
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return marketplace.ErrJobAlreadyRunning
		}
		return job.Start()
	})
}

// Save creates or updates a sync job
func (r *GormSyncJobRepository) Save(ctx context.Context, job *marketplace.SyncJob) error {
	return r.db.WithContext(ctx).Save(models.SyncJobModelFromDomain(job)).Error
}

// List returns sync jobs matching the filter, newest first
func (r *GormSyncJobRepository) List(ctx context.Context, filter marketplace.JobFilter) ([]*marketplace.SyncJob, int64, error) {
	var total int64
	if err := r.applyFilterWithoutPagination(ctx, filter).
		Model(&models.SyncJobModel{}).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.SortBy, SyncJobSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.SortDir)

	var jobModels []models.SyncJobModel
	if err := r.applyFilter(ctx, filter).
		Order(sortField + " " + sortOrder).
		Find(&jobModels).Error; err != nil {
		return nil, 0, err
	}

	jobs := make([]*marketplace.SyncJob, len(jobModels))
	for i := range jobModels {
		jobs[i] = jobModels[i].ToDomain()
	}
	return jobs, total, nil
}

// FindRunning returns the running job for the pair, or ErrJobNotFound
func (r *GormSyncJobRepository) FindRunning(ctx context.Context, connectionID uuid.UUID, jobType marketplace.JobType) (*marketplace.SyncJob, error) {
	var model models.SyncJobModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ? AND job_type = ? AND status = ?", connectionID, jobType, marketplace.JobStatusRunning).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// applyFilter applies filter criteria including pagination
func (r *GormSyncJobRepository) applyFilter(ctx context.Context, filter marketplace.JobFilter) *gorm.DB {
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
func (r *GormSyncJobRepository) applyFilterWithoutPagination(ctx context.Context, filter marketplace.JobFilter) *gorm.DB {
	query := r.db.WithContext(ctx)

	if filter.ConnectionID != nil {
		query = query.Where("connection_id = ?", *filter.ConnectionID)
	}
	if filter.JobType != nil {
		query = query.Where("job_type = ?", *filter.JobType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("created_at <= ?", *filter.Until)
	}
	return query
}

// Ensure GormSyncJobRepository implements marketplace.SyncJobRepository
var _ marketplace.SyncJobRepository = (*GormSyncJobRepository)(nil)
