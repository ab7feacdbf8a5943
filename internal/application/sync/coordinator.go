package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/marketplace"
	"github.com/oms/backend/internal/infrastructure/telemetry"
)

// CoordinatorConfig tunes sync runs
type CoordinatorConfig struct {
	// PageSize is the number of records requested per feed page
	PageSize int
	// PageBudget caps the pages drained in one run. A run that exhausts
	// the budget succeeds with a resumable cursor; the next run continues.
	PageBudget int
	// FetchMaxElapsed bounds the backoff retries around one page fetch
	FetchMaxElapsed time.Duration
}

// DefaultCoordinatorConfig returns the default sync tuning
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		PageSize:        100,
		PageBudget:      50,
		FetchMaxElapsed: 2 * time.Minute,
	}
}

// Coordinator drives marketplace sync jobs: it acquires the single-running
// slot, drains the feed page by page, and moves the cursor only after each
// page's records are committed. A crash mid-page refetches that page; record
// upserts make the refetch converge.
type Coordinator struct {
	connections  marketplace.ConnectionRepository
	jobs         marketplace.SyncJobRepository
	mappings     marketplace.SkuMappingRepository
	orders       marketplace.OrderRecordRepository
	inventory    marketplace.InventoryRecordRepository
	settlements  marketplace.SettlementRecordRepository
	marketplaces marketplace.Registry
	config       CoordinatorConfig
	logger       *zap.Logger
}

// NewCoordinator creates a sync coordinator
func NewCoordinator(
	connections marketplace.ConnectionRepository,
	jobs marketplace.SyncJobRepository,
	mappings marketplace.SkuMappingRepository,
	orders marketplace.OrderRecordRepository,
	inventory marketplace.InventoryRecordRepository,
	settlements marketplace.SettlementRecordRepository,
	marketplaces marketplace.Registry,
	config CoordinatorConfig,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		connections:  connections,
		jobs:         jobs,
		mappings:     mappings,
		orders:       orders,
		inventory:    inventory,
		settlements:  settlements,
		marketplaces: marketplaces,
		config:       config,
		logger:       logger,
	}
}

// ---------------------------------------------------------------------------
// Job lifecycle
// ---------------------------------------------------------------------------

// Trigger creates a job seeded from the connection's cursor and atomically
// acquires the running slot for (connection, job type). Returns
// marketplace.ErrJobAlreadyRunning via the repository when another job holds it.
func (c *Coordinator) Trigger(ctx context.Context, connectionID uuid.UUID, jobType marketplace.JobType) (*marketplace.SyncJob, error) {
	conn, err := c.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.IsActive() {
		return nil, marketplace.ErrConnectionDisabled
	}

	job, err := marketplace.NewSyncJob(conn.CompanyID, conn.ID, jobType, conn.Cursor(jobType))
	if err != nil {
		return nil, err
	}
	if err := c.jobs.TryStart(ctx, job); err != nil {
		return nil, err
	}

	c.logger.Info("Sync job started",
		zap.String("job_id", job.ID.String()),
		zap.String("connection_id", conn.ID.String()),
		zap.String("job_type", string(jobType)),
		zap.String("cursor", job.Cursor),
	)
	return job, nil
}

// Run drains the feed for a running job. The job always reaches a final
// state: SUCCEEDED on a clean or budget-bounded drain, FAILED on a
// non-retryable or retry-exhausted error.
func (c *Coordinator) Run(ctx context.Context, job *marketplace.SyncJob) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "sync", "run",
		telemetry.WithAttribute(telemetry.SpanAttrJobID, job.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrJobType, string(job.JobType)),
	)
	defer span.End()

	conn, err := c.connections.FindByID(ctx, job.ConnectionID)
	if err != nil {
		return c.fail(ctx, job, conn, err)
	}

	adapter, err := c.marketplaces.Resolve(conn.Code)
	if err != nil {
		return c.fail(ctx, job, conn, err)
	}

	for page := 0; page < c.config.PageBudget; page++ {
		select {
		case <-ctx.Done():
			return c.fail(ctx, job, conn, ctx.Err())
		default:
		}

		hasMore, err := c.syncPage(ctx, job, conn, adapter)
		if err != nil {
			return c.fail(ctx, job, conn, err)
		}

		// Checkpoint: records for this page are committed, so the cursor
		// may move. Saved after the records, never before.
		if err := c.jobs.Save(ctx, job); err != nil {
			return c.fail(ctx, job, conn, err)
		}
		conn.AdvanceCursor(job.JobType, job.Cursor)
		conn.MarkSynced(job.JobType, time.Now())
		if err := c.connections.Save(ctx, conn); err != nil {
			return c.fail(ctx, job, conn, err)
		}

		if !hasMore {
			break
		}
	}

	if err := job.Succeed(); err != nil {
		return err
	}
	if err := c.jobs.Save(ctx, job); err != nil {
		return err
	}
	conn.ClearError()
	if err := c.connections.Save(ctx, conn); err != nil {
		c.logger.Warn("Failed to clear connection error state",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err),
		)
	}

	c.logger.Info("Sync job succeeded",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.JobType)),
		zap.Int("pages", job.PagesFetched),
		zap.Int("records_total", job.RecordsTotal),
		zap.Int("records_synced", job.RecordsSynced),
		zap.Int("records_skipped", job.RecordsSkipped),
	)
	return nil
}

// Sync is Trigger followed by Run
func (c *Coordinator) Sync(ctx context.Context, connectionID uuid.UUID, jobType marketplace.JobType) (*marketplace.SyncJob, error) {
	job, err := c.Trigger(ctx, connectionID, jobType)
	if err != nil {
		return nil, err
	}
	if err := c.Run(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// Retry creates a fresh job resuming a failed job's cursor. The failed job
// record is preserved for audit.
func (c *Coordinator) Retry(ctx context.Context, failedJobID uuid.UUID) (*marketplace.SyncJob, error) {
	failed, err := c.jobs.FindByID(ctx, failedJobID)
	if err != nil {
		return nil, err
	}
	job, err := marketplace.NewRetryJob(failed)
	if err != nil {
		return nil, err
	}
	if err := c.jobs.TryStart(ctx, job); err != nil {
		return nil, err
	}
	c.logger.Info("Retry job started",
		zap.String("job_id", job.ID.String()),
		zap.String("retry_of", failedJobID.String()),
		zap.String("cursor", job.Cursor),
	)
	return job, nil
}

// GetJob returns one sync job
func (c *Coordinator) GetJob(ctx context.Context, id uuid.UUID) (*marketplace.SyncJob, error) {
	return c.jobs.FindByID(ctx, id)
}

// ListJobs returns sync jobs matching the filter, for audit
func (c *Coordinator) ListJobs(ctx context.Context, filter marketplace.JobFilter) ([]*marketplace.SyncJob, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return c.jobs.List(ctx, filter)
}

// fail finalizes the job FAILED and flags the connection
func (c *Coordinator) fail(ctx context.Context, job *marketplace.SyncJob, conn *marketplace.Connection, cause error) error {
	if ferr := job.Fail(cause.Error()); ferr != nil {
		return ferr
	}
	if err := c.jobs.Save(ctx, job); err != nil {
		c.logger.Error("Failed to persist failed job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
	if conn != nil {
		conn.MarkError(cause.Error())
		if err := c.connections.Save(ctx, conn); err != nil {
			c.logger.Warn("Failed to flag connection error state",
				zap.String("connection_id", conn.ID.String()),
				zap.Error(err),
			)
		}
	}
	c.logger.Error("Sync job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.JobType)),
		zap.Error(cause),
	)
	return cause
}

// ---------------------------------------------------------------------------
// Page draining
// ---------------------------------------------------------------------------

// syncPage fetches, resolves and commits one page. Returns whether the feed
// has more pages.
func (c *Coordinator) syncPage(ctx context.Context, job *marketplace.SyncJob, conn *marketplace.Connection, adapter marketplace.Adapter) (bool, error) {
	switch job.JobType {
	case marketplace.JobTypeOrder:
		return c.syncOrderPage(ctx, job, conn, adapter)
	case marketplace.JobTypeInventory:
		return c.syncInventoryPage(ctx, job, conn, adapter)
	case marketplace.JobTypeSettlement:
		return c.syncSettlementPage(ctx, job, conn, adapter)
	default:
		return false, marketplace.ErrInvalidJobType
	}
}

func (c *Coordinator) syncOrderPage(ctx context.Context, job *marketplace.SyncJob, conn *marketplace.Connection, adapter marketplace.Adapter) (bool, error) {
	var page *marketplace.OrderPage
	err := c.fetchWithRetry(ctx, func() error {
		var ferr error
		page, ferr = adapter.FetchOrders(ctx, conn.Credentials, job.Cursor, c.config.PageSize)
		return ferr
	})
	if err != nil {
		return false, fmt.Errorf("order fetch failed: %w", err)
	}

	records := make([]*marketplace.OrderRecord, 0, len(page.Orders))
	skipped := 0
	for i := range page.Orders {
		rec := page.Orders[i]
		rec.CompanyID = conn.CompanyID
		rec.ConnectionID = conn.ID
		rec.JobID = job.ID

		ok, err := c.resolveLineItems(ctx, conn.ID, &rec)
		if err != nil {
			return false, err
		}
		if !ok {
			skipped++
			continue
		}
		records = append(records, &rec)
	}

	synced := 0
	if len(records) > 0 {
		n, err := c.orders.Upsert(ctx, records)
		if err != nil {
			return false, fmt.Errorf("order upsert failed: %w", err)
		}
		synced = n
	}

	job.RecordPage(page.NextCursor, len(page.Orders), synced, skipped)
	return page.HasMore, nil
}

// resolveLineItems maps each line's external SKU to the local catalog.
// Orders with any unmapped SKU are skipped with a warning rather than landed
// half-resolved.
func (c *Coordinator) resolveLineItems(ctx context.Context, connectionID uuid.UUID, rec *marketplace.OrderRecord) (bool, error) {
	for i := range rec.LineItems {
		line := &rec.LineItems[i]
		mapping, err := c.mappings.FindByExternalSKU(ctx, connectionID, line.ExternalSKU)
		if err != nil {
			if errors.Is(err, marketplace.ErrSkuMappingNotFound) {
				c.logger.Warn("Skipping order with unmapped SKU",
					zap.String("external_order_id", rec.ExternalOrderID),
					zap.String("external_sku", line.ExternalSKU),
				)
				return false, nil
			}
			return false, err
		}
		if !mapping.Enabled {
			c.logger.Warn("Skipping order with disabled SKU mapping",
				zap.String("external_order_id", rec.ExternalOrderID),
				zap.String("external_sku", line.ExternalSKU),
			)
			return false, nil
		}
		line.LocalSKU = mapping.LocalSKU
	}
	return true, nil
}

func (c *Coordinator) syncInventoryPage(ctx context.Context, job *marketplace.SyncJob, conn *marketplace.Connection, adapter marketplace.Adapter) (bool, error) {
	var page *marketplace.InventoryPage
	err := c.fetchWithRetry(ctx, func() error {
		var ferr error
		page, ferr = adapter.FetchInventory(ctx, conn.Credentials, job.Cursor, c.config.PageSize)
		return ferr
	})
	if err != nil {
		return false, fmt.Errorf("inventory fetch failed: %w", err)
	}

	records := make([]*marketplace.InventoryRecord, 0, len(page.Items))
	skipped := 0
	for i := range page.Items {
		rec := page.Items[i]
		rec.CompanyID = conn.CompanyID
		rec.ConnectionID = conn.ID
		rec.JobID = job.ID

		mapping, err := c.mappings.FindByExternalSKU(ctx, conn.ID, rec.ExternalSKU)
		if err != nil {
			if errors.Is(err, marketplace.ErrSkuMappingNotFound) {
				c.logger.Warn("Skipping inventory for unmapped SKU",
					zap.String("external_sku", rec.ExternalSKU),
				)
				skipped++
				continue
			}
			return false, err
		}
		if !mapping.Enabled {
			skipped++
			continue
		}
		rec.LocalSKU = mapping.LocalSKU
		records = append(records, &rec)
	}

	synced := 0
	if len(records) > 0 {
		n, err := c.inventory.Upsert(ctx, records)
		if err != nil {
			return false, fmt.Errorf("inventory upsert failed: %w", err)
		}
		synced = n
	}

	job.RecordPage(page.NextCursor, len(page.Items), synced, skipped)
	return page.HasMore, nil
}

func (c *Coordinator) syncSettlementPage(ctx context.Context, job *marketplace.SyncJob, conn *marketplace.Connection, adapter marketplace.Adapter) (bool, error) {
	var page *marketplace.SettlementPage
	err := c.fetchWithRetry(ctx, func() error {
		var ferr error
		page, ferr = adapter.FetchSettlements(ctx, conn.Credentials, job.Cursor, c.config.PageSize)
		return ferr
	})
	if err != nil {
		return false, fmt.Errorf("settlement fetch failed: %w", err)
	}

	records := make([]*marketplace.SettlementRecord, 0, len(page.Settlements))
	for i := range page.Settlements {
		rec := page.Settlements[i]
		rec.CompanyID = conn.CompanyID
		rec.ConnectionID = conn.ID
		rec.JobID = job.ID
		records = append(records, &rec)
	}

	synced := 0
	if len(records) > 0 {
		n, err := c.settlements.Upsert(ctx, records)
		if err != nil {
			return false, fmt.Errorf("settlement upsert failed: %w", err)
		}
		synced = n
	}

	job.RecordPage(page.NextCursor, len(page.Settlements), synced, 0)
	return page.HasMore, nil
}

// fetchWithRetry wraps one page fetch in exponential backoff. Only transient
// marketplace failures are retried; auth and validation errors fail fast.
func (c *Coordinator) fetchWithRetry(ctx context.Context, fetch func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.config.FetchMaxElapsed

	return backoff.Retry(func() error {
		err := fetch()
		if err == nil {
			return nil
		}
		if errors.Is(err, marketplace.ErrRateLimited) || errors.Is(err, marketplace.ErrUnavailable) {
			c.logger.Warn("Transient marketplace error, backing off", zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))
}
