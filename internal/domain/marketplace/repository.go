package marketplace

import (
	"context"

	"github.com/google/uuid"
)

// ConnectionRepository persists marketplace connections
type ConnectionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Connection, error)
	FindActive(ctx context.Context) ([]*Connection, error)
	FindByCompany(ctx context.Context, companyID uuid.UUID) ([]*Connection, error)
	Save(ctx context.Context, conn *Connection) error
}

// SyncJobRepository persists sync jobs and enforces the single-running
// invariant per (connection, job type).
type SyncJobRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SyncJob, error)
	// TryStart atomically flips a pending job to running, failing with
	// ErrJobAlreadyRunning when another job of the same type is already
	// running for the connection. The check and the flip are one statement,
	// so two concurrent triggers cannot both win.
	TryStart(ctx context.Context, job *SyncJob) error
	Save(ctx context.Context, job *SyncJob) error
	List(ctx context.Context, filter JobFilter) ([]*SyncJob, int64, error)
	// FindRunning returns the running job for the pair, or ErrJobNotFound
	FindRunning(ctx context.Context, connectionID uuid.UUID, jobType JobType) (*SyncJob, error)
}

// SkuMappingRepository persists listing-to-catalog SKU bindings
type SkuMappingRepository interface {
	FindByExternalSKU(ctx context.Context, connectionID uuid.UUID, externalSKU string) (*SkuMapping, error)
	FindByConnection(ctx context.Context, connectionID uuid.UUID) ([]*SkuMapping, error)
	Save(ctx context.Context, mapping *SkuMapping) error
}

// OrderRecordRepository lands marketplace orders. Upsert keys on
// (connection, external order id) so replayed pages converge.
type OrderRecordRepository interface {
	Upsert(ctx context.Context, records []*OrderRecord) (int, error)
	FindByExternalID(ctx context.Context, connectionID uuid.UUID, externalOrderID string) (*OrderRecord, error)
	CountByJob(ctx context.Context, jobID uuid.UUID) (int64, error)
}

// InventoryRecordRepository lands stock snapshots keyed on
// (connection, external sku, location).
type InventoryRecordRepository interface {
	Upsert(ctx context.Context, records []*InventoryRecord) (int, error)
	FindBySKU(ctx context.Context, connectionID uuid.UUID, externalSKU string) ([]*InventoryRecord, error)
}

// SettlementRecordRepository lands payout lines keyed on
// (connection, external settlement id).
type SettlementRecordRepository interface {
	Upsert(ctx context.Context, records []*SettlementRecord) (int, error)
	FindByExternalID(ctx context.Context, connectionID uuid.UUID, externalSettlementID string) (*SettlementRecord, error)
}
