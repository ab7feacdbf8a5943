package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/marketplace"
)

// ConnectionModel is the persistence model for marketplace connections
type ConnectionModel struct {
	ID           uuid.UUID                    `gorm:"type:uuid;primary_key"`
	CompanyID    uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Code         marketplace.Code             `gorm:"type:varchar(30);not null;index"`
	Name         string                       `gorm:"type:varchar(100);not null"`
	ShopDomain   string                       `gorm:"type:varchar(255)"`
	AccessToken  string                       `gorm:"type:varchar(255)"`
	BaseURL      string                       `gorm:"type:varchar(255)"`
	Status       marketplace.ConnectionStatus `gorm:"type:varchar(20);not null;index"`
	StatusError  string                       `gorm:"type:text"`
	CursorsJSON  string                       `gorm:"type:jsonb;column:cursors"`
	SyncedAtJSON string                       `gorm:"type:jsonb;column:synced_at"`
	CreatedAt    time.Time                    `gorm:"not null"`
	UpdatedAt    time.Time                    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectionModel) TableName() string {
	return "marketplace_connections"
}

// ToDomain converts the persistence model to a domain Connection
func (m *ConnectionModel) ToDomain() *marketplace.Connection {
	conn := &marketplace.Connection{
		Code: m.Code,
		Name: m.Name,
		Credentials: marketplace.Credentials{
			ShopDomain:  m.ShopDomain,
			AccessToken: m.AccessToken,
			BaseURL:     m.BaseURL,
		},
		Status:       m.Status,
		StatusError:  m.StatusError,
		Cursors:      make(map[marketplace.JobType]string),
		LastSyncedAt: make(map[marketplace.JobType]time.Time),
	}
	conn.ID = m.ID
	conn.CompanyID = m.CompanyID
	conn.CreatedAt = m.CreatedAt
	conn.UpdatedAt = m.UpdatedAt

	if m.CursorsJSON != "" {
		_ = json.Unmarshal([]byte(m.CursorsJSON), &conn.Cursors)
	}
	if m.SyncedAtJSON != "" {
		_ = json.Unmarshal([]byte(m.SyncedAtJSON), &conn.LastSyncedAt)
	}
	return conn
}

// FromDomain populates the persistence model from a domain Connection
func (m *ConnectionModel) FromDomain(conn *marketplace.Connection) {
	m.ID = conn.ID
	m.CompanyID = conn.CompanyID
	m.Code = conn.Code
	m.Name = conn.Name
	m.ShopDomain = conn.Credentials.ShopDomain
	m.AccessToken = conn.Credentials.AccessToken
	m.BaseURL = conn.Credentials.BaseURL
	m.Status = conn.Status
	m.StatusError = conn.StatusError
	m.CreatedAt = conn.CreatedAt
	m.UpdatedAt = conn.UpdatedAt

	if cursors, err := json.Marshal(conn.Cursors); err == nil {
		m.CursorsJSON = string(cursors)
	} else {
		m.CursorsJSON = "{}"
	}
	if syncedAt, err := json.Marshal(conn.LastSyncedAt); err == nil {
		m.SyncedAtJSON = string(syncedAt)
	} else {
		m.SyncedAtJSON = "{}"
	}
}

// ConnectionModelFromDomain creates a persistence model from a domain Connection
func ConnectionModelFromDomain(conn *marketplace.Connection) *ConnectionModel {
	m := &ConnectionModel{}
	m.FromDomain(conn)
	return m
}

// SyncJobModel is the persistence model for sync jobs. The repository's
// TryStart relies on the (connection_id, job_type, status) index to keep the
// running-slot check cheap.
type SyncJobModel struct {
	ID             uuid.UUID             `gorm:"type:uuid;primary_key"`
	CompanyID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	ConnectionID   uuid.UUID             `gorm:"type:uuid;not null;index:idx_sync_jobs_slot,priority:1"`
	JobType        marketplace.JobType   `gorm:"type:varchar(20);not null;index:idx_sync_jobs_slot,priority:2"`
	Status         marketplace.JobStatus `gorm:"type:varchar(20);not null;index:idx_sync_jobs_slot,priority:3"`
	Cursor         string                `gorm:"type:text"`
	StartedAt      *time.Time            `gorm:""`
	CompletedAt    *time.Time            `gorm:""`
	ErrorDetail    string                `gorm:"type:text"`
	RetryOf        *uuid.UUID            `gorm:"type:uuid;index"`
	PagesFetched   int                   `gorm:"not null;default:0"`
	RecordsTotal   int                   `gorm:"not null;default:0"`
	RecordsSynced  int                   `gorm:"not null;default:0"`
	RecordsSkipped int                   `gorm:"not null;default:0"`
	CreatedAt      time.Time             `gorm:"not null;index"`
	UpdatedAt      time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncJobModel) TableName() string {
	return "sync_jobs"
}

// ToDomain converts the persistence model to a domain SyncJob
func (m *SyncJobModel) ToDomain() *marketplace.SyncJob {
	job := &marketplace.SyncJob{
		ConnectionID:   m.ConnectionID,
		JobType:        m.JobType,
		Status:         m.Status,
		Cursor:         m.Cursor,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		ErrorDetail:    m.ErrorDetail,
		RetryOf:        m.RetryOf,
		PagesFetched:   m.PagesFetched,
		RecordsTotal:   m.RecordsTotal,
		RecordsSynced:  m.RecordsSynced,
		RecordsSkipped: m.RecordsSkipped,
	}
	job.ID = m.ID
	job.CompanyID = m.CompanyID
	job.CreatedAt = m.CreatedAt
	job.UpdatedAt = m.UpdatedAt
	return job
}

// FromDomain populates the persistence model from a domain SyncJob
func (m *SyncJobModel) FromDomain(job *marketplace.SyncJob) {
	m.ID = job.ID
	m.CompanyID = job.CompanyID
	m.ConnectionID = job.ConnectionID
	m.JobType = job.JobType
	m.Status = job.Status
	m.Cursor = job.Cursor
	m.StartedAt = job.StartedAt
	m.CompletedAt = job.CompletedAt
	m.ErrorDetail = job.ErrorDetail
	m.RetryOf = job.RetryOf
	m.PagesFetched = job.PagesFetched
	m.RecordsTotal = job.RecordsTotal
	m.RecordsSynced = job.RecordsSynced
	m.RecordsSkipped = job.RecordsSkipped
	m.CreatedAt = job.CreatedAt
	m.UpdatedAt = job.UpdatedAt
}

// SyncJobModelFromDomain creates a persistence model from a domain SyncJob
func SyncJobModelFromDomain(job *marketplace.SyncJob) *SyncJobModel {
	m := &SyncJobModel{}
	m.FromDomain(job)
	return m
}

// SkuMappingModel is the persistence model for SKU bindings
type SkuMappingModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	CompanyID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ConnectionID uuid.UUID `gorm:"type:uuid;not null;index:idx_sku_mappings_connection_sku,unique,priority:1"`
	ExternalSKU  string    `gorm:"type:varchar(100);not null;index:idx_sku_mappings_connection_sku,unique,priority:2"`
	LocalSKU     string    `gorm:"type:varchar(100);not null;index"`
	Enabled      bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SkuMappingModel) TableName() string {
	return "sku_mappings"
}

// ToDomain converts the persistence model to a domain SkuMapping
func (m *SkuMappingModel) ToDomain() *marketplace.SkuMapping {
	mapping := &marketplace.SkuMapping{
		ConnectionID: m.ConnectionID,
		ExternalSKU:  m.ExternalSKU,
		LocalSKU:     m.LocalSKU,
		Enabled:      m.Enabled,
	}
	mapping.ID = m.ID
	mapping.CompanyID = m.CompanyID
	mapping.CreatedAt = m.CreatedAt
	mapping.UpdatedAt = m.UpdatedAt
	return mapping
}

// FromDomain populates the persistence model from a domain SkuMapping
func (m *SkuMappingModel) FromDomain(mapping *marketplace.SkuMapping) {
	m.ID = mapping.ID
	m.CompanyID = mapping.CompanyID
	m.ConnectionID = mapping.ConnectionID
	m.ExternalSKU = mapping.ExternalSKU
	m.LocalSKU = mapping.LocalSKU
	m.Enabled = mapping.Enabled
	m.CreatedAt = mapping.CreatedAt
	m.UpdatedAt = mapping.UpdatedAt
}

// SkuMappingModelFromDomain creates a persistence model from a domain SkuMapping
func SkuMappingModelFromDomain(mapping *marketplace.SkuMapping) *SkuMappingModel {
	m := &SkuMappingModel{}
	m.FromDomain(mapping)
	return m
}

// OrderRecordModel lands marketplace orders. The unique index on
// (connection_id, external_order_id) backs the upsert used for page replays.
type OrderRecordModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	CompanyID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ConnectionID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_order_records_connection_ext,unique,priority:1"`
	JobID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	ExternalOrderID string          `gorm:"type:varchar(100);not null;index:idx_order_records_connection_ext,unique,priority:2"`
	OrderNumber     string          `gorm:"type:varchar(100)"`
	CustomerName    string          `gorm:"type:varchar(255)"`
	CustomerEmail   string          `gorm:"type:varchar(255)"`
	Currency        string          `gorm:"type:varchar(10)"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(15,2)"`
	FinancialStatus string          `gorm:"type:varchar(50)"`
	LineItemsJSON   string          `gorm:"type:jsonb;column:line_items"`
	PlacedAt        time.Time       `gorm:"index"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderRecordModel) TableName() string {
	return "marketplace_orders"
}

// ToDomain converts the persistence model to a domain OrderRecord
func (m *OrderRecordModel) ToDomain() *marketplace.OrderRecord {
	rec := &marketplace.OrderRecord{
		ConnectionID:    m.ConnectionID,
		JobID:           m.JobID,
		ExternalOrderID: m.ExternalOrderID,
		OrderNumber:     m.OrderNumber,
		CustomerName:    m.CustomerName,
		CustomerEmail:   m.CustomerEmail,
		Currency:        m.Currency,
		TotalAmount:     m.TotalAmount,
		FinancialStatus: m.FinancialStatus,
		PlacedAt:        m.PlacedAt,
	}
	rec.ID = m.ID
	rec.CompanyID = m.CompanyID
	rec.CreatedAt = m.CreatedAt
	rec.UpdatedAt = m.UpdatedAt
	if m.LineItemsJSON != "" {
		_ = json.Unmarshal([]byte(m.LineItemsJSON), &rec.LineItems)
	}
	return rec
}

// FromDomain populates the persistence model from a domain OrderRecord
func (m *OrderRecordModel) FromDomain(rec *marketplace.OrderRecord) {
	m.ID = rec.ID
	m.CompanyID = rec.CompanyID
	m.ConnectionID = rec.ConnectionID
	m.JobID = rec.JobID
	m.ExternalOrderID = rec.ExternalOrderID
	m.OrderNumber = rec.OrderNumber
	m.CustomerName = rec.CustomerName
	m.CustomerEmail = rec.CustomerEmail
	m.Currency = rec.Currency
	m.TotalAmount = rec.TotalAmount
	m.FinancialStatus = rec.FinancialStatus
	m.PlacedAt = rec.PlacedAt
	m.CreatedAt = rec.CreatedAt
	m.UpdatedAt = rec.UpdatedAt
	if lineItems, err := json.Marshal(rec.LineItems); err == nil {
		m.LineItemsJSON = string(lineItems)
	} else {
		m.LineItemsJSON = "[]"
	}
}

// OrderRecordModelFromDomain creates a persistence model from a domain OrderRecord
func OrderRecordModelFromDomain(rec *marketplace.OrderRecord) *OrderRecordModel {
	m := &OrderRecordModel{}
	m.FromDomain(rec)
	return m
}

// InventoryRecordModel lands stock snapshots keyed on
// (connection_id, external_sku, location_id).
type InventoryRecordModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	CompanyID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ConnectionID uuid.UUID `gorm:"type:uuid;not null;index:idx_inventory_records_key,unique,priority:1"`
	JobID        uuid.UUID `gorm:"type:uuid;not null;index"`
	ExternalSKU  string    `gorm:"type:varchar(100);not null;index:idx_inventory_records_key,unique,priority:2"`
	LocalSKU     string    `gorm:"type:varchar(100);index"`
	LocationID   string    `gorm:"type:varchar(100);index:idx_inventory_records_key,unique,priority:3"`
	Available    int       `gorm:"not null;default:0"`
	CapturedAt   time.Time `gorm:"index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InventoryRecordModel) TableName() string {
	return "marketplace_inventory"
}

// ToDomain converts the persistence model to a domain InventoryRecord
func (m *InventoryRecordModel) ToDomain() *marketplace.InventoryRecord {
	rec := &marketplace.InventoryRecord{
		ConnectionID: m.ConnectionID,
		JobID:        m.JobID,
		ExternalSKU:  m.ExternalSKU,
		LocalSKU:     m.LocalSKU,
		LocationID:   m.LocationID,
		Available:    m.Available,
		CapturedAt:   m.CapturedAt,
	}
	rec.ID = m.ID
	rec.CompanyID = m.CompanyID
	rec.CreatedAt = m.CreatedAt
	rec.UpdatedAt = m.UpdatedAt
	return rec
}

// FromDomain populates the persistence model from a domain InventoryRecord
func (m *InventoryRecordModel) FromDomain(rec *marketplace.InventoryRecord) {
	m.ID = rec.ID
	m.CompanyID = rec.CompanyID
	m.ConnectionID = rec.ConnectionID
	m.JobID = rec.JobID
	m.ExternalSKU = rec.ExternalSKU
	m.LocalSKU = rec.LocalSKU
	m.LocationID = rec.LocationID
	m.Available = rec.Available
	m.CapturedAt = rec.CapturedAt
	m.CreatedAt = rec.CreatedAt
	m.UpdatedAt = rec.UpdatedAt
}

// InventoryRecordModelFromDomain creates a persistence model from a domain InventoryRecord
func InventoryRecordModelFromDomain(rec *marketplace.InventoryRecord) *InventoryRecordModel {
	m := &InventoryRecordModel{}
	m.FromDomain(rec)
	return m
}

// SettlementRecordModel lands payout lines keyed on
// (connection_id, external_settlement_id).
type SettlementRecordModel struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primary_key"`
	CompanyID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	ConnectionID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_settlement_records_key,unique,priority:1"`
	JobID                uuid.UUID       `gorm:"type:uuid;not null;index"`
	ExternalSettlementID string          `gorm:"type:varchar(100);not null;index:idx_settlement_records_key,unique,priority:2"`
	ExternalOrderID      string          `gorm:"type:varchar(100);index"`
	Currency             string          `gorm:"type:varchar(10)"`
	GrossAmount          decimal.Decimal `gorm:"type:decimal(15,2)"`
	FeeAmount            decimal.Decimal `gorm:"type:decimal(15,2)"`
	NetAmount            decimal.Decimal `gorm:"type:decimal(15,2)"`
	SettledAt            time.Time       `gorm:"index"`
	CreatedAt            time.Time       `gorm:"not null"`
	UpdatedAt            time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SettlementRecordModel) TableName() string {
	return "marketplace_settlements"
}

// ToDomain converts the persistence model to a domain SettlementRecord
func (m *SettlementRecordModel) ToDomain() *marketplace.SettlementRecord {
	rec := &marketplace.SettlementRecord{
		ConnectionID:         m.ConnectionID,
		JobID:                m.JobID,
		ExternalSettlementID: m.ExternalSettlementID,
		ExternalOrderID:      m.ExternalOrderID,
		Currency:             m.Currency,
		GrossAmount:          m.GrossAmount,
		FeeAmount:            m.FeeAmount,
		NetAmount:            m.NetAmount,
		SettledAt:            m.SettledAt,
	}
	rec.ID = m.ID
	rec.CompanyID = m.CompanyID
	rec.CreatedAt = m.CreatedAt
	rec.UpdatedAt = m.UpdatedAt
	return rec
}

// FromDomain populates the persistence model from a domain SettlementRecord
func (m *SettlementRecordModel) FromDomain(rec *marketplace.SettlementRecord) {
	m.ID = rec.ID
	m.CompanyID = rec.CompanyID
	m.ConnectionID = rec.ConnectionID
	m.JobID = rec.JobID
	m.ExternalSettlementID = rec.ExternalSettlementID
	m.ExternalOrderID = rec.ExternalOrderID
	m.Currency = rec.Currency
	m.GrossAmount = rec.GrossAmount
	m.FeeAmount = rec.FeeAmount
	m.NetAmount = rec.NetAmount
	m.SettledAt = rec.SettledAt
	m.CreatedAt = rec.CreatedAt
	m.UpdatedAt = rec.UpdatedAt
}

// SettlementRecordModelFromDomain creates a persistence model from a domain SettlementRecord
func SettlementRecordModelFromDomain(rec *marketplace.SettlementRecord) *SettlementRecordModel {
	m := &SettlementRecordModel{}
	m.FromDomain(rec)
	return m
}
