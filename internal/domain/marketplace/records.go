package marketplace

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oms/backend/internal/domain/shared"
)

var ErrRecordNotFound = errors.New("marketplace: record not found")

// OrderRecord is a marketplace order landed by a sync job. Records are
// upserted by (connection, external id), so refetching a page after a crash
// converges instead of duplicating.
type OrderRecord struct {
	shared.CompanyEntity
	ConnectionID    uuid.UUID
	JobID           uuid.UUID
	ExternalOrderID string
	OrderNumber     string
	CustomerName    string
	CustomerEmail   string
	Currency        string
	TotalAmount     decimal.Decimal
	FinancialStatus string
	LineItems       []OrderLineItem
	PlacedAt        time.Time
}

// OrderLineItem is one line of a marketplace order, with the SKU already
// resolved to the local catalog.
type OrderLineItem struct {
	ExternalSKU string
	LocalSKU    string
	Title       string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// NewOrderRecord creates an order record attributed to the job that fetched it
func NewOrderRecord(companyID, connectionID, jobID uuid.UUID, externalOrderID string) *OrderRecord {
	return &OrderRecord{
		CompanyEntity:   shared.NewCompanyEntity(companyID),
		ConnectionID:    connectionID,
		JobID:           jobID,
		ExternalOrderID: externalOrderID,
	}
}

// InventoryRecord is a marketplace stock level snapshot for one SKU
type InventoryRecord struct {
	shared.CompanyEntity
	ConnectionID uuid.UUID
	JobID        uuid.UUID
	ExternalSKU  string
	LocalSKU     string
	LocationID   string
	Available    int
	CapturedAt   time.Time
}

// NewInventoryRecord creates an inventory record attributed to the job that fetched it
func NewInventoryRecord(companyID, connectionID, jobID uuid.UUID, externalSKU string) *InventoryRecord {
	return &InventoryRecord{
		CompanyEntity: shared.NewCompanyEntity(companyID),
		ConnectionID:  connectionID,
		JobID:         jobID,
		ExternalSKU:   externalSKU,
	}
}

// SettlementRecord is a marketplace payout line landed by a sync job
type SettlementRecord struct {
	shared.CompanyEntity
	ConnectionID         uuid.UUID
	JobID                uuid.UUID
	ExternalSettlementID string
	ExternalOrderID      string
	Currency             string
	GrossAmount          decimal.Decimal
	FeeAmount            decimal.Decimal
	NetAmount            decimal.Decimal
	SettledAt            time.Time
}

// NewSettlementRecord creates a settlement record attributed to the job that fetched it
func NewSettlementRecord(companyID, connectionID, jobID uuid.UUID, externalSettlementID string) *SettlementRecord {
	return &SettlementRecord{
		CompanyEntity:        shared.NewCompanyEntity(companyID),
		ConnectionID:         connectionID,
		JobID:                jobID,
		ExternalSettlementID: externalSettlementID,
	}
}
