package marketplace

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

var (
	ErrSkuMappingNotFound = errors.New("marketplace: sku mapping not found")
	ErrInvalidSkuMapping  = errors.New("marketplace: local and external sku are both required")
)

// SkuMapping binds a marketplace listing SKU to the local catalog SKU for
// one connection. The pair is unique per (connection, external sku).
type SkuMapping struct {
	shared.CompanyEntity
	ConnectionID uuid.UUID
	ExternalSKU  string
	LocalSKU     string
	Enabled      bool
}

// NewSkuMapping creates an enabled mapping between an external and a local SKU
func NewSkuMapping(companyID, connectionID uuid.UUID, externalSKU, localSKU string) (*SkuMapping, error) {
	externalSKU = strings.TrimSpace(externalSKU)
	localSKU = strings.TrimSpace(localSKU)
	if externalSKU == "" || localSKU == "" {
		return nil, ErrInvalidSkuMapping
	}
	return &SkuMapping{
		CompanyEntity: shared.NewCompanyEntity(companyID),
		ConnectionID:  connectionID,
		ExternalSKU:   externalSKU,
		LocalSKU:      localSKU,
		Enabled:       true,
	}, nil
}

// Rebind points the mapping at a different local SKU
func (m *SkuMapping) Rebind(localSKU string) error {
	localSKU = strings.TrimSpace(localSKU)
	if localSKU == "" {
		return ErrInvalidSkuMapping
	}
	m.LocalSKU = localSKU
	m.Touch()
	return nil
}

// Disable removes the mapping from resolution without deleting its history
func (m *SkuMapping) Disable() {
	m.Enabled = false
	m.Touch()
}

// Enable restores the mapping to resolution
func (m *SkuMapping) Enable() {
	m.Enabled = true
	m.Touch()
}
