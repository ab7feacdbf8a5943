package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// CompanyModel provides common persistence fields for company-owned models.
// It extends BaseModel with the owning company ID.
type CompanyModel struct {
	BaseModel
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// ToDomainCompanyEntity converts CompanyModel to domain CompanyEntity
func (m *CompanyModel) ToDomainCompanyEntity() shared.CompanyEntity {
	return shared.CompanyEntity{
		BaseEntity: m.BaseModel.ToDomain(),
		CompanyID:  m.CompanyID,
	}
}

// FromDomainCompanyEntity populates CompanyModel from domain CompanyEntity
func (m *CompanyModel) FromDomainCompanyEntity(e shared.CompanyEntity) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.CompanyID = e.CompanyID
}
