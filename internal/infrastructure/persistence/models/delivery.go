package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/delivery"
)

// DeliveryModel is the persistence model for the Delivery domain entity.
// (transporter_id, awb) is unique: one AWB resolves to exactly one delivery
// per carrier account.
type DeliveryModel struct {
	ID            uuid.UUID               `gorm:"type:uuid;primary_key"`
	CompanyID     uuid.UUID               `gorm:"type:uuid;not null;index"`
	OrderID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	TransporterID uuid.UUID               `gorm:"type:uuid;not null;index:idx_deliveries_transporter_awb,unique,priority:1"`
	AWB           string                  `gorm:"type:varchar(50);index:idx_deliveries_transporter_awb,unique,priority:2"`
	Status        delivery.DeliveryStatus `gorm:"type:varchar(30);not null;index"`
	LastSyncedAt  *time.Time              `gorm:"index"`
	CreatedAt     time.Time               `gorm:"not null"`
	UpdatedAt     time.Time               `gorm:"not null"`

	History []StatusHistoryModel `gorm:"foreignKey:DeliveryID"`
}

// TableName returns the table name for GORM
func (DeliveryModel) TableName() string {
	return "deliveries"
}

// ToDomain converts the persistence model to a domain Delivery entity
func (m *DeliveryModel) ToDomain() *delivery.Delivery {
	d := &delivery.Delivery{
		OrderID:       m.OrderID,
		TransporterID: m.TransporterID,
		AWB:           m.AWB,
		Status:        m.Status,
		LastSyncedAt:  m.LastSyncedAt,
		History:       make([]delivery.StatusHistoryEntry, 0, len(m.History)),
	}
	d.ID = m.ID
	d.CompanyID = m.CompanyID
	d.CreatedAt = m.CreatedAt
	d.UpdatedAt = m.UpdatedAt
	for i := range m.History {
		d.History = append(d.History, *m.History[i].ToDomain())
	}
	return d
}

// FromDomain populates the persistence model from a domain Delivery entity
func (m *DeliveryModel) FromDomain(d *delivery.Delivery) {
	m.ID = d.ID
	m.CompanyID = d.CompanyID
	m.OrderID = d.OrderID
	m.TransporterID = d.TransporterID
	m.AWB = d.AWB
	m.Status = d.Status
	m.LastSyncedAt = d.LastSyncedAt
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt
	m.History = make([]StatusHistoryModel, 0, len(d.History))
	for i := range d.History {
		var h StatusHistoryModel
		h.FromDomain(&d.History[i], d.ID)
		m.History = append(m.History, h)
	}
}

// DeliveryModelFromDomain creates a persistence model from a domain Delivery
func DeliveryModelFromDomain(d *delivery.Delivery) *DeliveryModel {
	m := &DeliveryModel{}
	m.FromDomain(d)
	return m
}

// StatusHistoryModel is one append-only status transition record
type StatusHistoryModel struct {
	ID                uuid.UUID               `gorm:"type:uuid;primary_key"`
	DeliveryID        uuid.UUID               `gorm:"type:uuid;not null;index"`
	FromStatus        delivery.DeliveryStatus `gorm:"type:varchar(30);not null"`
	ToStatus          delivery.DeliveryStatus `gorm:"type:varchar(30);not null"`
	Source            delivery.EventSource    `gorm:"type:varchar(20);not null"`
	CarrierStatusCode string                  `gorm:"type:varchar(50)"`
	OccurredAt        time.Time               `gorm:"not null"`
	RecordedAt        time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StatusHistoryModel) TableName() string {
	return "delivery_status_history"
}

// ToDomain converts the persistence model to a domain history entry
func (m *StatusHistoryModel) ToDomain() *delivery.StatusHistoryEntry {
	return &delivery.StatusHistoryEntry{
		ID:                m.ID,
		DeliveryID:        m.DeliveryID,
		FromStatus:        m.FromStatus,
		ToStatus:          m.ToStatus,
		Source:            m.Source,
		CarrierStatusCode: m.CarrierStatusCode,
		OccurredAt:        m.OccurredAt,
		RecordedAt:        m.RecordedAt,
	}
}

// FromDomain populates the persistence model from a domain history entry
func (m *StatusHistoryModel) FromDomain(e *delivery.StatusHistoryEntry, deliveryID uuid.UUID) {
	m.ID = e.ID
	m.DeliveryID = deliveryID
	m.FromStatus = e.FromStatus
	m.ToStatus = e.ToStatus
	m.Source = e.Source
	m.CarrierStatusCode = e.CarrierStatusCode
	m.OccurredAt = e.OccurredAt
	m.RecordedAt = e.RecordedAt
}

// TransporterModel is the persistence model for carrier accounts
type TransporterModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key"`
	CompanyID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	CarrierCode   string     `gorm:"type:varchar(30);not null;index"`
	Name          string     `gorm:"type:varchar(100);not null"`
	APIKey        string     `gorm:"type:varchar(255)"`
	APISecret     string     `gorm:"type:varchar(255)"`
	BaseURL       string     `gorm:"type:varchar(255)"`
	WebhookSecret string     `gorm:"type:varchar(255)"`
	Capabilities  string     `gorm:"type:varchar(255)"`
	Enabled       bool       `gorm:"not null;default:true;index"`
	LastPolledAt  *time.Time `gorm:"index"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TransporterModel) TableName() string {
	return "transporters"
}

// ToDomain converts the persistence model to a domain Transporter
func (m *TransporterModel) ToDomain() *delivery.Transporter {
	t := &delivery.Transporter{
		CarrierCode: m.CarrierCode,
		Name:        m.Name,
		Credentials: delivery.Credentials{
			APIKey:    m.APIKey,
			APISecret: m.APISecret,
			BaseURL:   m.BaseURL,
		},
		WebhookSecret: m.WebhookSecret,
		Capabilities:  delivery.ParseCapabilities(m.Capabilities),
		Enabled:       m.Enabled,
		LastPolledAt:  m.LastPolledAt,
	}
	t.ID = m.ID
	t.CompanyID = m.CompanyID
	t.CreatedAt = m.CreatedAt
	t.UpdatedAt = m.UpdatedAt
	return t
}

// FromDomain populates the persistence model from a domain Transporter
func (m *TransporterModel) FromDomain(t *delivery.Transporter) {
	m.ID = t.ID
	m.CompanyID = t.CompanyID
	m.CarrierCode = t.CarrierCode
	m.Name = t.Name
	m.APIKey = t.Credentials.APIKey
	m.APISecret = t.Credentials.APISecret
	m.BaseURL = t.Credentials.BaseURL
	m.WebhookSecret = t.WebhookSecret
	m.Capabilities = delivery.JoinCapabilities(t.Capabilities)
	m.Enabled = t.Enabled
	m.LastPolledAt = t.LastPolledAt
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
}

// TransporterModelFromDomain creates a persistence model from a domain Transporter
func TransporterModelFromDomain(t *delivery.Transporter) *TransporterModel {
	m := &TransporterModel{}
	m.FromDomain(t)
	return m
}
