package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/carrier"
)

// WebhookEventModel is one entry in the append-only webhook event log.
// The partial unique index on (idempotency_key) WHERE outcome = 'APPLIED'
// (idx_webhook_events_applied_key) backs the pipeline's authoritative dedupe
// across replicas; DUPLICATE and REJECTED audit rows share keys freely.
type WebhookEventModel struct {
	ID                uuid.UUID            `gorm:"type:uuid;primary_key"`
	Carrier           carrier.Code         `gorm:"type:varchar(30);not null;index"`
	TransporterID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	AWB               string               `gorm:"type:varchar(50);not null;index"`
	IdempotencyKey    string               `gorm:"type:varchar(200);not null;index:idx_webhook_events_key"`
	CarrierStatusCode string               `gorm:"type:varchar(50)"`
	ExternalEventID   string               `gorm:"type:varchar(100)"`
	OccurredAt        *time.Time           `gorm:""`
	RawPayload        string               `gorm:"type:text"`
	Outcome           carrier.EventOutcome `gorm:"type:varchar(20);not null;index"`
	OutcomeDetail     string               `gorm:"type:text"`
	ReceivedAt        time.Time            `gorm:"not null;index"`
	NextRetryAt       *time.Time           `gorm:"index"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent
func (m *WebhookEventModel) ToDomain() *carrier.WebhookEvent {
	ev := &carrier.WebhookEvent{
		ID:                m.ID,
		Carrier:           m.Carrier,
		TransporterID:     m.TransporterID,
		AWB:               m.AWB,
		IdempotencyKey:    m.IdempotencyKey,
		CarrierStatusCode: m.CarrierStatusCode,
		ExternalEventID:   m.ExternalEventID,
		RawPayload:        m.RawPayload,
		Outcome:           m.Outcome,
		OutcomeDetail:     m.OutcomeDetail,
		ReceivedAt:        m.ReceivedAt,
		NextRetryAt:       m.NextRetryAt,
	}
	if m.OccurredAt != nil {
		ev.OccurredAt = *m.OccurredAt
	}
	return ev
}

// FromDomain populates the persistence model from a domain WebhookEvent
func (m *WebhookEventModel) FromDomain(ev *carrier.WebhookEvent) {
	m.ID = ev.ID
	m.Carrier = ev.Carrier
	m.TransporterID = ev.TransporterID
	m.AWB = ev.AWB
	m.IdempotencyKey = ev.IdempotencyKey
	m.CarrierStatusCode = ev.CarrierStatusCode
	m.ExternalEventID = ev.ExternalEventID
	if !ev.OccurredAt.IsZero() {
		occurredAt := ev.OccurredAt
		m.OccurredAt = &occurredAt
	}
	m.RawPayload = ev.RawPayload
	m.Outcome = ev.Outcome
	m.OutcomeDetail = ev.OutcomeDetail
	m.ReceivedAt = ev.ReceivedAt
	m.NextRetryAt = ev.NextRetryAt
}

// WebhookEventModelFromDomain creates a persistence model from a domain WebhookEvent
func WebhookEventModelFromDomain(ev *carrier.WebhookEvent) *WebhookEventModel {
	m := &WebhookEventModel{}
	m.FromDomain(ev)
	return m
}
