package delivery

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

var (
	ErrInvalidOrderID       = errors.New("delivery: invalid order ID")
	ErrInvalidTransporterID = errors.New("delivery: invalid transporter ID")
	ErrEmptyAWB             = errors.New("delivery: AWB cannot be empty")
	ErrAWBAlreadyAssigned   = errors.New("delivery: AWB already assigned")
	ErrInvalidTransition    = errors.New("delivery: invalid status transition")
	ErrDeliveryNotFound     = errors.New("delivery: delivery not found")
	ErrCancelRefused        = errors.New("delivery: carrier refused cancellation")
)

// EventSource identifies where a status transition came from
type EventSource string

const (
	// SourceWebhook marks transitions driven by an inbound carrier webhook
	SourceWebhook EventSource = "WEBHOOK"
	// SourcePoll marks transitions driven by a scheduled tracking pull
	SourcePoll EventSource = "POLL"
	// SourceManual marks transitions driven by an operator-triggered pull
	SourceManual EventSource = "MANUAL"
	// SourceOverride marks transitions applied by an explicit operator override
	SourceOverride EventSource = "OVERRIDE"
)

// StatusHistoryEntry records one applied transition on a Delivery.
// Entries reference their delivery by ID; they are append-only.
type StatusHistoryEntry struct {
	ID                uuid.UUID
	DeliveryID        uuid.UUID
	FromStatus        DeliveryStatus
	ToStatus          DeliveryStatus
	Source            EventSource
	CarrierStatusCode string
	OccurredAt        time.Time
	RecordedAt        time.Time
}

// Delivery represents one shipment leg of an order.
// Its canonical status only advances forward per the transition graph unless
// an explicit override is applied. The AWB is unique per transporter once
// assigned.
type Delivery struct {
	shared.CompanyEntity
	OrderID       uuid.UUID
	TransporterID uuid.UUID
	AWB           string
	Status        DeliveryStatus
	History       []StatusHistoryEntry
	LastSyncedAt  *time.Time
}

// NewDelivery creates a delivery in the CREATED state
func NewDelivery(companyID, orderID, transporterID uuid.UUID) (*Delivery, error) {
	if orderID == uuid.Nil {
		return nil, ErrInvalidOrderID
	}
	if transporterID == uuid.Nil {
		return nil, ErrInvalidTransporterID
	}
	return &Delivery{
		CompanyEntity: shared.NewCompanyEntity(companyID),
		OrderID:       orderID,
		TransporterID: transporterID,
		Status:        StatusCreated,
		History:       make([]StatusHistoryEntry, 0),
	}, nil
}

// AssignAWB sets the tracking number returned by the carrier.
// The AWB is immutable once assigned.
func (d *Delivery) AssignAWB(awb string) error {
	if awb == "" {
		return ErrEmptyAWB
	}
	if d.AWB != "" && d.AWB != awb {
		return ErrAWBAlreadyAssigned
	}
	d.AWB = awb
	d.Touch()
	return nil
}

// ApplyTransition validates and applies a canonical status transition.
// Valid no-op replays update LastSyncedAt only. Invalid transitions return
// ErrInvalidTransition and leave the delivery untouched.
func (d *Delivery) ApplyTransition(target DeliveryStatus, source EventSource, carrierStatusCode string, occurredAt time.Time) error {
	if !d.Status.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	now := time.Now()
	if d.Status.IsNoOp(target) {
		d.LastSyncedAt = &now
		d.Touch()
		return nil
	}
	d.appendHistory(target, source, carrierStatusCode, occurredAt, now)
	d.Status = target
	d.LastSyncedAt = &now
	d.Touch()
	return nil
}

// Override forces the delivery into a status regardless of the transition
// graph. Used by operators to clear EXCEPTION states; always recorded in
// history with the OVERRIDE source.
func (d *Delivery) Override(target DeliveryStatus, occurredAt time.Time) error {
	if !target.IsValid() {
		return ErrInvalidTransition
	}
	now := time.Now()
	d.appendHistory(target, SourceOverride, "", occurredAt, now)
	d.Status = target
	d.Touch()
	return nil
}

// IsOpen returns true if the delivery still expects tracking updates
func (d *Delivery) IsOpen() bool {
	return !d.Status.IsTerminal() && d.Status != StatusException
}

func (d *Delivery) appendHistory(target DeliveryStatus, source EventSource, code string, occurredAt, recordedAt time.Time) {
	d.History = append(d.History, StatusHistoryEntry{
		ID:                uuid.New(),
		DeliveryID:        d.ID,
		FromStatus:        d.Status,
		ToStatus:          target,
		Source:            source,
		CarrierStatusCode: code,
		OccurredAt:        occurredAt,
		RecordedAt:        recordedAt,
	})
}
