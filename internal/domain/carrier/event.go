package carrier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEventNotFound  = errors.New("carrier: webhook event not found")
	ErrOutcomeFinal   = errors.New("carrier: event outcome is already final")
	ErrDuplicateEvent = errors.New("carrier: event already applied")
)

// TrackingEvent is the canonical shape every carrier payload normalizes to
// before entering the status pipeline.
type TrackingEvent struct {
	Carrier           Code
	TransporterID     uuid.UUID
	AWB               string
	ExternalEventID   string
	CarrierStatusCode string
	Description       string
	Location          string
	OccurredAt        time.Time
	RawPayload        string
}

// IdempotencyKey derives the deterministic dedupe key for the event:
// carrier + AWB + the carrier-assigned event ID, falling back to a hash of
// the raw payload when the carrier assigns no event ID.
func (e *TrackingEvent) IdempotencyKey() string {
	discriminator := e.ExternalEventID
	if discriminator == "" {
		sum := sha256.Sum256([]byte(e.RawPayload))
		discriminator = hex.EncodeToString(sum[:])
	}
	return fmt.Sprintf("%s:%s:%s", e.Carrier, e.AWB, discriminator)
}

// EventOutcome records how the pipeline disposed of an inbound event
type EventOutcome string

const (
	// OutcomeApplied means the event changed (or idempotently confirmed) state
	OutcomeApplied EventOutcome = "APPLIED"
	// OutcomeDuplicate means an event with the same key was already applied
	OutcomeDuplicate EventOutcome = "DUPLICATE"
	// OutcomeRejected means the event was invalid or regressed the status
	OutcomeRejected EventOutcome = "REJECTED"
	// OutcomeDeferred means the target delivery is not yet known locally
	OutcomeDeferred EventOutcome = "DEFERRED"
)

// IsValid returns true if the outcome is known
func (o EventOutcome) IsValid() bool {
	switch o {
	case OutcomeApplied, OutcomeDuplicate, OutcomeRejected, OutcomeDeferred:
		return true
	default:
		return false
	}
}

// IsFinal reports whether the outcome can no longer change.
// DEFERRED is the only non-final outcome: deferred events are re-driven
// until they resolve or their retry window expires.
func (o EventOutcome) IsFinal() bool {
	return o != OutcomeDeferred
}

// WebhookEvent is one append-only entry in the webhook event log.
// Entries are immutable facts; the only permitted mutation is finalizing a
// DEFERRED outcome exactly once.
type WebhookEvent struct {
	ID                uuid.UUID
	Carrier           Code
	TransporterID     uuid.UUID
	AWB               string
	IdempotencyKey    string
	CarrierStatusCode string
	ExternalEventID   string
	OccurredAt        time.Time
	RawPayload        string
	Outcome           EventOutcome
	OutcomeDetail     string
	ReceivedAt        time.Time
	NextRetryAt       *time.Time
}

// NewWebhookEvent creates a log entry for an inbound tracking event
func NewWebhookEvent(ev *TrackingEvent, outcome EventOutcome, detail string) *WebhookEvent {
	return &WebhookEvent{
		ID:                uuid.New(),
		Carrier:           ev.Carrier,
		TransporterID:     ev.TransporterID,
		AWB:               ev.AWB,
		IdempotencyKey:    ev.IdempotencyKey(),
		CarrierStatusCode: ev.CarrierStatusCode,
		ExternalEventID:   ev.ExternalEventID,
		OccurredAt:        ev.OccurredAt,
		RawPayload:        ev.RawPayload,
		Outcome:           outcome,
		OutcomeDetail:     detail,
		ReceivedAt:        time.Now(),
	}
}

// NewMalformedWebhookEvent logs a payload the carrier adapter could not
// parse. The AWB is unknown, so the dedupe key falls back to the payload
// hash via TrackingEvent.IdempotencyKey.
func NewMalformedWebhookEvent(code Code, transporterID uuid.UUID, rawPayload, detail string) *WebhookEvent {
	now := time.Now()
	stub := &TrackingEvent{Carrier: code, RawPayload: rawPayload}
	return &WebhookEvent{
		ID:             uuid.New(),
		Carrier:        code,
		TransporterID:  transporterID,
		IdempotencyKey: stub.IdempotencyKey(),
		RawPayload:     rawPayload,
		Outcome:        OutcomeRejected,
		OutcomeDetail:  detail,
		OccurredAt:     now,
		ReceivedAt:     now,
	}
}

// Finalize resolves a deferred event to its final outcome
func (w *WebhookEvent) Finalize(outcome EventOutcome, detail string) error {
	if w.Outcome.IsFinal() {
		return ErrOutcomeFinal
	}
	if !outcome.IsValid() || !outcome.IsFinal() {
		return ErrOutcomeFinal
	}
	w.Outcome = outcome
	w.OutcomeDetail = detail
	w.NextRetryAt = nil
	return nil
}

// ScheduleRetry sets the next re-drive time for a deferred event
func (w *WebhookEvent) ScheduleRetry(at time.Time) {
	w.NextRetryAt = &at
}

// TrackingEvent reconstructs the canonical event from the logged fields for
// re-driving deferred entries. Rows logged before OccurredAt was persisted
// fall back to the receipt time.
func (w *WebhookEvent) TrackingEvent() *TrackingEvent {
	occurredAt := w.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = w.ReceivedAt
	}
	return &TrackingEvent{
		Carrier:           w.Carrier,
		TransporterID:     w.TransporterID,
		AWB:               w.AWB,
		ExternalEventID:   w.ExternalEventID,
		CarrierStatusCode: w.CarrierStatusCode,
		RawPayload:        w.RawPayload,
		OccurredAt:        occurredAt,
	}
}

// EventFilter defines audit query criteria for the webhook event log
type EventFilter struct {
	Carrier       *Code
	TransporterID *uuid.UUID
	AWB           string
	Outcome       *EventOutcome
	Since         *time.Time
	Until         *time.Time
	SortBy        string
	SortDir       string
	Page          int
	PageSize      int
}

// WebhookEventRepository defines persistence for the webhook event log
type WebhookEventRepository interface {
	// Append writes a new log entry
	Append(ctx context.Context, ev *WebhookEvent) error

	// FindByKey finds the most recent entry with the given idempotency key
	// and a final outcome
	FindByKey(ctx context.Context, key string) (*WebhookEvent, error)

	// FindDeferredDue returns deferred entries whose retry time has passed
	FindDeferredDue(ctx context.Context, now time.Time, limit int) ([]WebhookEvent, error)

	// Update persists outcome finalization or retry scheduling on a
	// deferred entry
	Update(ctx context.Context, ev *WebhookEvent) error

	// List returns log entries matching the filter, newest first
	List(ctx context.Context, filter EventFilter) ([]WebhookEvent, int64, error)
}
