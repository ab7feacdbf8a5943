package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
	"github.com/oms/backend/internal/domain/shared"
	"github.com/oms/backend/internal/infrastructure/telemetry"
)

// TransactionalApplier persists a delivery update and its event log entry
// atomically. Either both land or neither does; a crash between the two can
// never leave an applied event unlogged or a logged event unapplied.
type TransactionalApplier interface {
	ApplyAndLog(ctx context.Context, d *delivery.Delivery, ev *carrier.WebhookEvent) error
}

// PipelineConfig tunes the status pipeline
type PipelineConfig struct {
	// DeferWindow bounds how long an event for an unknown AWB is retried
	// before it is finalized REJECTED
	DeferWindow time.Duration
	// DeferRetryInterval is the spacing between re-drives of a deferred event
	DeferRetryInterval time.Duration
	// DedupeTTL is the lifetime of fast-path dedupe marks
	DedupeTTL time.Duration
}

// DefaultPipelineConfig returns the default pipeline tuning
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		DeferWindow:        30 * time.Minute,
		DeferRetryInterval: 2 * time.Minute,
		DedupeTTL:          shared.DefaultIdempotencyConfig().TTL,
	}
}

// StatusPipeline is the single choke point every tracking event passes
// through, regardless of source. It dedupes, resolves the target delivery,
// maps the carrier status, validates the transition, and atomically persists
// the outcome alongside the event log entry.
type StatusPipeline struct {
	deliveries   delivery.Repository
	transporters delivery.TransporterRepository
	events       carrier.WebhookEventRepository
	mapper       *carrier.StatusMapper
	dedupe       shared.IdempotencyStore
	applier      TransactionalApplier
	locks        *awbLocks
	config       PipelineConfig
	logger       *zap.Logger
}

// NewStatusPipeline creates a status pipeline
func NewStatusPipeline(
	deliveries delivery.Repository,
	transporters delivery.TransporterRepository,
	events carrier.WebhookEventRepository,
	mapper *carrier.StatusMapper,
	dedupe shared.IdempotencyStore,
	applier TransactionalApplier,
	config PipelineConfig,
	logger *zap.Logger,
) *StatusPipeline {
	return &StatusPipeline{
		deliveries:   deliveries,
		transporters: transporters,
		events:       events,
		mapper:       mapper,
		dedupe:       dedupe,
		applier:      applier,
		locks:        newAWBLocks(),
		config:       config,
		logger:       logger,
	}
}

// ---------------------------------------------------------------------------
// Event processing
// ---------------------------------------------------------------------------

// Process runs one tracking event through the pipeline and returns its
// outcome. Every inbound event leaves a log entry; processing the same event
// any number of times yields exactly one APPLIED entry.
func (p *StatusPipeline) Process(ctx context.Context, ev *carrier.TrackingEvent, source delivery.EventSource) (carrier.EventOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pipeline", "process",
		telemetry.WithAttribute(telemetry.SpanAttrCarrier, ev.Carrier.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAWB, ev.AWB),
	)
	defer span.End()

	key := ev.IdempotencyKey()

	release := p.locks.Acquire(lockKey(ev.TransporterID.String(), ev.AWB))
	defer release()

	// Fast-path dedupe. A cache miss is never trusted on its own; the event
	// log below is the authority.
	seen, err := p.dedupe.IsProcessed(ctx, key)
	if err != nil {
		p.logger.Warn("Dedupe cache lookup failed, falling through to event log",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
	}
	if !seen {
		prior, err := p.events.FindByKey(ctx, key)
		if err != nil && !errors.Is(err, carrier.ErrEventNotFound) {
			return "", fmt.Errorf("event log lookup failed: %w", err)
		}
		if prior == nil {
			return p.processNew(ctx, ev, source, key)
		}
	}

	// Duplicate delivery of an already-finalized event. Logged as its own
	// entry so the audit trail shows every arrival.
	entry := carrier.NewWebhookEvent(ev, carrier.OutcomeDuplicate, "event already processed")
	if err := p.events.Append(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to log duplicate event: %w", err)
	}
	return carrier.OutcomeDuplicate, nil
}

// processNew handles an event not seen before. Caller holds the AWB lock.
func (p *StatusPipeline) processNew(ctx context.Context, ev *carrier.TrackingEvent, source delivery.EventSource, key string) (carrier.EventOutcome, error) {
	d, err := p.deliveries.FindByTransporterAndAWB(ctx, ev.TransporterID, ev.AWB)
	if err != nil {
		if errors.Is(err, delivery.ErrDeliveryNotFound) {
			return p.deferEvent(ctx, ev)
		}
		return "", fmt.Errorf("delivery lookup failed: %w", err)
	}

	outcome, detail := p.apply(d, ev, source)
	entry := carrier.NewWebhookEvent(ev, outcome, detail)

	if outcome == carrier.OutcomeApplied {
		err := p.applier.ApplyAndLog(ctx, d, entry)
		if errors.Is(err, carrier.ErrDuplicateEvent) {
			// Another replica won the applied slot between the log lookup
			// and the write. Record this arrival as a duplicate instead.
			outcome = carrier.OutcomeDuplicate
			entry = carrier.NewWebhookEvent(ev, outcome, "event already applied")
			err = p.events.Append(ctx, entry)
		}
		if err != nil {
			return "", fmt.Errorf("failed to apply event: %w", err)
		}
	} else {
		if err := p.events.Append(ctx, entry); err != nil {
			return "", fmt.Errorf("failed to log event: %w", err)
		}
	}

	p.markProcessed(ctx, key)

	p.logger.Info("Tracking event processed",
		zap.String("carrier", string(ev.Carrier)),
		zap.String("awb", ev.AWB),
		zap.String("carrier_status", ev.CarrierStatusCode),
		zap.String("outcome", string(outcome)),
		zap.String("source", string(source)),
	)
	return outcome, nil
}

// apply maps the carrier status and attempts the transition in memory.
// Returns the outcome and a human-readable detail.
func (p *StatusPipeline) apply(d *delivery.Delivery, ev *carrier.TrackingEvent, source delivery.EventSource) (carrier.EventOutcome, string) {
	target, _, known := p.mapper.Map(ev.Carrier, ev.CarrierStatusCode)
	detail := ""
	if !known {
		// Unknown carrier codes surface as EXCEPTION instead of being
		// dropped, so operators see them
		detail = fmt.Sprintf("unmapped carrier status %q", ev.CarrierStatusCode)
		p.logger.Warn("Unmapped carrier status code",
			zap.String("carrier", string(ev.Carrier)),
			zap.String("carrier_status", ev.CarrierStatusCode),
			zap.String("awb", ev.AWB),
		)
	}

	if err := d.ApplyTransition(target, source, ev.CarrierStatusCode, ev.OccurredAt); err != nil {
		return carrier.OutcomeRejected, fmt.Sprintf("transition %s -> %s not allowed", d.Status, target)
	}
	return carrier.OutcomeApplied, detail
}

// deferEvent logs the event DEFERRED and schedules its first re-drive
func (p *StatusPipeline) deferEvent(ctx context.Context, ev *carrier.TrackingEvent) (carrier.EventOutcome, error) {
	entry := carrier.NewWebhookEvent(ev, carrier.OutcomeDeferred, "no delivery found for AWB")
	entry.ScheduleRetry(time.Now().Add(p.config.DeferRetryInterval))
	if err := p.events.Append(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to log deferred event: %w", err)
	}
	p.logger.Info("Tracking event deferred, AWB not yet known",
		zap.String("carrier", string(ev.Carrier)),
		zap.String("awb", ev.AWB),
	)
	return carrier.OutcomeDeferred, nil
}

// RecordMalformed logs a webhook payload the carrier adapter could not
// parse. The entry is REJECTED outright; the carrier still gets a 2xx so it
// does not redeliver a payload that can never parse.
func (p *StatusPipeline) RecordMalformed(ctx context.Context, code carrier.Code, transporterID uuid.UUID, rawPayload, detail string) error {
	entry := carrier.NewMalformedWebhookEvent(code, transporterID, rawPayload, detail)
	if err := p.events.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to log malformed payload: %w", err)
	}
	p.logger.Warn("Malformed webhook payload rejected",
		zap.String("carrier", string(code)),
		zap.String("transporter_id", transporterID.String()),
		zap.String("detail", detail),
	)
	return nil
}

// markProcessed sets the fast-path dedupe mark. Best effort: the event log
// already holds the authoritative record.
func (p *StatusPipeline) markProcessed(ctx context.Context, key string) {
	if _, err := p.dedupe.MarkProcessed(ctx, key, p.config.DedupeTTL); err != nil {
		p.logger.Warn("Failed to set dedupe mark",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
	}
}

// ---------------------------------------------------------------------------
// Deferred event re-drive
// ---------------------------------------------------------------------------

// RetryDeferred re-drives deferred events whose retry time has come. Events
// whose delivery now exists are finalized with the apply result; events still
// unresolved past the defer window are finalized REJECTED; the rest are
// rescheduled. Returns the number of events finalized.
func (p *StatusPipeline) RetryDeferred(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := p.events.FindDeferredDue(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list deferred events: %w", err)
	}

	finalized := 0
	for i := range due {
		entry := &due[i]
		done, err := p.retryOne(ctx, entry, now)
		if err != nil {
			p.logger.Error("Failed to re-drive deferred event",
				zap.String("event_id", entry.ID.String()),
				zap.String("awb", entry.AWB),
				zap.Error(err),
			)
			continue
		}
		if done {
			finalized++
		}
	}
	return finalized, nil
}

func (p *StatusPipeline) retryOne(ctx context.Context, entry *carrier.WebhookEvent, now time.Time) (bool, error) {
	release := p.locks.Acquire(lockKey(entry.TransporterID.String(), entry.AWB))
	defer release()

	d, err := p.deliveries.FindByTransporterAndAWB(ctx, entry.TransporterID, entry.AWB)
	if err != nil {
		if !errors.Is(err, delivery.ErrDeliveryNotFound) {
			return false, err
		}
		if now.Sub(entry.ReceivedAt) >= p.config.DeferWindow {
			// Window exhausted without the delivery appearing
			if err := entry.Finalize(carrier.OutcomeRejected, "defer window expired, AWB never registered"); err != nil {
				return false, err
			}
			if err := p.events.Update(ctx, entry); err != nil {
				return false, err
			}
			p.logger.Warn("Deferred event expired",
				zap.String("awb", entry.AWB),
				zap.String("carrier", string(entry.Carrier)),
			)
			return true, nil
		}
		entry.ScheduleRetry(now.Add(p.config.DeferRetryInterval))
		return false, p.events.Update(ctx, entry)
	}

	// Delivery appeared; apply the reconstructed event
	ev := entry.TrackingEvent()
	outcome, detail := p.apply(d, ev, delivery.SourceWebhook)

	if outcome == carrier.OutcomeApplied {
		applied := *entry
		if err := applied.Finalize(outcome, detail); err != nil {
			return false, err
		}
		err := p.applier.ApplyAndLog(ctx, d, &applied)
		if err == nil {
			p.markProcessed(ctx, entry.IdempotencyKey)
			return true, nil
		}
		if !errors.Is(err, carrier.ErrDuplicateEvent) {
			return false, err
		}
		// Another replica applied the same event while this entry sat
		// deferred; the write rolled back, so the row is still DEFERRED.
		outcome, detail = carrier.OutcomeDuplicate, "event already applied"
	}

	if err := entry.Finalize(outcome, detail); err != nil {
		return false, err
	}
	if err := p.events.Update(ctx, entry); err != nil {
		return false, err
	}
	p.markProcessed(ctx, entry.IdempotencyKey)
	return true, nil
}

func lockKey(transporterID, awb string) string {
	return transporterID + ":" + awb
}
