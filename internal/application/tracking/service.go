package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
)

// PollReport summarizes one bulk polling pass over a transporter's open
// deliveries.
type PollReport struct {
	TransporterID uuid.UUID `json:"transporter_id"`
	Checked       int       `json:"checked"`
	Updated       int       `json:"updated"`
	Failed        int       `json:"failed"`
}

// TrackingService exposes tracking reads and the pull-based entry points
// into the status pipeline.
type TrackingService struct {
	pipeline     *StatusPipeline
	deliveries   delivery.Repository
	transporters delivery.TransporterRepository
	events       carrier.WebhookEventRepository
	carriers     carrier.Registry
	logger       *zap.Logger
}

// NewTrackingService creates a tracking service
func NewTrackingService(
	pipeline *StatusPipeline,
	deliveries delivery.Repository,
	transporters delivery.TransporterRepository,
	events carrier.WebhookEventRepository,
	carriers carrier.Registry,
	logger *zap.Logger,
) *TrackingService {
	return &TrackingService{
		pipeline:     pipeline,
		deliveries:   deliveries,
		transporters: transporters,
		events:       events,
		carriers:     carriers,
		logger:       logger,
	}
}

// ---------------------------------------------------------------------------
// Pull-based tracking
// ---------------------------------------------------------------------------

// Refresh pulls the latest tracking events for one delivery from its carrier
// and runs them through the pipeline. Used for on-demand refresh from the API.
func (s *TrackingService) Refresh(ctx context.Context, deliveryID uuid.UUID) (*delivery.Delivery, error) {
	d, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d.AWB == "" {
		return nil, delivery.ErrEmptyAWB
	}

	t, err := s.transporters.FindByID(ctx, d.TransporterID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.carriers.Resolve(carrier.Code(t.CarrierCode))
	if err != nil {
		return nil, err
	}

	results, err := adapter.Track(ctx, t.Credentials, []string{d.AWB})
	if err != nil {
		return nil, fmt.Errorf("carrier track failed: %w", err)
	}

	for _, res := range results {
		if res.Err != nil {
			return nil, fmt.Errorf("carrier track failed for AWB %s: %w", res.AWB, res.Err)
		}
		for i := range res.Events {
			ev := &res.Events[i]
			ev.TransporterID = t.ID
			if _, err := s.pipeline.Process(ctx, ev, delivery.SourceManual); err != nil {
				return nil, err
			}
		}
	}

	// Reload to observe the applied transitions
	return s.deliveries.FindByID(ctx, deliveryID)
}

// Poll runs one bulk polling pass over a transporter's open deliveries.
// Per-AWB carrier failures are counted, not fatal; the pass continues.
func (s *TrackingService) Poll(ctx context.Context, transporterID uuid.UUID, batchSize int) (*PollReport, error) {
	t, err := s.transporters.FindByID(ctx, transporterID)
	if err != nil {
		return nil, err
	}
	if !t.Enabled {
		return nil, delivery.ErrTransporterDisabled
	}
	if !t.HasCapability(delivery.CapabilityTrack) {
		return nil, delivery.ErrCarrierNotCapable
	}

	adapter, err := s.carriers.Resolve(carrier.Code(t.CarrierCode))
	if err != nil {
		return nil, err
	}

	open, err := s.deliveries.FindOpenByTransporter(ctx, transporterID, batchSize)
	if err != nil {
		return nil, err
	}

	report := &PollReport{TransporterID: transporterID}
	if len(open) == 0 {
		return report, nil
	}

	awbs := make([]string, 0, len(open))
	for i := range open {
		if open[i].AWB != "" {
			awbs = append(awbs, open[i].AWB)
		}
	}
	report.Checked = len(awbs)

	results, err := adapter.Track(ctx, t.Credentials, awbs)
	if err != nil {
		return nil, fmt.Errorf("carrier track failed: %w", err)
	}

	for _, res := range results {
		if res.Err != nil {
			report.Failed++
			s.logger.Warn("Polling failed for AWB",
				zap.String("awb", res.AWB),
				zap.String("carrier", t.CarrierCode),
				zap.Error(res.Err),
			)
			continue
		}
		for i := range res.Events {
			ev := &res.Events[i]
			ev.TransporterID = t.ID
			outcome, err := s.pipeline.Process(ctx, ev, delivery.SourcePoll)
			if err != nil {
				report.Failed++
				s.logger.Error("Failed to process polled event",
					zap.String("awb", ev.AWB),
					zap.Error(err),
				)
				continue
			}
			if outcome == carrier.OutcomeApplied {
				report.Updated++
			}
		}
	}

	t.MarkPolled(time.Now())
	if err := s.transporters.Save(ctx, t); err != nil {
		s.logger.Warn("Failed to record poll time",
			zap.String("transporter_id", transporterID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("Polling pass completed",
		zap.String("transporter_id", transporterID.String()),
		zap.Int("checked", report.Checked),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// ---------------------------------------------------------------------------
// Manual override
// ---------------------------------------------------------------------------

// Override forces a delivery to the given status outside the transition
// graph. Reserved for operator correction of carrier mistakes; the override
// is recorded in the status history like any other transition.
func (s *TrackingService) Override(ctx context.Context, deliveryID uuid.UUID, target delivery.DeliveryStatus) (*delivery.Delivery, error) {
	d, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if err := d.Override(target, time.Now()); err != nil {
		return nil, err
	}
	if err := s.deliveries.Save(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("Delivery status overridden",
		zap.String("delivery_id", deliveryID.String()),
		zap.String("status", string(target)),
	)
	return d, nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// GetDelivery returns a delivery with its status history
func (s *TrackingService) GetDelivery(ctx context.Context, id uuid.UUID) (*delivery.Delivery, error) {
	return s.deliveries.FindByID(ctx, id)
}

// FindByAWB resolves a delivery from its tracking identifiers
func (s *TrackingService) FindByAWB(ctx context.Context, transporterID uuid.UUID, awb string) (*delivery.Delivery, error) {
	return s.deliveries.FindByTransporterAndAWB(ctx, transporterID, awb)
}

// ListEvents returns webhook event log entries matching the filter
func (s *TrackingService) ListEvents(ctx context.Context, filter carrier.EventFilter) ([]carrier.WebhookEvent, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return s.events.List(ctx, filter)
}
