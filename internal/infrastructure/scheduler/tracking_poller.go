package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oms/backend/internal/application/tracking"
	"github.com/oms/backend/internal/domain/delivery"
)

// ---------------------------------------------------------------------------
// TrackingPollerConfig
// ---------------------------------------------------------------------------

// TrackingPollerConfig holds configuration for the tracking poll loop
type TrackingPollerConfig struct {
	// Interval is how often each transporter's open deliveries are polled
	Interval time.Duration

	// BatchSize caps open deliveries fetched per transporter per cycle
	BatchSize int
}

// DefaultTrackingPollerConfig returns default configuration
func DefaultTrackingPollerConfig() TrackingPollerConfig {
	return TrackingPollerConfig{
		Interval:  15 * time.Minute,
		BatchSize: 100,
	}
}

// ---------------------------------------------------------------------------
// TrackingPoller
// ---------------------------------------------------------------------------

// TrackingPoller periodically pulls carrier tracking for every enabled
// transporter, covering AWBs whose webhooks were missed.
type TrackingPoller struct {
	config       TrackingPollerConfig
	service      *tracking.TrackingService
	transporters delivery.TransporterRepository
	logger       *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewTrackingPoller creates a new tracking poll loop
func NewTrackingPoller(
	config TrackingPollerConfig,
	service *tracking.TrackingService,
	transporters delivery.TransporterRepository,
	logger *zap.Logger,
) *TrackingPoller {
	return &TrackingPoller{
		config:       config,
		service:      service,
		transporters: transporters,
		logger:       logger,
	}
}

// Start starts the poll loop
func (p *TrackingPoller) Start(ctx context.Context) error {
	if p.config.Interval <= 0 || p.config.BatchSize <= 0 {
		return ErrInvalidConfig
	}

	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.runLoop(ctx)

	p.logger.Info("Tracking poller started",
		zap.Duration("interval", p.config.Interval),
		zap.Int("batch_size", p.config.BatchSize),
	)

	return nil
}

// Stop stops the poll loop
func (p *TrackingPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Tracking poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop polls all transporters on every tick
func (p *TrackingPoller) runLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	p.pollAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

// pollAll runs one poll cycle over every enabled transporter
func (p *TrackingPoller) pollAll(ctx context.Context) {
	transporters, err := p.transporters.FindEnabled(ctx)
	if err != nil {
		p.logger.Error("Failed to list enabled transporters", zap.Error(err))
		return
	}

	for i := range transporters {
		t := &transporters[i]
		if !t.HasCapability(delivery.CapabilityTrack) {
			continue
		}

		report, err := p.service.Poll(ctx, t.ID, p.config.BatchSize)
		if err != nil {
			p.logger.Error("Poll cycle failed",
				zap.String("transporter_id", t.ID.String()),
				zap.String("carrier_code", t.CarrierCode),
				zap.Error(err),
			)
			continue
		}

		if report.Checked > 0 {
			p.logger.Info("Poll cycle completed",
				zap.String("transporter_id", t.ID.String()),
				zap.String("carrier_code", t.CarrierCode),
				zap.Int("checked", report.Checked),
				zap.Int("updated", report.Updated),
				zap.Int("failed", report.Failed),
			)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
