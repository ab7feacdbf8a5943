package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oms/backend/internal/application/tracking"
)

// ---------------------------------------------------------------------------
// DeferredRetryConfig
// ---------------------------------------------------------------------------

// DeferredRetryConfig holds configuration for the deferred event retry loop
type DeferredRetryConfig struct {
	// Interval is how often due deferred events are re-driven
	Interval time.Duration

	// BatchSize caps deferred events picked up per cycle
	BatchSize int
}

// DefaultDeferredRetryConfig returns default configuration
func DefaultDeferredRetryConfig() DeferredRetryConfig {
	return DeferredRetryConfig{
		Interval:  time.Minute,
		BatchSize: 200,
	}
}

// ---------------------------------------------------------------------------
// DeferredRetryLoop
// ---------------------------------------------------------------------------

// DeferredRetryLoop re-drives webhook events that arrived before their
// delivery was registered locally.
type DeferredRetryLoop struct {
	config   DeferredRetryConfig
	pipeline *tracking.StatusPipeline
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewDeferredRetryLoop creates a new deferred event retry loop
func NewDeferredRetryLoop(config DeferredRetryConfig, pipeline *tracking.StatusPipeline, logger *zap.Logger) *DeferredRetryLoop {
	return &DeferredRetryLoop{
		config:   config,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Start starts the retry loop
func (l *DeferredRetryLoop) Start(ctx context.Context) error {
	if l.config.Interval <= 0 || l.config.BatchSize <= 0 {
		return ErrInvalidConfig
	}

	l.mu.Lock()
	if l.isRunning {
		l.mu.Unlock()
		return nil
	}
	l.isRunning = true
	l.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	l.wg.Add(1)
	go l.runLoop(ctx)

	l.logger.Info("Deferred event retry loop started",
		zap.Duration("interval", l.config.Interval),
		zap.Int("batch_size", l.config.BatchSize),
	)

	return nil
}

// Stop stops the retry loop
func (l *DeferredRetryLoop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.isRunning {
		l.mu.Unlock()
		return nil
	}
	l.isRunning = false
	l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info("Deferred event retry loop stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop re-drives due deferred events on every tick
func (l *DeferredRetryLoop) runLoop(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.retryDue(ctx)
		}
	}
}

// retryDue runs one retry cycle
func (l *DeferredRetryLoop) retryDue(ctx context.Context) {
	resolved, err := l.pipeline.RetryDeferred(ctx, time.Now(), l.config.BatchSize)
	if err != nil {
		l.logger.Error("Deferred retry cycle failed", zap.Error(err))
		return
	}
	if resolved > 0 {
		l.logger.Info("Deferred events resolved", zap.Int("count", resolved))
	}
}
