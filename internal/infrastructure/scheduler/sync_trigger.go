package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncapp "github.com/oms/backend/internal/application/sync"
	"github.com/oms/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// SyncTriggerConfig
// ---------------------------------------------------------------------------

// SyncTriggerConfig holds configuration for the marketplace sync trigger
type SyncTriggerConfig struct {
	// CheckInterval is how often connections are checked for due syncs
	CheckInterval time.Duration

	// OrderInterval is how often order syncs run per connection
	OrderInterval time.Duration

	// InventoryInterval is how often inventory syncs run per connection
	InventoryInterval time.Duration

	// SettlementInterval is how often settlement syncs run per connection
	SettlementInterval time.Duration
}

// DefaultSyncTriggerConfig returns default configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		CheckInterval:      time.Minute,
		OrderInterval:      15 * time.Minute,
		InventoryInterval:  time.Hour,
		SettlementInterval: 24 * time.Hour,
	}
}

// intervalFor returns the configured interval for a job type
func (c SyncTriggerConfig) intervalFor(jobType marketplace.JobType) time.Duration {
	switch jobType {
	case marketplace.JobTypeOrder:
		return c.OrderInterval
	case marketplace.JobTypeInventory:
		return c.InventoryInterval
	case marketplace.JobTypeSettlement:
		return c.SettlementInterval
	default:
		return 0
	}
}

// ---------------------------------------------------------------------------
// SyncTrigger
// ---------------------------------------------------------------------------

// SyncTrigger schedules marketplace sync jobs for active connections on
// their configured cadence. The single-running invariant is enforced by the
// job repository; this trigger only decides when to attempt a start.
type SyncTrigger struct {
	config      SyncTriggerConfig
	coordinator *syncapp.Coordinator
	connections marketplace.ConnectionRepository
	logger      *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Track last trigger time per connection/job type to avoid hammering
	// a connection whose sync keeps failing fast
	lastTriggeredMu sync.RWMutex
	lastTriggered   map[string]time.Time
}

// NewSyncTrigger creates a new marketplace sync trigger
func NewSyncTrigger(
	config SyncTriggerConfig,
	coordinator *syncapp.Coordinator,
	connections marketplace.ConnectionRepository,
	logger *zap.Logger,
) *SyncTrigger {
	return &SyncTrigger{
		config:        config,
		coordinator:   coordinator,
		connections:   connections,
		logger:        logger,
		lastTriggered: make(map[string]time.Time),
	}
}

// Start starts the trigger loop
func (t *SyncTrigger) Start(ctx context.Context) error {
	if t.config.CheckInterval <= 0 {
		return ErrInvalidConfig
	}

	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Marketplace sync trigger started",
		zap.Duration("check_interval", t.config.CheckInterval),
		zap.Duration("order_interval", t.config.OrderInterval),
		zap.Duration("inventory_interval", t.config.InventoryInterval),
		zap.Duration("settlement_interval", t.config.SettlementInterval),
	)

	return nil
}

// Stop stops the trigger loop
func (t *SyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Marketplace sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop checks for due syncs on every tick
func (t *SyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	// Run immediately on start
	t.checkAndTrigger(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs due syncs for every active connection
func (t *SyncTrigger) checkAndTrigger(ctx context.Context) {
	connections, err := t.connections.FindActive(ctx)
	if err != nil {
		t.logger.Error("Failed to list active connections", zap.Error(err))
		return
	}

	now := time.Now()

	for _, conn := range connections {
		for _, jobType := range marketplace.AllJobTypes() {
			if !t.isDue(conn, jobType, now) {
				continue
			}

			t.markTriggered(conn.ID, jobType, now)

			job, err := t.coordinator.Sync(ctx, conn.ID, jobType)
			switch {
			case errors.Is(err, marketplace.ErrJobAlreadyRunning):
				t.logger.Debug("Sync slot occupied, skipping",
					zap.String("connection_id", conn.ID.String()),
					zap.String("job_type", jobType.String()),
				)
			case err != nil:
				t.logger.Error("Scheduled sync failed",
					zap.String("connection_id", conn.ID.String()),
					zap.String("job_type", jobType.String()),
					zap.Error(err),
				)
			default:
				t.logger.Info("Scheduled sync completed",
					zap.String("connection_id", conn.ID.String()),
					zap.String("job_type", jobType.String()),
					zap.String("job_id", job.ID.String()),
					zap.Int("records_synced", job.RecordsSynced),
				)
			}

			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

// isDue reports whether a sync should run for this connection and job type
func (t *SyncTrigger) isDue(conn *marketplace.Connection, jobType marketplace.JobType, now time.Time) bool {
	interval := t.config.intervalFor(jobType)
	if interval <= 0 {
		return false
	}

	key := t.makeKey(conn.ID, jobType)
	t.lastTriggeredMu.RLock()
	lastTriggered, exists := t.lastTriggered[key]
	t.lastTriggeredMu.RUnlock()

	if exists && now.Sub(lastTriggered) < interval {
		return false
	}

	if lastSynced, ok := conn.LastSyncedAt[jobType]; ok && now.Sub(lastSynced) < interval {
		return false
	}

	return true
}

// makeKey creates a unique key for a connection/job type pair
func (t *SyncTrigger) makeKey(connectionID uuid.UUID, jobType marketplace.JobType) string {
	return connectionID.String() + ":" + jobType.String()
}

// markTriggered records the last trigger time for a connection/job type
func (t *SyncTrigger) markTriggered(connectionID uuid.UUID, jobType marketplace.JobType, at time.Time) {
	key := t.makeKey(connectionID, jobType)
	t.lastTriggeredMu.Lock()
	t.lastTriggered[key] = at
	t.lastTriggeredMu.Unlock()
}

// Stats returns trigger loop statistics
func (t *SyncTrigger) Stats() map[string]interface{} {
	t.lastTriggeredMu.RLock()
	defer t.lastTriggeredMu.RUnlock()

	stats := make(map[string]interface{})
	stats["is_running"] = t.isRunning
	stats["check_interval"] = t.config.CheckInterval.String()
	stats["tracked_pairs"] = len(t.lastTriggered)
	return stats
}
