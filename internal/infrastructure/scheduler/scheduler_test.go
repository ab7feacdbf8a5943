package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oms/backend/internal/application/tracking"
	"github.com/oms/backend/internal/domain/carrier"
	"github.com/oms/backend/internal/domain/delivery"
	"github.com/oms/backend/internal/domain/marketplace"
)

// emptyEventRepo has no deferred events; retry cycles are no-ops
type emptyEventRepo struct {
	findCalls atomic.Int32
}

func (r *emptyEventRepo) Append(context.Context, *carrier.WebhookEvent) error { return nil }

func (r *emptyEventRepo) FindByKey(context.Context, string) (*carrier.WebhookEvent, error) {
	return nil, carrier.ErrEventNotFound
}

func (r *emptyEventRepo) FindDeferredDue(context.Context, time.Time, int) ([]carrier.WebhookEvent, error) {
	r.findCalls.Add(1)
	return nil, nil
}

func (r *emptyEventRepo) Update(context.Context, *carrier.WebhookEvent) error { return nil }

func (r *emptyEventRepo) List(context.Context, carrier.EventFilter) ([]carrier.WebhookEvent, int64, error) {
	return nil, 0, nil
}

// emptyTransporterRepo has no transporters; poll cycles are no-ops
type emptyTransporterRepo struct {
	findCalls atomic.Int32
}

func (r *emptyTransporterRepo) FindByID(context.Context, uuid.UUID) (*delivery.Transporter, error) {
	return nil, delivery.ErrTransporterNotFound
}

func (r *emptyTransporterRepo) FindEnabled(context.Context) ([]delivery.Transporter, error) {
	r.findCalls.Add(1)
	return nil, nil
}

func (r *emptyTransporterRepo) FindEnabledByCompany(context.Context, uuid.UUID) ([]delivery.Transporter, error) {
	return nil, nil
}

func (r *emptyTransporterRepo) Save(context.Context, *delivery.Transporter) error { return nil }

func TestDeferredRetryLoop_Lifecycle(t *testing.T) {
	events := &emptyEventRepo{}
	pipeline := tracking.NewStatusPipeline(
		nil, nil, events,
		carrier.NewDefaultStatusMapper(),
		nil, nil,
		tracking.DefaultPipelineConfig(),
		zap.NewNop(),
	)

	loop := NewDeferredRetryLoop(DeferredRetryConfig{
		Interval:  5 * time.Millisecond,
		BatchSize: 10,
	}, pipeline, zap.NewNop())

	require.NoError(t, loop.Start(context.Background()))
	// Second start is a no-op
	require.NoError(t, loop.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return events.findCalls.Load() >= 2
	}, time.Second, time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, loop.Stop(stopCtx))
	require.NoError(t, loop.Stop(stopCtx))
}

func TestDeferredRetryLoop_InvalidConfig(t *testing.T) {
	loop := NewDeferredRetryLoop(DeferredRetryConfig{}, nil, zap.NewNop())

	assert.ErrorIs(t, loop.Start(context.Background()), ErrInvalidConfig)
}

func TestTrackingPoller_Lifecycle(t *testing.T) {
	transporters := &emptyTransporterRepo{}
	poller := NewTrackingPoller(TrackingPollerConfig{
		Interval:  5 * time.Millisecond,
		BatchSize: 10,
	}, nil, transporters, zap.NewNop())

	require.NoError(t, poller.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return transporters.findCalls.Load() >= 2
	}, time.Second, time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, poller.Stop(stopCtx))
}

func TestTrackingPoller_InvalidConfig(t *testing.T) {
	poller := NewTrackingPoller(TrackingPollerConfig{Interval: time.Minute}, nil, nil, zap.NewNop())

	assert.ErrorIs(t, poller.Start(context.Background()), ErrInvalidConfig)
}

func TestSyncTrigger_IsDue(t *testing.T) {
	config := SyncTriggerConfig{
		CheckInterval:      time.Minute,
		OrderInterval:      15 * time.Minute,
		InventoryInterval:  time.Hour,
		SettlementInterval: 0,
	}
	trigger := NewSyncTrigger(config, nil, nil, zap.NewNop())

	conn, err := marketplace.NewConnection(uuid.New(), marketplace.CodeShopify, "Main Store", marketplace.Credentials{AccessToken: "token"})
	require.NoError(t, err)

	now := time.Now()

	t.Run("never-synced connection is due", func(t *testing.T) {
		assert.True(t, trigger.isDue(conn, marketplace.JobTypeOrder, now))
	})

	t.Run("zero interval disables the job type", func(t *testing.T) {
		assert.False(t, trigger.isDue(conn, marketplace.JobTypeSettlement, now))
	})

	t.Run("recent sync suppresses the next run", func(t *testing.T) {
		conn.MarkSynced(marketplace.JobTypeOrder, now.Add(-5*time.Minute))
		assert.False(t, trigger.isDue(conn, marketplace.JobTypeOrder, now))
		assert.True(t, trigger.isDue(conn, marketplace.JobTypeOrder, now.Add(11*time.Minute)))
	})

	t.Run("recent trigger attempt suppresses retries", func(t *testing.T) {
		other, err := marketplace.NewConnection(uuid.New(), marketplace.CodeAmazon, "Amazon IN", marketplace.Credentials{AccessToken: "token"})
		require.NoError(t, err)

		require.True(t, trigger.isDue(other, marketplace.JobTypeInventory, now))
		trigger.markTriggered(other.ID, marketplace.JobTypeInventory, now)

		assert.False(t, trigger.isDue(other, marketplace.JobTypeInventory, now.Add(30*time.Minute)))
		assert.True(t, trigger.isDue(other, marketplace.JobTypeInventory, now.Add(2*time.Hour)))
	})
}

func TestSyncTrigger_InvalidConfig(t *testing.T) {
	trigger := NewSyncTrigger(SyncTriggerConfig{}, nil, nil, zap.NewNop())

	assert.ErrorIs(t, trigger.Start(context.Background()), ErrInvalidConfig)
}
