package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed event keys to short-circuit duplicate
// webhook deliveries before they hit the database.
// The event log remains the authoritative dedupe record; this store is a
// fast path shared across process instances.
type IdempotencyStore interface {
	// MarkProcessed marks an event key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an event key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for webhook dedupe handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for processed event keys.
	// Carriers retry webhooks for at most a few days; after the TTL the
	// event log alone handles dedupe.
	TTL time.Duration

	// Enabled determines whether the fast-path check is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default dedupe configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     72 * time.Hour,
		Enabled: true,
	}
}
