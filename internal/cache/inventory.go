package cache

import (
	"context"
	"log/slog"
	"time"

	"carlot/internal/middleware"
)

const (
	CarKeyPrefix = "car:"
)

const (
	CarTTL = 5 * time.Minute

	// InvalidationHold is how long a tombstone blocks re-caching an invalidated key.
	InvalidationHold = 10 * time.Second
)

// tombstone marks a key invalidated by a write. Aside never overwrites it.
var tombstone = []byte("-")

// CarKey is the cache key of a single car document.
func CarKey(carID string) string {
	return CarKeyPrefix + carID
}

// Invalidate replaces keys with a short-lived tombstone. A reader that loaded
// the row before the write committed then cannot cache the old value.
// It is a no-op without Redis.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	pipe := client.Pipeline()
	for _, key := range keys {
		pipe.Set(ctx, key, tombstone, InvalidationHold)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed",
			slog.Int("keys", len(keys)), slog.String("error", err.Error()))
	}
}

// InvalidateCars drops the cached documents of the given cars.
func InvalidateCars(ctx context.Context, carIDs ...string) {
	keys := make([]string, 0, len(carIDs))
	for _, id := range carIDs {
		keys = append(keys, CarKey(id))
	}
	Invalidate(ctx, keys...)
}
