package dedupe

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisWindow is a Window backed by Redis SET NX with a TTL, for deployments
// where several runtime replicas serve the same funnel. Expiry is handled by
// Redis itself, so no sweep is needed.
type RedisWindow struct {
	client   redis.UniversalClient
	interval time.Duration
	prefix   string
	logger   *slog.Logger
}

// NewRedisWindow creates a Redis-backed window store.
func NewRedisWindow(client redis.UniversalClient, interval time.Duration, logger *slog.Logger) *RedisWindow {
	return &RedisWindow{
		client:   client,
		interval: interval,
		prefix:   "leadrail:event:",
		logger:   logger.With("module", "dedupe_redis"),
	}
}

// Allow implements Window. On a Redis error the event is allowed through: a
// duplicate funnel event is preferable to losing one.
func (w *RedisWindow) Allow(ctx context.Context, key string) bool {
	ok, err := w.client.SetNX(ctx, w.prefix+key, 1, w.interval).Result()
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to check event window, allowing event", "key", key, "error", err)

		return true
	}

	return ok
}
