package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadrail/leadrail/pkg/dedupe"
	"github.com/leadrail/leadrail/pkg/lead"
)

// requestIDTTL bounds how long a session's save request ids are retained for
// retry replay.
const requestIDTTL = 24 * time.Hour

// NewRedisClient connects to the Redis instance named by the URL.
func NewRedisClient(redisURL string) redis.UniversalClient {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse Redis URL: %w", err))
	}

	return redis.NewClient(opts)
}

// NewRequestIDStore returns the request-id store backing lead save retries.
// With Redis configured the store survives restarts and is shared across
// replicas.
func NewRequestIDStore(client redis.UniversalClient, logger *slog.Logger) lead.RequestIDStore {
	if client == nil {
		return lead.NewMemoryRequestIDStore()
	}

	return lead.NewRedisRequestIDStore(client, requestIDTTL, logger)
}

// NewWindowFactory returns the per-session dedup window constructor. With
// Redis configured all replicas share one window keyspace.
func NewWindowFactory(client redis.UniversalClient, logger *slog.Logger) func() dedupe.Window {
	if client == nil {
		return func() dedupe.Window {
			return dedupe.NewMemoryWindow(dedupe.DefaultWindow)
		}
	}

	window := dedupe.NewRedisWindow(client, dedupe.DefaultWindow, logger)

	return func() dedupe.Window {
		return window
	}
}
