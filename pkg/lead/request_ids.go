package lead

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// RequestIDStore hands out the stable client request identifier for submit-mode
// saves. The same (funnel, step index) pair must map to the same identifier for
// the whole session so that a retried submit is an idempotent upsert remotely.
type RequestIDStore interface {
	SubmitID(ctx context.Context, funnelID string, stepIndex int) (string, error)
}

// MemoryRequestIDStore is the single-replica store. Entries live for the
// process lifetime, which bounds them to the page session by construction.
type MemoryRequestIDStore struct {
	mu  sync.Mutex
	ids map[string]string
}

// NewMemoryRequestIDStore creates an empty store.
func NewMemoryRequestIDStore() *MemoryRequestIDStore {
	return &MemoryRequestIDStore{ids: make(map[string]string)}
}

// SubmitID implements RequestIDStore.
func (s *MemoryRequestIDStore) SubmitID(_ context.Context, funnelID string, stepIndex int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := submitKey(funnelID, stepIndex)

	if id, ok := s.ids[key]; ok {
		return id, nil
	}

	id := uuid.New().String()
	s.ids[key] = id

	return id, nil
}

// RedisRequestIDStore shares submit identifiers across runtime replicas. The
// TTL only has to outlive a visitor session, not be exact.
type RedisRequestIDStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisRequestIDStore creates a Redis-backed store.
func NewRedisRequestIDStore(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisRequestIDStore {
	return &RedisRequestIDStore{
		client: client,
		ttl:    ttl,
		logger: logger.With("module", "request_id_store"),
	}
}

// SubmitID implements RequestIDStore. SetNX keeps the first identifier written,
// so concurrent replicas converge on one id.
func (s *RedisRequestIDStore) SubmitID(ctx context.Context, funnelID string, stepIndex int) (string, error) {
	key := "leadrail:submit:" + submitKey(funnelID, stepIndex)
	id := uuid.New().String()

	_, err := s.client.SetNX(ctx, key, id, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to reserve submit id: %w", err)
	}

	stored, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read submit id: %w", err)
	}

	return stored, nil
}

func submitKey(funnelID string, stepIndex int) string {
	return fmt.Sprintf("%s:%d", funnelID, stepIndex)
}
