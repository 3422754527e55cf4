package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ledger:claims:"

// RedisIdempotencyStore keeps delivery claims in Redis so every ledger
// instance sees the same claims. Keys are laid out as
// <prefix><tenant>:<handler>:<event>.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore connects to Redis and pings it.
func NewRedisIdempotencyStore(ctx context.Context, cfg config.RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisIdempotencyStoreWithClient(client, ""), nil
}

// NewRedisIdempotencyStoreWithClient wraps an existing client. An empty
// keyPrefix selects the default.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisIdempotencyStore) key(k shared.DeliveryKey) string {
	return s.keyPrefix + k.TenantID.String() + ":" + k.Handler + ":" + k.EventID.String()
}

const (
	pendingPrefix = "pending:"
	donePrefix    = "done:"
)

// releaseScript deletes a lease but never a completion mark.
var releaseScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v and string.sub(v, 1, string.len(ARGV[1])) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Claim sets the key with SET NX. Values record the phase and when it
// began, which helps when inspecting a stuck delivery.
func (s *RedisIdempotencyStore) Claim(ctx context.Context, k shared.DeliveryKey, lease time.Duration) (shared.ClaimState, error) {
	key := s.key(k)
	// A second pass covers a claim that expired between SETNX and GET.
	for range 2 {
		ok, err := s.client.SetNX(ctx, key, pendingPrefix+stamp(), lease).Result()
		if err != nil {
			return shared.ClaimInFlight, fmt.Errorf("failed to claim delivery %s: %w", k, err)
		}
		if ok {
			return shared.ClaimAcquired, nil
		}
		v, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return shared.ClaimInFlight, fmt.Errorf("failed to read claim %s: %w", k, err)
		}
		if strings.HasPrefix(v, donePrefix) {
			return shared.ClaimCompleted, nil
		}
		return shared.ClaimInFlight, nil
	}
	return shared.ClaimInFlight, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, k shared.DeliveryKey, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(k), donePrefix+stamp(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to complete delivery %s: %w", k, err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, k shared.DeliveryKey) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(k)}, pendingPrefix).Err(); err != nil {
		return fmt.Errorf("failed to release delivery %s: %w", k, err)
	}
	return nil
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
