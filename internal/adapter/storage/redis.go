package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/storefront/internal/core/port"
	"github.com/redis/go-redis/v9"
)

var _ port.SlotStore = (*RedisStore)(nil)

const redisDialTimeout = 5 * time.Second

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// A RedisStore keeps slots as plain string keys. A positive ttl makes
// abandoned carts expire; it is refreshed on every write.
type RedisStore struct {
	cl  redisClient
	ttl time.Duration
}

// NewRedisStore connects to addr and checks the server answers. tlsConfig
// may be nil.
func NewRedisStore(
	ctx context.Context, addr string, ttl time.Duration, tlsConfig *tls.Config,
) (RedisStore, error) {
	const op = "NewRedisStore"

	cl := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: redisDialTimeout,
		TLSConfig:   tlsConfig,
	})

	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return RedisStore{}, fmt.Errorf("%s: redis is unavailable: %w", op, err)
	}
	slog.Info("redis is available", "op", op)

	return RedisStore{cl: cl, ttl: ttl}, nil
}

func newRedisStore(cl redisClient, ttl time.Duration) RedisStore {
	return RedisStore{cl: cl, ttl: ttl}
}

func (s RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "RedisStore.Get"

	data, err := s.cl.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w: %q", op, port.ErrSlotNotFound, key)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func (s RedisStore) Put(ctx context.Context, key string, data []byte) error {
	const op = "RedisStore.Put"

	if err := s.cl.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s RedisStore) Close() {
	const op = "RedisStore.Close"
	log := slog.With("op", op)

	log.Info("closing redis client...")
	if err := s.cl.Close(); err != nil {
		log.Error("failed to close", "err", err)
		return
	}
	log.Info("redis client is closed")
}
