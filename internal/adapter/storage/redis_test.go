package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niksmo/storefront/internal/core/port"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *MockRedisClient) Set(
	ctx context.Context, key string, value any, expiration time.Duration,
) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *MockRedisClient) Close() error {
	return m.Called().Error(0)
}

func TestRedisStore(t *testing.T) {
	t.Run("Get", func(t *testing.T) {
		cl := new(MockRedisClient)
		cl.On("Get", t.Context(), "cart:a").
			Return(redis.NewStringResult("[]", nil))

		data, err := newRedisStore(cl, 0).Get(t.Context(), "cart:a")
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
		cl.AssertExpectations(t)
	})

	t.Run("GetMissing", func(t *testing.T) {
		cl := new(MockRedisClient)
		cl.On("Get", t.Context(), "cart:a").
			Return(redis.NewStringResult("", redis.Nil))

		_, err := newRedisStore(cl, 0).Get(t.Context(), "cart:a")
		assert.ErrorIs(t, err, port.ErrSlotNotFound)
	})

	t.Run("GetFailure", func(t *testing.T) {
		errConn := errors.New("connection refused")
		cl := new(MockRedisClient)
		cl.On("Get", t.Context(), "cart:a").
			Return(redis.NewStringResult("", errConn))

		_, err := newRedisStore(cl, 0).Get(t.Context(), "cart:a")
		assert.ErrorIs(t, err, errConn)
		assert.NotErrorIs(t, err, port.ErrSlotNotFound)
	})

	t.Run("PutWithTTL", func(t *testing.T) {
		ttl := 24 * time.Hour
		data := []byte(`[{"id":"1"}]`)
		cl := new(MockRedisClient)
		cl.On("Set", t.Context(), "cart:a", data, ttl).
			Return(redis.NewStatusResult("OK", nil))

		require.NoError(t, newRedisStore(cl, ttl).Put(t.Context(), "cart:a", data))
		cl.AssertExpectations(t)
	})

	t.Run("PutFailure", func(t *testing.T) {
		errConn := errors.New("connection refused")
		cl := new(MockRedisClient)
		cl.On("Set", t.Context(), "cart:a", mock.Anything, time.Duration(0)).
			Return(redis.NewStatusResult("", errConn))

		err := newRedisStore(cl, 0).Put(t.Context(), "cart:a", nil)
		assert.ErrorIs(t, err, errConn)
	})
}
