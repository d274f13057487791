package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jordanlanch/partnerdb/pkg/clock"
	"github.com/jordanlanch/partnerdb/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var limiterStart = time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

func exerciseLimiter(t *testing.T, store AttemptStore) {
	clk := clock.NewFake(limiterStart)
	limiter := NewLoginLimiter(store, clk, 5, 15*time.Minute)
	ctx := context.Background()

	t.Run("Success - four failures do not lock", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			locked, err := limiter.Fail(ctx, "session-a")
			require.NoError(t, err)
			assert.False(t, locked)
		}
		assert.NoError(t, limiter.Check(ctx, "session-a"))
	})

	t.Run("Error - fifth failure locks", func(t *testing.T) {
		locked, err := limiter.Fail(ctx, "session-a")
		require.NoError(t, err)
		assert.True(t, locked)

		err = limiter.Check(ctx, "session-a")
		require.Error(t, err)
		assert.True(t, domain.IsTooManyAttempts(err))

		de, _ := domain.As(err)
		assert.Equal(t, 15*time.Minute, de.RetryAfter)
	})

	t.Run("Success - other sessions are unaffected", func(t *testing.T) {
		assert.NoError(t, limiter.Check(ctx, "session-b"))
	})

	t.Run("Error - still locked before the window ends", func(t *testing.T) {
		clk.Advance(14 * time.Minute)

		err := limiter.Check(ctx, "session-a")
		require.Error(t, err)
		de, _ := domain.As(err)
		assert.Equal(t, time.Minute, de.RetryAfter)
	})

	t.Run("Success - unlocked once the window ends", func(t *testing.T) {
		clk.Advance(time.Minute)
		assert.NoError(t, limiter.Check(ctx, "session-a"))
	})

	t.Run("Error - a failure after lockout locks again", func(t *testing.T) {
		locked, err := limiter.Fail(ctx, "session-a")
		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("Success - success resets", func(t *testing.T) {
		require.NoError(t, limiter.Succeed(ctx, "session-a"))
		assert.NoError(t, limiter.Check(ctx, "session-a"))

		locked, err := limiter.Fail(ctx, "session-a")
		require.NoError(t, err)
		assert.False(t, locked)
	})
}

func TestLoginLimiter_MemoryStore(t *testing.T) {
	exerciseLimiter(t, NewMemoryAttemptStore())
}

func TestLoginLimiter_RedisStore(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	exerciseLimiter(t, NewRedisAttemptStore(client))
}

func TestNewLoginLimiter_Defaults(t *testing.T) {
	limiter := NewLoginLimiter(NewMemoryAttemptStore(), clock.NewFake(limiterStart), 0, 0)

	assert.Equal(t, DefaultMaxAttempts, limiter.maxAttempts)
	assert.Equal(t, DefaultLockout, limiter.lockout)
}

func TestRedisAttemptStore_RoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	store := NewRedisAttemptStore(client)
	ctx := context.Background()

	a, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, Attempts{}, a)

	want := Attempts{Count: 3, Last: limiterStart}
	require.NoError(t, store.Put(ctx, "s", want, time.Hour))

	got, err := store.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, want.Count, got.Count)
	assert.True(t, want.Last.Equal(got.Last))

	assert.Error(t, store.Put(ctx, "s", Attempts{Count: 1}, time.Hour))
}
