package oauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// consumeOnce checks the round trip shared by every ChallengeCache.
func consumeOnce(t *testing.T, cache ChallengeCache) {
	t.Helper()
	ctx := context.Background()

	state, challenge, err := cache.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, state)

	verifier, err := cache.Consume(ctx, state)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(verifier), MinCodeVerifierLength)
	assert.LessOrEqual(t, len(verifier), MaxCodeVerifierLength)
	assert.Equal(t, challenge, GenerateCodeChallenge(verifier))

	_, err = cache.Consume(ctx, state)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = cache.Consume(ctx, "never-issued")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMemoryChallengeCache(t *testing.T) {
	cache := NewMemoryChallengeCache(0, nil)
	defer cache.Stop()
	consumeOnce(t, cache)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryChallengeCacheTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryChallengeCache(time.Minute, nil)
	defer cache.Stop()
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	fresh, _, err := cache.Create(ctx)
	require.NoError(t, err)
	stale, _, err := cache.Create(ctx)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = cache.Consume(ctx, fresh)
	assert.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = cache.Consume(ctx, stale)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMemoryChallengeCacheCleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryChallengeCache(time.Minute, nil)
	defer cache.Stop()
	cache.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, _, err := cache.Create(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 3, cache.Len())

	now = now.Add(5 * time.Minute)
	cache.cleanupExpired()
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryChallengeCacheNoTTLKeepsEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryChallengeCache(0, nil)
	cache.now = func() time.Time { return now }

	state, _, err := cache.Create(context.Background())
	require.NoError(t, err)

	now = now.Add(365 * 24 * time.Hour)
	cache.cleanupExpired()
	_, err = cache.Consume(context.Background(), state)
	assert.NoError(t, err)
}

func TestMemoryChallengeCacheConcurrentConsume(t *testing.T) {
	cache := NewMemoryChallengeCache(0, nil)
	state, _, err := cache.Create(context.Background())
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Consume(context.Background(), state); err == nil {
				successes.Add(1)
			} else if !errors.Is(err, ErrInvalidState) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load())
}

func TestMemoryChallengeCacheStopIdempotent(t *testing.T) {
	cache := NewMemoryChallengeCache(time.Minute, nil)
	cache.Stop()
	cache.Stop()
}
