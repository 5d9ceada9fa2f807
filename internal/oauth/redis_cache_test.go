package oauth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements redisClient in memory.
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) getDel(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	v, ok := f.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	delete(f.data, key)
	return v, nil
}

func (f *fakeRedis) ping(context.Context) error { return nil }
func (f *fakeRedis) close() error               { return nil }

func TestRedisChallengeCache(t *testing.T) {
	fake := newFakeRedis()
	cache := newRedisChallengeCache(fake, RedisConfig{TTL: 10 * time.Minute}, nil)
	consumeOnce(t, cache)
}

func TestRedisChallengeCacheKeysAndTTL(t *testing.T) {
	fake := newFakeRedis()
	cache := newRedisChallengeCache(fake, RedisConfig{Prefix: "test:", TTL: 2 * time.Minute}, nil)

	state, _, err := cache.Create(context.Background())
	require.NoError(t, err)

	fake.mu.Lock()
	_, ok := fake.data["test:"+state]
	ttl := fake.ttls["test:"+state]
	fake.mu.Unlock()

	assert.True(t, ok, "entry should be stored under the prefix")
	assert.Equal(t, 2*time.Minute, ttl)
	assert.NoError(t, cache.Ping(context.Background()))
}

func TestRedisChallengeCacheDefaultPrefix(t *testing.T) {
	cache := newRedisChallengeCache(newFakeRedis(), RedisConfig{}, nil)
	assert.Equal(t, DefaultRedisPrefix, cache.prefix)
}

func TestRedisChallengeCacheErrors(t *testing.T) {
	fake := newFakeRedis()
	cache := newRedisChallengeCache(fake, RedisConfig{}, nil)

	fake.data[DefaultRedisPrefix+"garbage"] = []byte("{not json")
	_, err := cache.Consume(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidState)

	// An unreachable Redis is a server fault, not a bad state.
	connErr := errors.New("connection reset")
	fake.failGet = connErr
	_, err = cache.Consume(context.Background(), "anything")
	require.ErrorIs(t, err, connErr)
	assert.NotErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, http.StatusInternalServerError, HTTPError(err).Status)
	assert.Equal(t, "server_error", HTTPError(err).Code)
}

func TestNewRedisChallengeCacheInvalidURL(t *testing.T) {
	_, err := NewRedisChallengeCache(context.Background(), RedisConfig{URL: "http://not-redis"}, nil)
	assert.Error(t, err)
}
