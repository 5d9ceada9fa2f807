package oauth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ChallengeCache stores PKCE material between the start of an authorization
// and its callback.
type ChallengeCache interface {
	// Create stores a fresh state/verifier pair and returns the state and
	// the S256 challenge to send to the provider.
	Create(ctx context.Context) (state, challenge string, err error)

	// Consume removes the entry for state and returns its verifier. A state
	// can be consumed once; unknown or expired states yield ErrInvalidState.
	Consume(ctx context.Context, state string) (string, error)
}

// MemoryChallengeCache is a process-local ChallengeCache.
type MemoryChallengeCache struct {
	mu      sync.Mutex
	pending map[string]PendingAuthorization
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemoryChallengeCache creates a cache whose entries expire after ttl.
// A ttl of zero keeps entries until consumed and starts no sweeper.
func NewMemoryChallengeCache(ttl time.Duration, logger *slog.Logger) *MemoryChallengeCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &MemoryChallengeCache{
		pending: make(map[string]PendingAuthorization),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanup(DefaultChallengeCleanupInterval)
	}
	return c
}

func (c *MemoryChallengeCache) Create(_ context.Context) (string, string, error) {
	state, pending, err := newPendingAuthorization(c.now())
	if err != nil {
		return "", "", err
	}

	c.mu.Lock()
	c.pending[state] = pending
	c.mu.Unlock()

	return state, pending.Challenge, nil
}

func (c *MemoryChallengeCache) Consume(_ context.Context, state string) (string, error) {
	c.mu.Lock()
	pending, ok := c.pending[state]
	delete(c.pending, state)
	c.mu.Unlock()

	if !ok || c.expired(pending, c.now()) {
		return "", ErrInvalidState
	}
	return pending.Verifier, nil
}

// Len returns the number of pending authorizations.
func (c *MemoryChallengeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stop ends the background sweeper. It is safe to call more than once.
func (c *MemoryChallengeCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *MemoryChallengeCache) expired(p PendingAuthorization, now time.Time) bool {
	return c.ttl > 0 && now.Sub(p.CreatedAt) > c.ttl
}

func (c *MemoryChallengeCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryChallengeCache) cleanupExpired() {
	now := c.now()

	c.mu.Lock()
	deleted := 0
	for state, p := range c.pending {
		if c.expired(p, now) {
			delete(c.pending, state)
			deleted++
		}
	}
	c.mu.Unlock()

	if deleted > 0 {
		c.logger.Debug("Removed expired pending authorizations", "count", deleted)
	}
}
