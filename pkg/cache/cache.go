package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the background sweep evicts expired
// entries when no interval is configured.
const DefaultSweepInterval = 60 * time.Second

// entry is a stored payload with its creation time and time-to-live.
// An entry is visible to readers only while now - createdAt < ttl; once that
// window closes it is logically absent even before a sweep removes it.
type entry struct {
	payload   []byte
	createdAt time.Time
	ttl       time.Duration
}

// expired reports whether the entry's visibility window has closed.
// A zero or negative TTL is expired immediately.
func (e entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Config holds cache configuration.
type Config struct {
	// SweepInterval is the period of the background eviction sweep.
	SweepInterval time.Duration

	// Now is the clock used for expiry decisions. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		SweepInterval: DefaultSweepInterval,
		Now:           time.Now,
	}
}

// Cache is an in-memory key to payload store with per-entry TTL.
//
// Expired entries are deleted lazily on read; a periodic sweep additionally
// evicts them so memory stays bounded independent of read traffic. The most
// recent write always wins. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	now    func() time.Time
	logger zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache and starts its background sweep.
// Call Close to stop the sweep goroutine.
func New(cfg Config, logger zerolog.Logger) *Cache {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache{
		entries: make(map[string]entry),
		now:     cfg.Now,
		logger:  logger,
		stop:    make(chan struct{}),
	}

	go c.sweepLoop(cfg.SweepInterval)

	return c
}

// Get returns the stored payload if present and unexpired.
// An expired entry is deleted on read.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		cacheMisses.Inc()
		return nil, false
	}

	if e.expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have replaced
		// the entry since the read.
		if cur, ok := c.entries[key]; ok && cur.createdAt.Equal(e.createdAt) {
			delete(c.entries, key)
			cacheEvictions.WithLabelValues("lazy").Inc()
			cacheEntries.Set(float64(len(c.entries)))
		}
		c.mu.Unlock()

		cacheMisses.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return e.payload, true
}

// Set stores the payload under key with the given TTL, unconditionally
// overwriting any existing entry.
func (c *Cache) Set(key string, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{
		payload:   payload,
		createdAt: c.now(),
		ttl:       ttl,
	}
	cacheEntries.Set(float64(len(c.entries)))
	c.mu.Unlock()

	c.logger.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Msg("Cache entry stored")
}

// Wrap returns the cached payload for key when present; otherwise it invokes
// producer, stores its result under key with the given TTL, and returns it.
// The stored value is always the producer's actual result.
//
// Concurrent misses on the same key are not deduplicated: overlapping callers
// may each invoke producer. The last write wins.
func (c *Cache) Wrap(ctx context.Context, key string, ttl time.Duration, producer func(context.Context) ([]byte, error)) ([]byte, error) {
	if payload, ok := c.Get(key); ok {
		return payload, nil
	}

	payload, err := producer(ctx)
	if err != nil {
		return nil, err
	}

	c.Set(key, payload, ttl)
	return payload, nil
}

// ClearAll empties the store. Invoked on logout and on authorization failure
// so authenticated data never leaks into a subsequent session.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	cleared := len(c.entries)
	c.entries = make(map[string]entry)
	cacheEntries.Set(0)
	c.mu.Unlock()

	if cleared > 0 {
		cacheEvictions.WithLabelValues("clear").Add(float64(cleared))
	}

	c.logger.Debug().
		Int("entries", cleared).
		Msg("Cache cleared")
}

// Len returns the number of stored entries, expired ones included until they
// are swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweep. The cache remains usable afterwards;
// only lazy eviction applies from then on.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// sweepLoop periodically removes expired entries.
func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep deletes every expired entry in one pass.
func (c *Cache) sweep() {
	now := c.now()

	c.mu.Lock()
	evicted := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			evicted++
		}
	}
	cacheEntries.Set(float64(len(c.entries)))
	c.mu.Unlock()

	if evicted > 0 {
		cacheEvictions.WithLabelValues("sweep").Add(float64(evicted))
		c.logger.Debug().
			Int("evicted", evicted).
			Msg("Cache sweep completed")
	}
}
