// Package cache provides the in-memory response cache used by the request
// pipeline to avoid redundant fetches of read-mostly endpoints.
//
// Entries are payload bytes with a per-entry TTL. An entry is logically
// absent the instant its TTL elapses: reads delete expired entries lazily
// and a periodic sweep evicts them in bulk, bounding memory independent of
// read traffic.
//
// # Basic Usage
//
//	c := cache.New(cache.DefaultConfig(), logger)
//	defer c.Close()
//
//	payload, err := c.Wrap(ctx, cache.Key(path, query), ttl, func(ctx context.Context) ([]byte, error) {
//		return fetchFromBackend(ctx)
//	})
//
// # Cacheability Rules
//
// Which URLs are cacheable, and for how long, is decided by an ordered Rules
// list. The first matching rule governs a URL; only GET requests are ever
// cacheable.
//
//	rules := cache.DefaultRules()
//	if ttl, ok := rules.Resolve(http.MethodGet, "/catalog/items"); ok {
//		// cache the response under cache.Key(...) with ttl
//	}
//
// Concurrent misses on one key are intentionally not coalesced: overlapping
// callers may each hit the network and the last write wins.
//
// # Metrics
//
// The cache exports Prometheus metrics:
//
//   - storefront_cache_hits_total - Cache hits
//   - storefront_cache_misses_total - Cache misses
//   - storefront_cache_evictions_total{reason} - Evictions by reason (lazy, sweep, clear)
//   - storefront_cache_entries - Current entry count
package cache
