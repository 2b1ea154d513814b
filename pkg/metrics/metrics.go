// Package metrics provides the centralized Prometheus metrics registry for
// the storefront client. All metrics are defined in their respective packages
// (api, cache, token) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the storefront client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/api):
//   - storefront_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - storefront_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - storefront_errors_total{class} (Counter): Failures by class (transient, server, client, unauthorized, auth_required)
//   - storefront_session_teardowns_total (Counter): Full session teardowns after authorization failures
//
// Retry Metrics (pkg/api):
//   - storefront_retries_total{class} (Counter): Retry attempts by error class
//   - storefront_retry_backoff_seconds{class} (Histogram): Backoff duration by error class
//   - storefront_retry_exhausted_total{class} (Counter): Requests that exhausted the retry budget
//
// Cache Metrics (pkg/cache):
//   - storefront_cache_hits_total (Counter): Response cache hits
//   - storefront_cache_misses_total (Counter): Response cache misses
//   - storefront_cache_evictions_total{reason} (Counter): Evicted entries by reason (lazy, sweep, clear)
//   - storefront_cache_entries (Gauge): Current number of cached responses
//
// Token Metrics (pkg/token):
//   - storefront_token_refreshes_total{result} (Counter): Identity-check refreshes by result (rotated, unchanged, failed)
//   - storefront_token_refresh_scheduled (Gauge): Whether a proactive refresh timer is armed (0 or 1)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(storefront_cache_hits_total[5m])) /
//   (sum(rate(storefront_cache_hits_total[5m])) + sum(rate(storefront_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(storefront_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(storefront_request_duration_seconds_bucket[5m]))
//
//   # Refresh Failure Ratio
//   rate(storefront_token_refreshes_total{result="failed"}[15m]) /
//   rate(storefront_token_refreshes_total[15m])
