// Package metrics exposes the Prometheus metrics of the Canvas client.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, pagination) to maintain modularity and avoid circular
// dependencies; this package serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the Canvas client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - canvas_rate_limit_remaining (Gauge): Throttle bucket quota left (X-Rate-Limit-Remaining)
//   - canvas_rate_limit_blocks_total (Counter): Requests blocked in the critical state
//   - canvas_rate_limit_throttles_total (Counter): Requests delayed in the warning state
//
// Cache Metrics (pkg/cache):
//   - canvas_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - canvas_cache_misses_total (Counter): Cache misses
//   - canvas_cache_size_bytes{layer="redis"} (Gauge): Bytes written since the last clear
//   - canvas_304_responses_total (Counter): 304 Not Modified responses
//   - canvas_conditional_requests_total (Counter): Conditional requests sent
//   - canvas_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - canvas_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - canvas_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - canvas_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - canvas_retries_total{error_class} (Counter): Retry attempts by error class
//   - canvas_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - canvas_retry_exhausted_total{error_class} (Counter): Requests that exhausted their attempts
//
// Pagination Metrics (pkg/pagination):
//   - canvas_pagination_pages_fetched_total (Counter): Collection pages fetched
//   - canvas_pagination_fetch_all_duration_seconds (Histogram): Full collection fetch duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(canvas_cache_hits_total[5m])) /
//   (sum(rate(canvas_cache_hits_total[5m])) + sum(rate(canvas_cache_misses_total[5m])))
//
//   # Bucket running low
//   canvas_rate_limit_remaining < 200
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(canvas_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(canvas_304_responses_total[5m]) / rate(canvas_requests_total[5m])
