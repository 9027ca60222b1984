// Package cache provides Canvas response caching with a Redis backend.
//
// Entries keep the full header set, so a cached page still carries its Link
// header and can be paginated from without a round trip.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Domain:      "canvas.example.edu",
//		Endpoint:    "courses/1/students",
//		QueryParams: url.Values{"page": []string{"2"}},
//		UserID:      42,
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from Canvas
//	}
//
// # Freshness
//
// Expiry comes from Cache-Control max-age, then Expires, then DefaultTTL.
// Responses marked no-store or no-cache are never stored (see IsCacheable).
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Logout
//
// Manager.Clear drops every key under KeyPrefix.
//
// # Metrics
//
//   - canvas_cache_hits_total{layer="redis"}
//   - canvas_cache_misses_total
//   - canvas_cache_size_bytes{layer="redis"}
//   - canvas_conditional_requests_total
//   - canvas_304_responses_total
//   - canvas_cache_errors_total{operation}
package cache
