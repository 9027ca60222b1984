package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every response cache key in Redis.
const KeyPrefix = "canvas:cache:"

// CacheKey identifies a cached Canvas response.
//
// Responses depend on who asked, so the key carries the domain, the user and
// whether the request was made while masquerading.
type CacheKey struct {
	// Domain is the Canvas host (e.g., "canvas.example.edu")
	Domain string

	// Endpoint is the API path relative to /api/v1/ (e.g., "courses/1/students")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"page": "2"})
	QueryParams url.Values

	// UserID is the id of the acting user (0 when unknown)
	UserID int64

	// Masquerading marks responses fetched on behalf of another user
	Masquerading bool
}

// String generates a deterministic cache key string.
// Format: canvas:cache:domain:endpoint:query1=v1,v2:user=123:masq
//
// Example:
//
//	canvas:cache:canvas.example.edu:courses/1/students:page=2:per_page=50:user=42
func (k CacheKey) String() string {
	parts := []string{strings.TrimSuffix(KeyPrefix, ":")}

	if k.Domain != "" {
		parts = append(parts, k.Domain)
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism; repeated values (include[]) kept in order
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	if k.UserID > 0 {
		parts = append(parts, fmt.Sprintf("user=%d", k.UserID))
	}

	if k.Masquerading {
		parts = append(parts, "masq")
	}

	return strings.Join(parts, ":")
}
