package cache

import (
	"net/http"
	"time"

	"github.com/Sternrassler/canvas-api-client/pkg/linkheader"
)

// CacheEntry is a stored Canvas GET response. The body is kept with its
// headers so a hit can be paginated like a live response.
type CacheEntry struct {
	Data []byte `json:"data"`

	// ETag and LastModified are the validators sent back on revalidation
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`

	// Expires is when the entry needs revalidating
	Expires time.Time `json:"expires"`

	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	CachedAt   time.Time   `json:"cached_at"`
}

// IsExpired reports whether the entry needs revalidating.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 once expired.
func (e *CacheEntry) TTL() time.Duration {
	if ttl := time.Until(e.Expires); ttl > 0 {
		return ttl
	}
	return 0
}

// Links returns the pagination links of the cached response, domain-relative.
func (e *CacheEntry) Links() linkheader.LinkHeaders {
	return linkheader.ParseHTTP(e.Headers)
}

// Revalidate applies a 304 Not Modified response to the entry: freshness is
// taken from the 304's headers, and validators it carries replace the stored ones.
func (e *CacheEntry) Revalidate(headers http.Header) {
	e.Expires = parseExpires(headers)
	if etag := headers.Get("ETag"); etag != "" {
		e.ETag = etag
		e.setHeader("ETag", etag)
	}
	if lm := headers.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			e.LastModified = t
			e.setHeader("Last-Modified", lm)
		}
	}
}

func (e *CacheEntry) setHeader(key, value string) {
	if e.Headers == nil {
		e.Headers = make(http.Header)
	}
	e.Headers.Set(key, value)
}
