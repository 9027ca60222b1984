// Package client provides the core Canvas HTTP client with throttling,
// caching, and error handling.
package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/canvas-api-client/pkg/cache"
	"github.com/Sternrassler/canvas-api-client/pkg/linkheader"
	"github.com/Sternrassler/canvas-api-client/pkg/ratelimit"
	"github.com/Sternrassler/canvas-api-client/pkg/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-Id"

// rateLimitBody is how Canvas words a throttled 403.
const rateLimitBody = "Rate Limit Exceeded"

// Client is the main Canvas client.
type Client struct {
	httpClient  *http.Client
	redis       *redis.Client
	session     *session.Session
	pacer       *rate.Limiter
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Session supplies the domain, protocol and token (REQUIRED)
	Session *session.Session

	// Redis client for caching and shared throttle state.
	// Without it responses are not cached and throttle state stays in process.
	Redis *redis.Client

	// User-Agent header (REQUIRED)
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Actor selects whose identity requests are made as
	Actor session.Actor

	// MasqueradeAs is the as_user_id sent when Actor is MasqueradedUser.
	// Canvas accepts a numeric id or a prefixed one such as "sis_user_id:123".
	MasqueradeAs string

	// Local pacing, applied before the Canvas throttle gate.
	// RequestsPerSecond 0 disables pacing.
	RequestsPerSecond float64
	Burst             int

	// Retry
	MaxRetries     int // Maximum attempts per request
	InitialBackoff time.Duration

	// Timeout per HTTP attempt
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(sess *session.Session, redis *redis.Client, userAgent string) Config {
	return Config{
		Session:           sess,
		Redis:             redis,
		UserAgent:         userAgent,
		Actor:             session.NormalUser,
		RequestsPerSecond: 10,
		Burst:             5,
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		Timeout:           30 * time.Second,
	}
}

// New creates a new Canvas client.
func New(cfg Config) (*Client, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("session is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Actor == session.MasqueradedUser && cfg.MasqueradeAs == "" {
		return nil, fmt.Errorf("masquerade_as is required when acting as a masqueraded user")
	}

	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %v)", cfg.RequestsPerSecond)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	logger := log.With().
		Str("component", "canvas-client").
		Str("actor", cfg.Actor.String()).
		Logger()

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis)
	} else {
		logger.Debug().Msg("No Redis client - response cache disabled")
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		redis:       cfg.Redis,
		session:     cfg.Session,
		pacer:       rate.NewLimiter(limit, cfg.Burst),
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger),
		cache:       cacheManager,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Do performs an HTTP request with throttling, caching, and error handling.
//
// Responses with 4xx statuses other than throttling are returned as is for the
// caller to inspect. 5xx, throttled and network failures are retried and
// surface as an error once attempts run out.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointLabel(req.URL.Path)
	requestID := uuid.NewString()
	logger := c.logger.With().
		Str("request_id", requestID).
		Str("endpoint", endpoint).
		Logger()

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Local pacing
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("request pacing: %w", err)
	}

	// Step 2: Check Canvas throttle state
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		logger.Warn().Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, ErrRateLimited
	}

	// Step 3: Authenticate and identify
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: no access token", ErrNotConfigured)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)

	if c.config.Actor == session.MasqueradedUser {
		q := req.URL.Query()
		q.Set("as_user_id", c.config.MasqueradeAs)
		req.URL.RawQuery = q.Encode()
	}

	// Step 4: Check Cache
	var (
		cacheKey    cache.CacheKey
		cachedEntry *cache.CacheEntry
	)
	cacheable := c.cache != nil && req.Method == http.MethodGet
	if cacheable {
		cacheKey = cache.CacheKey{
			Domain:       req.URL.Host,
			Endpoint:     linkheader.StripAPIPrefix(req.URL.Path),
			QueryParams:  req.URL.Query(),
			UserID:       c.cachedUserID(req),
			Masquerading: c.config.Actor == session.MasqueradedUser,
		}

		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Cache get error")
		}

		// Step 5: Make Conditional Request if cache hit
		if cache.ShouldMakeConditionalRequest(cachedEntry) {
			cache.AddConditionalHeaders(req, cachedEntry)
			cache.ConditionalRequestsSent.Inc()
			logger.Debug().
				Str("etag", cachedEntry.ETag).
				Msg("Making conditional request")
		}
	}

	// Step 6: Execute HTTP Request with Retry Logic
	logger.Debug().
		Str("method", req.Method).
		Msg("Executing Canvas request")

	send := func() (*http.Response, error) {
		var resp *http.Response
		err := retryWithConfig(ctx, func() error {
			attempt, err := rewindRequest(req)
			if err != nil {
				return &APIError{ErrorClass: ErrorClassClient, Message: "rewind request body", Err: err}
			}

			var reqErr error
			resp, reqErr = c.httpClient.Do(attempt)
			if reqErr != nil {
				logger.Error().Err(reqErr).Msg("HTTP request failed")
				errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
				requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
				resp = nil
				return &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: reqErr}
			}

			if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
				logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}

			if resp.StatusCode == http.StatusNotModified {
				return nil
			}

			if resp.StatusCode >= 400 {
				errClass, body := classifyResponse(resp)
				errorsTotal.WithLabelValues(string(errClass)).Inc()
				requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

				logger.Warn().
					Int("status", resp.StatusCode).
					Str("error_class", string(errClass)).
					Msg("Canvas request error")

				if shouldRetry(errClass) {
					resp.Body.Close()
					return &APIError{
						StatusCode: resp.StatusCode,
						ErrorClass: errClass,
						Message:    resp.Status,
						Body:       body,
					}
				}

				// Not retried; the caller inspects the status
				return nil
			}

			requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
			return nil
		}, classifyError, c.retryConfig)
		return resp, err
	}

	resp, err := send()
	if err != nil {
		return nil, err
	}

	// A 304 with nothing cached to serve; ask again without validators
	if req.Method == http.MethodGet && resp.StatusCode == http.StatusNotModified && cachedEntry == nil {
		logger.Debug().Msg("304 Not Modified without a cached entry - refetching")
		resp.Body.Close()
		req.Header.Del("If-None-Match")
		req.Header.Del("If-Modified-Since")
		if resp, err = send(); err != nil {
			return nil, err
		}
	}

	// Step 7: Handle 304 Not Modified
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		logger.Debug().Msg("304 Not Modified - using cache")
		requestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.NotModifiedResponses.Inc()

		cachedEntry.Revalidate(resp.Header)
		if err := c.cache.Set(ctx, cacheKey, cachedEntry); err != nil {
			logger.Warn().Err(err).Msg("Failed to store revalidated entry")
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Step 8: Update Cache on success
	if cacheable && resp.StatusCode == http.StatusOK && cache.IsCacheable(resp.Header) {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if entry.TTL() > 0 {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				logger.Debug().
					Dur("ttl", entry.TTL()).
					Msg("Cached response")
			}
		}
	}

	return resp, nil
}

// retryConfig applies the configured attempt count and initial backoff on
// top of the per-class defaults.
func (c *Client) retryConfig(class ErrorClass) RetryConfig {
	cfg := RetryConfigForErrorClass(class)
	cfg.MaxAttempts = c.config.MaxRetries
	if c.config.InitialBackoff > 0 {
		cfg.InitialBackoff = c.config.InitialBackoff
		if cfg.MaxBackoff < cfg.InitialBackoff {
			cfg.MaxBackoff = cfg.InitialBackoff
		}
	}
	return cfg
}

// cachedUserID returns the id of the cached user for the configured actor, 0 if unknown.
func (c *Client) cachedUserID(req *http.Request) int64 {
	user, err := c.session.CachedUser(req.Context(), c.config.Actor)
	if err != nil {
		return 0
	}
	return user.ID
}

// classifyResponse categorizes a failed response. A 403 body is read to tell
// throttling from authorization; the body is restored for the caller.
func classifyResponse(resp *http.Response) (ErrorClass, []byte) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		body = nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit, body
	case resp.StatusCode == http.StatusForbidden && bytes.Contains(body, []byte(rateLimitBody)):
		return ErrorClassRateLimit, body
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient, body
	case resp.StatusCode >= 500:
		return ErrorClassServer, body
	default:
		return "", body
	}
}

// rewindRequest returns a request ready for another attempt.
func rewindRequest(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		// Single-shot body; only the first attempt can send it
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	attempt := req.Clone(req.Context())
	attempt.Body = body
	return attempt, nil
}

// endpointLabel turns an API path into a low-cardinality metric label.
// Numeric and prefixed ids become ":id".
func endpointLabel(path string) string {
	path = strings.Trim(linkheader.StripAPIPrefix(path), "/")
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, s := range segments {
		if isID(s) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isID(segment string) bool {
	if strings.Contains(segment, ":") {
		// sis_course_id:ABC and friends
		return true
	}
	if segment == "" {
		return false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Close closes the client and releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil without Redis.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

// RateLimiter returns the throttle tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Session {
	return c.session
}
