package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canvas_rate_limit_remaining",
		Help: "Canvas throttle bucket quota remaining",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canvas_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to a critical throttle state",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canvas_rate_limit_throttles_total",
		Help: "Total number of requests delayed due to a warning throttle state",
	})
)

// DefaultThrottleDelay is the pause applied in the warning state.
const DefaultThrottleDelay = 1 * time.Second

// Tracker monitors the Canvas throttle and gates requests.
//
// With a Redis client the state is shared between processes; without one it
// is kept in memory.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	// ThrottleDelay is slept before a request in the warning state.
	ThrottleDelay time.Duration

	mu    sync.RWMutex
	local *State
}

// NewTracker creates a new rate limit tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		ThrottleDelay: DefaultThrottleDelay,
	}
}

// ParseHeaders extracts throttle state from response headers.
// ok is false when the response carries no throttle header.
func ParseHeaders(headers http.Header) (state *State, ok bool, err error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil, false, nil
	}

	remain, err := strconv.ParseFloat(remainStr, 64)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	state = &State{
		Remaining:  remain,
		LastUpdate: time.Now(),
	}

	if costStr := headers.Get(HeaderRequestCost); costStr != "" {
		cost, err := strconv.ParseFloat(costStr, 64)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderRequestCost, err)
		}
		state.LastCost = cost
	}

	state.UpdateHealth()
	return state, true, nil
}

// GetState returns the current throttle state.
// A default healthy state is returned when nothing fresh has been reported.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	var state *State

	if t.redis == nil {
		t.mu.RLock()
		if t.local != nil {
			copied := *t.local
			state = &copied
		}
		t.mu.RUnlock()
	} else {
		var err error
		state, err = t.loadState(ctx)
		if err != nil {
			return nil, err
		}
	}

	if state == nil || state.IsStale(StaleAfter) {
		t.logger.Debug().Msg("No fresh rate limit state, assuming a full bucket")
		return DefaultState(), nil
	}
	return state, nil
}

func (t *Tracker) loadState(ctx context.Context) (*State, error) {
	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Float64()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	lastCost, err := t.redis.Get(ctx, RedisKeyLastCost).Float64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last cost: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &State{
		Remaining:  remaining,
		LastCost:   lastCost,
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()
	return state, nil
}

// UpdateFromHeaders records the throttle state reported by a response.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, ok, err := ParseHeaders(headers)
	if err != nil {
		return err
	}
	if !ok {
		// Not every endpoint reports throttle state
		return nil
	}

	if t.redis == nil {
		t.mu.Lock()
		t.local = state
		t.mu.Unlock()
	} else {
		lastUpdateJSON, err := json.Marshal(state.LastUpdate)
		if err != nil {
			return fmt.Errorf("marshal last update: %w", err)
		}

		pipe := t.redis.Pipeline()
		pipe.Set(ctx, RedisKeyRemaining, state.Remaining, StaleAfter)
		pipe.Set(ctx, RedisKeyLastCost, state.LastCost, StaleAfter)
		pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, StaleAfter)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store rate limit state in redis: %w", err)
		}
	}

	rateLimitRemaining.Set(state.Remaining)

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Float64("remaining", state.Remaining).
			Float64("cost", state.LastCost).
			Msg("Canvas throttle CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Float64("remaining", state.Remaining).
			Float64("cost", state.LastCost).
			Msg("Canvas throttle WARNING - requests will be delayed")
	default:
		t.logger.Debug().
			Float64("remaining", state.Remaining).
			Float64("cost", state.LastCost).
			Bool("is_healthy", state.IsHealthy).
			Msg("Canvas throttle state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent now.
// It returns false in the critical state and sleeps ThrottleDelay in the
// warning state, returning early if ctx is cancelled.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Float64("remaining", state.Remaining).
			Dur("retry_after", StaleAfter-time.Since(state.LastUpdate)).
			Msg("Canvas throttle critical - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Float64("remaining", state.Remaining).
			Msg("Canvas throttle warning - delaying request")

		rateLimitThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.ThrottleDelay):
		}
	}

	return true, nil
}
