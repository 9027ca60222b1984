// Package ratelimit tracks the Canvas request throttle and gates requests.
//
// Canvas meters every access token with a leaky bucket and reports what is
// left on each response in X-Rate-Limit-Remaining, alongside the cost of the
// request in X-Request-Cost. An empty bucket answers
// "403 Forbidden (Rate Limit Exceeded)".
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining  = "canvas:rate_limit:remaining"
	RedisKeyLastCost   = "canvas:rate_limit:last_cost"
	RedisKeyLastUpdate = "canvas:rate_limit:last_update"
)

// Response headers carrying the throttle state.
const (
	HeaderRemaining   = "X-Rate-Limit-Remaining"
	HeaderRequestCost = "X-Request-Cost"
)

// Thresholds for rate limit decisions, in bucket units.
const (
	// ThresholdCritical blocks all requests when the bucket falls below this value.
	ThresholdCritical = 50.0

	// ThresholdWarning throttles requests when the bucket falls below this value.
	ThresholdWarning = 200.0

	// ThresholdHealthy indicates normal operation.
	ThresholdHealthy = 400.0

	// DefaultBucket is assumed before Canvas has reported anything.
	DefaultBucket = 700.0
)

// StaleAfter is how long a reported state is trusted. The bucket refills
// continuously, so old readings are replaced by the default.
const StaleAfter = 60 * time.Second

// State represents the current Canvas throttle state.
type State struct {
	// Remaining is the bucket quota left, from X-Rate-Limit-Remaining.
	Remaining float64 `json:"remaining"`

	// LastCost is the cost of the last request, from X-Request-Cost.
	LastCost float64 `json:"last_cost"`

	// LastUpdate is when this state was reported.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// DefaultState is the optimistic state used before any report.
func DefaultState() *State {
	s := &State{
		Remaining:  DefaultBucket,
		LastUpdate: time.Now(),
	}
	s.UpdateHealth()
	return s
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
