package github

import (
	"context"
	"sync"
	"time"

	"github.com/google/go-github/v66/github"
)

// RateTrackerConfig configures how batch calls are paced
type RateTrackerConfig struct {
	// BaseDelay is the minimum delay between mutating requests
	BaseDelay time.Duration

	// MaxDelay caps any single wait
	MaxDelay time.Duration

	// MinRemainingRequests is the threshold below which calls are spread out
	MinRemainingRequests int

	// ThrottleDelay is the delay applied when remaining requests are low
	ThrottleDelay time.Duration
}

// DefaultRateTrackerConfig returns the default pacing configuration
func DefaultRateTrackerConfig() *RateTrackerConfig {
	return &RateTrackerConfig{
		BaseDelay:            100 * time.Millisecond,
		MaxDelay:             30 * time.Second,
		MinRemainingRequests: 50,
		ThrottleDelay:        2 * time.Second,
	}
}

// RateStats is a snapshot of the last rate limit seen
type RateStats struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
	Waits     int64     `json:"waits"`
}

// rateTracker records GitHub rate limit headers and paces callers. It never
// retries: a call that still hits the limit surfaces ErrorTypeRateLimit.
type rateTracker struct {
	config *RateTrackerConfig
	mu     sync.Mutex

	limit     int
	remaining int
	resetTime time.Time
	lastCall  time.Time
	waits     int64
}

func newRateTracker(config *RateTrackerConfig) *rateTracker {
	if config == nil {
		config = DefaultRateTrackerConfig()
	}
	return &rateTracker{
		config:    config,
		remaining: -1, // unknown until the first response
	}
}

// Wait blocks until it is polite to issue the next call
func (rt *rateTracker) Wait(ctx context.Context) error {
	rt.mu.Lock()
	delay := rt.calculateDelay(time.Now())
	if delay > 0 {
		rt.waits++
	}
	// Reserve the slot before sleeping so concurrent callers queue behind it.
	rt.lastCall = time.Now().Add(delay)
	rt.mu.Unlock()

	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Update records the rate information carried by a response
func (rt *rateTracker) Update(resp *github.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.limit = resp.Rate.Limit
	rt.remaining = resp.Rate.Remaining
	rt.resetTime = resp.Rate.Reset.Time
}

// Stats returns the last observed rate limit
func (rt *rateTracker) Stats() RateStats {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	return RateStats{
		Limit:     rt.limit,
		Remaining: rt.remaining,
		ResetTime: rt.resetTime,
		Waits:     rt.waits,
	}
}

// calculateDelay must be called with rt.mu held
func (rt *rateTracker) calculateDelay(now time.Time) time.Duration {
	var delay time.Duration

	if !rt.lastCall.IsZero() {
		if since := now.Sub(rt.lastCall); since < rt.config.BaseDelay {
			delay = rt.config.BaseDelay - since
		}
	}

	if rt.remaining >= 0 && rt.remaining < rt.config.MinRemainingRequests && now.Before(rt.resetTime) {
		throttle := rt.calculateThrottleDelay(now)
		if throttle > delay {
			delay = throttle
		}
	}

	return min(delay, rt.config.MaxDelay)
}

// calculateThrottleDelay grows as remaining requests approach zero
func (rt *rateTracker) calculateThrottleDelay(now time.Time) time.Duration {
	if rt.remaining <= 0 {
		return rt.resetTime.Sub(now)
	}

	ratio := float64(rt.remaining) / float64(rt.config.MinRemainingRequests)
	if ratio >= 1.0 {
		return 0
	}
	return time.Duration(float64(rt.config.ThrottleDelay) * (1.0 - ratio))
}
