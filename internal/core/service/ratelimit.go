package service

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/yndnr/condkv/internal/core/domain"
)

// RateLimiterRegistry holds one token bucket per connection.
// A non-positive rate disables limiting.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[domain.ConnID]*rate.Limiter
	perSec   int
}

// NewRateLimiterRegistry creates a registry allowing perSec requests per
// second per connection, with a burst of the same size.
func NewRateLimiterRegistry(perSec int) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[domain.ConnID]*rate.Limiter),
		perSec:   perSec,
	}
}

// Enabled reports whether requests are limited at all.
func (r *RateLimiterRegistry) Enabled() bool {
	return r != nil && r.perSec > 0
}

// GetOrCreate retrieves an existing rate limiter or creates a new one.
func (r *RateLimiterRegistry) GetOrCreate(id domain.ConnID) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[id]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := r.limiters[id]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(r.perSec), r.perSec)
	r.limiters[id] = limiter
	return limiter
}

// Allow consumes one token for id. It returns domain.ErrRateLimited when
// the bucket is empty.
func (r *RateLimiterRegistry) Allow(id domain.ConnID) error {
	if !r.Enabled() {
		return nil
	}

	limiter := r.GetOrCreate(id)
	if !limiter.Allow() {
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()

		return domain.ErrRateLimited.WithDetails("rate limit exceeded, retry after " + delay.String())
	}
	return nil
}

// Delete removes the limiter of a closed connection.
func (r *RateLimiterRegistry) Delete(id domain.ConnID) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.limiters, id)
}

// Len returns the number of tracked connections.
func (r *RateLimiterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}
