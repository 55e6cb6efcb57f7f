// Package ratelimit enforces the minimum delay between requests to the same
// site.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/archive-harvester/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// Delay is the minimum spacing between two requests to one site. Zero
	// disables limiting.
	Delay time.Duration
	// Burst is the number of requests allowed back to back; defaults to 1.
	Burst int
}

// Limiter manages per-site token buckets.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Wait blocks until rawURL's site may be requested again or ctx ends.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	site := siteOf(rawURL)
	l.mu.Lock()
	limiter, exists := l.limiters[site]
	if !exists {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[site] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Tokens available immediately are not a delay.
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(site, waited)
	}
	return nil
}

func siteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
