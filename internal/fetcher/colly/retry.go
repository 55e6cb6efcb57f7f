package collyfetcher

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

// ExponentialRetryPolicy retries transient fetch failures with jittered
// backoff.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy allowing maxAttempts attempts in
// total. Values below one mean a single attempt.
func NewExponentialRetryPolicy(maxAttempts int, baseDelay time.Duration) *ExponentialRetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    30 * time.Second,
	}
}

// ShouldRetry decides whether attempt, which failed with err, may be
// followed by another one. Attempts are counted from 1.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, colly.ErrRobotsTxtBlocked) ||
		errors.Is(err, colly.ErrForbiddenDomain) ||
		errors.Is(err, colly.ErrForbiddenURL) {
		return false
	}
	var fetchErr *crawler.FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		return fetchErr.StatusCode == http.StatusTooManyRequests || fetchErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return fetchErr != nil
}

// Backoff returns the wait before the attempt following attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
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
