// Package system provides the real clock used outside tests.
package system

import (
	"context"
	"time"
)

// Clock implements crawler.Clock using time.Now and real timers.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Sleep blocks for delay or until ctx is done, returning ctx.Err() in the
// latter case. Non-positive delays return immediately.
func (Clock) Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
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
