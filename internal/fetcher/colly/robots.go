package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/archive-harvester/internal/metrics"
)

var robotsRetryBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsTransport retries robots.txt probes that time out and, when every
// attempt does, answers with an allow-all policy so a slow handshake does
// not block the whole job.
type robotsTransport struct {
	base    http.RoundTripper
	backoff []time.Duration
	logger  *zap.Logger
}

func newRobotsTransport(base http.RoundTripper, logger *zap.Logger) *robotsTransport {
	return &robotsTransport{base: base, backoff: robotsRetryBackoff, logger: logger}
}

func (t *robotsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("robots transport received nil request")
	}
	if !isRobotsTxtRequest(req) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("roundtrip %s: %w", req.URL, err)
		}
		return resp, nil
	}
	return t.roundTripWithRetry(req)
}

func isRobotsTxtRequest(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	return strings.EqualFold(req.URL.Path, "/robots.txt")
}

func (t *robotsTransport) roundTripWithRetry(req *http.Request) (*http.Response, error) {
	maxAttempts := len(t.backoff) + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		if req.Context().Err() != nil || !isTransientTimeout(err) {
			return nil, fmt.Errorf("robots probe %s: %w", req.URL.Host, err)
		}
		if attempt == maxAttempts-1 {
			t.logger.Warn("robots.txt unreachable, allowing all paths",
				zap.String("host", req.URL.Host),
				zap.Error(err))
			metrics.ObserveRobotsFallback()
			return allowAllRobotsResponse(req), nil
		}
		if err := sleepWithContext(req.Context(), t.backoff[attempt]); err != nil {
			return nil, fmt.Errorf("robots probe backoff: %w", err)
		}
	}
	return nil, errors.New("robots probe exhausted retries")
}

func allowAllRobotsResponse(req *http.Request) *http.Response {
	const body = "User-agent: *\nAllow: /"
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Header:        make(http.Header),
		Request:       req,
	}
}

func isTransientTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
