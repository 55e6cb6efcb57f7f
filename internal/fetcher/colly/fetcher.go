// Package collyfetcher fetches archive documents with gocolly and parses
// them with goquery.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
	"github.com/JakeFAU/archive-harvester/internal/metrics"
)

// DefaultUserAgent identifies the harvester to the archive.
const DefaultUserAgent = "AcademicResearchBot/1.0"

// Config controls collector behavior.
type Config struct {
	// URLTemplate renders a document URL from its id with a single %d verb.
	URLTemplate   string
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// MaxAttempts bounds the attempts per document, including the first.
	MaxAttempts int
	// Backoff is the base delay between attempts.
	Backoff time.Duration
}

// Waiter paces requests per site.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	limiter       Waiter
	retry         *ExponentialRetryPolicy
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. A nil limiter disables pacing.
func New(cfg Config, limiter Waiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.UserAgent = cfg.UserAgent
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(newRobotsTransport(newHTTPTransport(), logger))

	return &Fetcher{
		cfg:           cfg,
		limiter:       limiter,
		retry:         NewExponentialRetryPolicy(cfg.MaxAttempts, cfg.Backoff),
		baseCollector: c,
		logger:        logger,
	}
}

// URL renders the document URL for id.
func (f *Fetcher) URL(id int) string {
	return fmt.Sprintf(f.cfg.URLTemplate, id)
}

// Fetch retrieves and parses document id. Transient failures are retried
// per the retry policy; the last failure is returned as *crawler.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, id int) (crawler.RawDocument, error) {
	target := f.URL(id)
	logger := f.logger.With(zap.Int("doc_id", id), zap.String("url", target))

	for attempt := 1; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, target); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return crawler.RawDocument{}, ctxErr
				}
				return crawler.RawDocument{}, err
			}
		}

		start := time.Now()
		body, status, err := f.fetchOnce(ctx, target)
		metrics.ObserveFetch(target, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return crawler.RawDocument{}, ctxErr
		}
		if err == nil {
			doc, parseErr := Parse(id, target, body)
			if parseErr != nil {
				return crawler.RawDocument{}, &crawler.FetchError{
					ID: id, URL: target, StatusCode: status, Reason: parseErr.Error(), Err: parseErr,
				}
			}
			return doc, nil
		}

		fetchErr := &crawler.FetchError{ID: id, URL: target, StatusCode: status, Reason: err.Error(), Err: err}
		if !f.retry.ShouldRetry(fetchErr, attempt) {
			return crawler.RawDocument{}, fetchErr
		}
		delay := f.retry.Backoff(attempt)
		logger.Debug("retrying fetch",
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Duration("backoff", delay),
			zap.Error(err))
		metrics.ObserveFetchRetry(target)
		if err := sleepWithContext(ctx, delay); err != nil {
			return crawler.RawDocument{}, err
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) ([]byte, int, error) {
	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	configureCollectorHooks(collector, &body, &status, &fetchErr)

	if err := runCollector(ctx, collector, target); err != nil {
		return nil, status, err
	}
	if fetchErr != nil {
		return nil, status, fetchErr
	}
	return body, status, nil
}

func configureCollectorHooks(hooks collectorHooks, body *[]byte, status *int, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*status = r.StatusCode
		*body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*status = r.StatusCode
		}
		*fetchErr = err
	})
}

// runCollector visits target with the request bound to ctx. On
// cancellation it waits for the visit to unwind so the hooks have stopped
// writing before the caller reads the results.
func runCollector(ctx context.Context, collector *colly.Collector, target string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
