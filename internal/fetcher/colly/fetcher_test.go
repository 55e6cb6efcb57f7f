package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
	"github.com/JakeFAU/archive-harvester/internal/policy/ratelimit"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type archiveServer struct {
	*httptest.Server
	hits      atomic.Int32
	failFirst int32
	status    int
}

// newArchiveServer serves documentPage, answering the first failFirst
// document requests with status when status is non-zero.
func newArchiveServer(t *testing.T, robots string, status int, failFirst int32) *archiveServer {
	t.Helper()
	s := &archiveServer{status: status, failFirst: failFirst}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, robots)
	})
	mux.HandleFunc("/documento", func(w http.ResponseWriter, _ *http.Request) {
		n := s.hits.Add(1)
		if s.status != 0 && n <= s.failFirst {
			w.WriteHeader(s.status)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, documentPage)
	})
	mux.HandleFunc("/privado/documento", func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		_, _ = fmt.Fprint(w, documentPage)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newTestFetcher(template string, respectRobots bool, attempts int) *Fetcher {
	return New(Config{
		URLTemplate:   template,
		UserAgent:     "harvester-test",
		RespectRobots: respectRobots,
		Timeout:       5 * time.Second,
		MaxAttempts:   attempts,
		Backoff:       time.Millisecond,
	}, ratelimit.New(ratelimit.Config{}), zap.NewNop())
}

func TestFetchParsesDocument(t *testing.T) {
	t.Parallel()

	srv := newArchiveServer(t, "User-agent: *\nAllow: /\n", 0, 0)
	f := newTestFetcher(srv.URL+"/documento?id=%d", true, 1)

	doc, err := f.Fetch(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, doc.ID)
	assert.Equal(t, srv.URL+"/documento?id=42", doc.URL)
	assert.Contains(t, doc.Title, "Carta a Santander")
	assert.NotEmpty(t, doc.Regions)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	srv := newArchiveServer(t, "", http.StatusServiceUnavailable, 2)
	f := newTestFetcher(srv.URL+"/documento?id=%d", false, 3)

	doc, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ID)
	assert.Equal(t, int32(3), srv.hits.Load())
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	srv := newArchiveServer(t, "", http.StatusInternalServerError, 100)
	f := newTestFetcher(srv.URL+"/documento?id=%d", false, 2)

	_, err := f.Fetch(context.Background(), 5)
	var fetchErr *crawler.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 5, fetchErr.ID)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	assert.Equal(t, srv.URL+"/documento?id=5", fetchErr.URL)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	srv := newArchiveServer(t, "", http.StatusNotFound, 100)
	f := newTestFetcher(srv.URL+"/documento?id=%d", false, 3)

	_, err := f.Fetch(context.Background(), 5)
	var fetchErr *crawler.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, crawler.KindFetchFailure, crawler.KindOf(err))
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestFetchHonorsRobots(t *testing.T) {
	t.Parallel()

	srv := newArchiveServer(t, "User-agent: *\nDisallow: /privado/\n", 0, 0)
	f := newTestFetcher(srv.URL+"/privado/documento?id=%d", true, 3)

	_, err := f.Fetch(context.Background(), 9)
	var fetchErr *crawler.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, errors.Is(err, colly.ErrRobotsTxtBlocked))
	assert.Zero(t, srv.hits.Load(), "blocked documents are never requested")
}

func TestFetchIgnoresRobotsWhenDisabled(t *testing.T) {
	t.Parallel()

	srv := newArchiveServer(t, "User-agent: *\nDisallow: /privado/\n", 0, 0)
	f := newTestFetcher(srv.URL+"/privado/documento?id=%d", false, 1)

	_, err := f.Fetch(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestFetchReturnsContextErrorUnwrapped(t *testing.T) {
	t.Parallel()

	srv := newArchiveServer(t, "", 0, 0)
	f := newTestFetcher(srv.URL+"/documento?id=%d", false, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	var fetchErr *crawler.FetchError
	assert.False(t, errors.As(err, &fetchErr))
}

func TestFetchCancelAbortsInFlightRequest(t *testing.T) {
	t.Parallel()

	requested := make(chan struct{})
	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		close(requested)
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(10 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	f := newTestFetcher(srv.URL+"/documento?id=%d", false, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-requested
		cancel()
	}()

	start := time.Now()
	_, err := f.Fetch(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("server request was not canceled")
	}
}

func TestFetcherDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{URLTemplate: "https://archive.test/documento?id=%d"}, nil, nil)
	assert.Equal(t, DefaultUserAgent, f.baseCollector.UserAgent)
	assert.True(t, f.baseCollector.IgnoreRobotsTxt)
	assert.Equal(t, "https://archive.test/documento?id=3", f.URL(3))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	var (
		body     []byte
		status   int
		fetchErr error
	)
	hooks := &stubHooks{}
	configureCollectorHooks(hooks, &body, &status, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://archive.test")},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "body", string(body))

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("Bad Gateway"))
	assert.Equal(t, http.StatusBadGateway, status)
	require.EqualError(t, fetchErr, "Bad Gateway")

	hooks.onError(nil, errors.New("reset"))
	assert.Equal(t, http.StatusBadGateway, status, "nil responses leave the status alone")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
