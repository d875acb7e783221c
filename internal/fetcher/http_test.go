package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func (s *sleepRecorder) total() time.Duration {
	var sum time.Duration
	for _, w := range s.waits {
		sum += w
	}
	return sum
}

func newTestFetcher(rec *sleepRecorder) *WebFetcher {
	return NewWebFetcher(WebOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		Backoff:    time.Second,
		Sleeper:    rec.sleep,
	})
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("<html>hello@cafe.com</html>"))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	body, ok := newTestFetcher(rec).Fetch(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Equal(t, "<html>hello@cafe.com</html>", body)
	assert.Empty(t, rec.waits)
}

func TestFetch_DefaultUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, ok := NewWebFetcher(WebOptions{}).Fetch(context.Background(), srv.URL)
	assert.True(t, ok)
}

func TestFetch_RetriesRetryableStatusThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("finally"))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	body, ok := newTestFetcher(rec).Fetch(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Equal(t, "finally", body)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
}

func TestFetch_GivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	body, ok := newTestFetcher(rec).Fetch(context.Background(), srv.URL)
	assert.False(t, ok)
	assert.Empty(t, body)
	assert.Equal(t, int32(3), attempts.Load())
	assert.GreaterOrEqual(t, rec.total(), time.Second*(1+2+3))
}

func TestFetch_NonRetryableStatusAbortsImmediately(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			rec := &sleepRecorder{}
			_, ok := newTestFetcher(rec).Fetch(context.Background(), srv.URL)
			assert.False(t, ok)
			assert.Equal(t, int32(1), attempts.Load())
			assert.Empty(t, rec.waits)
		})
	}
}

func TestFetch_CustomRetryStatuses(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	f := NewWebFetcher(WebOptions{
		MaxRetries:    2,
		Backoff:       time.Second,
		RetryStatuses: []int{http.StatusBadGateway},
		Sleeper:       rec.sleep,
	})
	_, ok := f.Fetch(context.Background(), srv.URL)
	assert.False(t, ok)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestFetch_TransportErrorIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	rec := &sleepRecorder{}
	_, ok := newTestFetcher(rec).Fetch(context.Background(), url)
	assert.False(t, ok)
	assert.Empty(t, rec.waits)
}

func TestFetch_DecodesCharset(t *testing.T) {
	encoded, err := charmap.ISO8859_1.NewEncoder().String("Café Olé")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	body, ok := newTestFetcher(&sleepRecorder{}).Fetch(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Equal(t, "Café Olé", body)
}

func TestFetch_ReportsBlockPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>Checking your browser before accessing</body></html>"))
	}))
	defer srv.Close()

	var blocked []BlockType
	f := NewWebFetcher(WebOptions{
		OnBlocked: func(_ string, kind BlockType) { blocked = append(blocked, kind) },
	})
	body, ok := f.Fetch(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Contains(t, body, "Checking your browser")
	assert.Equal(t, []BlockType{BlockCloudflare}, blocked)
}

func TestFetch_TruncatesLargeBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	f := NewWebFetcher(WebOptions{MaxBodyBytes: 1024})
	body, ok := f.Fetch(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Len(t, body, 1024)
}

func TestFetch_RateLimitedPerHost(t *testing.T) {
	var reqTimes []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reqTimes = append(reqTimes, time.Now())
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewWebFetcher(WebOptions{RequestsPerSecond: 4})
	for range 3 {
		_, ok := f.Fetch(context.Background(), srv.URL)
		require.True(t, ok)
	}

	require.Len(t, reqTimes, 3)
	// 4 req/s with burst 1: three requests span at least ~500ms
	assert.GreaterOrEqual(t, reqTimes[2].Sub(reqTimes[0]).Milliseconds(), int64(400))
}

func TestNewWebFetcher_Defaults(t *testing.T) {
	f := NewWebFetcher(WebOptions{})
	assert.Equal(t, 20*time.Second, f.opts.Timeout)
	assert.Equal(t, 3, f.opts.MaxRetries)
	assert.Equal(t, 3*time.Second, f.opts.Backoff)
	assert.True(t, f.retryStatuses.Contains(429))
	assert.True(t, f.retryStatuses.Contains(503))
	assert.False(t, f.retryStatuses.Contains(500))
}

func TestDecodeBody(t *testing.T) {
	assert.Equal(t, "plain", decodeBody([]byte("plain"), ""))
	assert.Equal(t, "plain", decodeBody([]byte("plain"), "text/html; charset=utf-8"))
	assert.Equal(t, "plain", decodeBody([]byte("plain"), "text/html; charset=x-unknown-charset"))
}
