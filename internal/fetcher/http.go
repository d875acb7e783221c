package fetcher

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/cafescrape/internal/resilience"
)

// DefaultUserAgent is sent with every website request.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.1 Safari/605.1.15"

const defaultMaxBodyBytes = 2 << 20

// WebOptions configures the web fetcher.
type WebOptions struct {
	UserAgent     string
	Timeout       time.Duration
	MaxRetries    int
	Backoff       time.Duration
	RetryStatuses []int
	// RequestsPerSecond limits requests per host. Zero disables the limiter.
	RequestsPerSecond float64
	MaxBodyBytes      int64
	// Sleeper replaces the real backoff timer, mainly in tests.
	Sleeper resilience.Sleeper
	// OnBlocked is called when a successful response looks like a bot
	// challenge or a JS-only shell.
	OnBlocked func(url string, kind BlockType)
}

// DefaultWebOptions returns the stock website fetch settings.
func DefaultWebOptions() WebOptions {
	return WebOptions{
		UserAgent:     DefaultUserAgent,
		Timeout:       20 * time.Second,
		MaxRetries:    3,
		Backoff:       3 * time.Second,
		RetryStatuses: []int{http.StatusTooManyRequests, http.StatusServiceUnavailable},
		MaxBodyBytes:  defaultMaxBodyBytes,
		Sleeper:       resilience.Sleep,
	}
}

// WebFetcher implements PageFetcher over net/http. Requests go out one at a
// time; a retryable status waits Backoff × attempt before the next try.
type WebFetcher struct {
	client        *http.Client
	opts          WebOptions
	retryStatuses resilience.StatusSet

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewWebFetcher creates a WebFetcher. Zero-valued options take defaults.
func NewWebFetcher(opts WebOptions) *WebFetcher {
	def := DefaultWebOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	if len(opts.RetryStatuses) == 0 {
		opts.RetryStatuses = def.RetryStatuses
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = def.MaxBodyBytes
	}
	if opts.Sleeper == nil {
		opts.Sleeper = def.Sleeper
	}
	return &WebFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		opts:          opts,
		retryStatuses: resilience.NewStatusSet(opts.RetryStatuses...),
		limiters:      make(map[string]*rate.Limiter),
	}
}

// errPermanent marks a non-retryable HTTP failure.
var errPermanent = eris.New("permanent http failure")

// Fetch returns the page body. Retryable statuses are retried up to
// MaxRetries times; any other status >= 400, a transport failure, or
// exhausted retries yield ok=false.
func (f *WebFetcher) Fetch(ctx context.Context, rawURL string) (string, bool) {
	cfg := resilience.RetryConfig{
		MaxAttempts: f.opts.MaxRetries,
		Backoff:     resilience.Linear(f.opts.Backoff),
		ShouldRetry: resilience.IsTransient,
		OnRetry:     resilience.RetryLogger("web", rawURL, f.opts.MaxRetries),
		Sleep:       f.opts.Sleeper,
	}

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		return f.fetchOnce(ctx, rawURL)
	})
	if err != nil {
		if resilience.IsTransient(err) {
			zap.L().Error("giving up on website after retries",
				zap.String("url", rawURL),
				zap.Int("max_retries", f.opts.MaxRetries),
				zap.Error(err),
			)
		} else {
			zap.L().Error("failed to fetch website",
				zap.String("url", rawURL),
				zap.Error(err),
			)
		}
		return "", false
	}
	return body, true
}

func (f *WebFetcher) fetchOnce(ctx context.Context, rawURL string) (string, error) {
	if lim := f.limiterFor(rawURL); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "web: rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "web: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "web: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "web: read body")
	}

	if f.retryStatuses.Contains(resp.StatusCode) {
		return "", resilience.NewTransientError(
			eris.Errorf("web: http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		kind := DetectBlock(resp, body)
		return "", eris.Wrapf(errPermanent, "web: http %d from %s%s", resp.StatusCode, rawURL, kind.suffix())
	}

	if kind := DetectBlock(resp, body); kind != BlockNone {
		zap.L().Warn("website looks like a block page",
			zap.String("url", rawURL),
			zap.String("block_type", string(kind)),
		)
		if f.opts.OnBlocked != nil {
			f.opts.OnBlocked(rawURL, kind)
		}
	}

	return decodeBody(body, resp.Header.Get("Content-Type")), nil
}

func (f *WebFetcher) limiterFor(rawURL string) *rate.Limiter {
	if f.opts.RequestsPerSecond <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.opts.RequestsPerSecond), 1)
		f.limiters[u.Host] = lim
	}
	return lim
}

// decodeBody converts body to UTF-8 using the charset named in contentType.
// Unknown or missing charsets leave the bytes untouched.
func decodeBody(body []byte, contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(body)
	}
	cs := strings.ToLower(strings.TrimSpace(params["charset"]))
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return string(body)
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		zap.L().Debug("unknown charset, using raw bytes", zap.String("charset", cs))
		return string(body)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
