// Package fetcher provides the outbound HTTP client used for site-context
// scraping and citation-URL validation. Every request carries a timeout and
// a per-host rate limit. There is no retry: a failed or non-2xx fetch is
// "no data" and the calling stage degrades.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "dossier-cli/1.0"

	// maxBodyBytes caps how much of a page body is read; news and
	// about-page scanning never needs more.
	maxBodyBytes = 512 * 1024
)

// Page is the result of a successful fetch.
type Page struct {
	URL        string
	StatusCode int
	Body       string
}

// Fetcher fetches URLs with per-host rate limiting.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*Page, error)
	Head(ctx context.Context, rawURL string) (int, error)
}

// Options configures an HTTP fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// PerHostRate is requests/second allowed against any single host.
	PerHostRate float64
	// Burst is the limiter burst size.
	Burst int
}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client *http.Client
	opts   Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates an HTTPFetcher with the given options.
func New(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.PerHostRate == 0 {
		opts.PerHostRate = 4
	}
	if opts.Burst == 0 {
		opts.Burst = 4
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the limiter for the URL's host, creating it on first use.
func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.opts.PerHostRate), f.opts.Burst)
		f.limiters[host] = lim
	}
	return lim
}

// Get fetches the URL once and returns the page. Non-2xx statuses are
// returned as errors; the status code is still reported in the Page for
// callers that want to distinguish.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*Page, error) {
	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: get")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}

	page := &Page{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return page, eris.Errorf("fetcher: status %d from %s", resp.StatusCode, rawURL)
	}
	return page, nil
}

// Head issues a HEAD request and returns the status code. Used for profile
// URL reachability checks where the body is irrelevant.
func (f *HTTPFetcher) Head(ctx context.Context, rawURL string) (int, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return 0, eris.Errorf("fetcher: not an http url: %s", rawURL)
	}
	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create head request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: head")
	}
	defer resp.Body.Close() //nolint:errcheck

	return resp.StatusCode, nil
}
