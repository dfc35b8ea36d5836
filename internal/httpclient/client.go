package httpclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
}

// UserAgent returns a random desktop browser user agent.
func UserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// ErrRetriesExhausted is returned when every attempt failed.
var ErrRetriesExhausted = errors.New("httpclient: retries exhausted")

// Options configures the client.
type Options struct {
	ProxyURL string

	// RatePerSecond and Burst bound requests per host.
	RatePerSecond float64
	Burst         int

	// MaxRetries is the total number of attempts per request.
	MaxRetries  int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.RatePerSecond == 0 {
		o.RatePerSecond = 0.5
	}
	if o.Burst == 0 {
		o.Burst = 1
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.BaseBackoff == 0 {
		o.BaseBackoff = 2 * time.Second
	}
	if o.Timeout == 0 {
		o.Timeout = 15 * time.Second
	}
	return o
}

// Client wraps http.Client with browser-like headers, a rate limiter per
// host and retries with increasing backoff.
type Client struct {
	inner *http.Client
	opts  Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Client with the given options.
func New(opts Options) (*Client, error) {
	opts = opts.withDefaults()

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}

	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("httpclient: invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		inner:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// Do executes a body-less request. Network errors, 429 and 5xx responses
// are retried; any other response is returned to the caller as is.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	c.setHeaders(req)

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * c.opts.BaseBackoff
			slog.Warn("retrying request",
				"host", req.URL.Host,
				"attempt", attempt+1,
				"max", c.opts.MaxRetries,
				"backoff", backoff,
				"error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter(req.URL.Host).Wait(ctx); err != nil {
			return nil, fmt.Errorf("httpclient: rate limit wait: %w", err)
		}

		resp, err := c.inner.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if !retryable(resp.StatusCode) {
			return resp, nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrRetriesExhausted, req.URL.Host, c.opts.MaxRetries, lastErr)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.opts.RatePerSecond), c.opts.Burst)
		c.limiters[host] = l
	}
	return l
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9,en-US;q=0.8,en;q=0.7")
	// Accept-Encoding is left to http.Transport so gzip is decoded transparently.
	req.Header.Set("DNT", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
