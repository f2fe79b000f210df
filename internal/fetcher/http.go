package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Default values for HTTPFetcher.
const (
	DefaultTimeout          = 30 * time.Second
	DefaultUserAgent        = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"
	DefaultTransientRetries = 3
	DefaultTransientDelay   = 300 * time.Millisecond
)

// HTTPFetcher fetches pages with net/http.
//
// Transport failures (connection refused, reset, timeouts) are retried a
// fixed number of times with a fixed delay. HTTP error statuses are never
// retried here; 429 handling belongs to the caller.
type HTTPFetcher struct {
	client           *http.Client
	userAgent        string
	headers          map[string]string
	timeout          time.Duration
	proxyAddress     string
	transientRetries int
	transientDelay   time.Duration
	limiter          *hostLimiter
	logger           *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets the client used for requests. When set, the timeout
// and proxy options are ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithTimeout sets the overall timeout of a single request.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithHeaders adds headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(f *HTTPFetcher) {
		for k, v := range headers {
			f.headers[k] = v
		}
	}
}

// WithSOCKS5Proxy routes requests through the SOCKS5 proxy at address
// ("host:port" or "socks5://host:port").
func WithSOCKS5Proxy(address string) Option {
	return func(f *HTTPFetcher) {
		f.proxyAddress = address
	}
}

// WithRequestsPerSecond limits requests per host. Zero disables the limit.
func WithRequestsPerSecond(rps float64) Option {
	return func(f *HTTPFetcher) {
		f.limiter = newHostLimiter(rps)
	}
}

// WithTransientRetry sets how often and how far apart transport failures
// are retried.
func WithTransientRetry(retries int, delay time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.transientRetries = retries
		f.transientDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.logger = l
	}
}

// NewHTTPFetcher creates an HTTPFetcher. It fails only when the proxy
// address cannot be used.
func NewHTTPFetcher(opts ...Option) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		userAgent:        DefaultUserAgent,
		headers:          make(map[string]string),
		timeout:          DefaultTimeout,
		transientRetries: DefaultTransientRetries,
		transientDelay:   DefaultTransientDelay,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		client, err := newClient(f.timeout, f.proxyAddress)
		if err != nil {
			return nil, err
		}
		f.client = client
	}
	return f, nil
}

func newClient(timeout time.Duration, proxyAddress string) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if addr := strings.TrimSpace(proxyAddress); addr != "" {
		addr = strings.TrimPrefix(addr, "socks5://")
		dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("create SOCKS5 dialer for %s: %w", addr, err)
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", addr)
		}
		transport.Proxy = nil
		transport.DialContext = ctxDialer.DialContext
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// Client returns the underlying HTTP client, for example to share it with
// a RobotsFetcher or sitemap discovery.
func (f *HTTPFetcher) Client() *http.Client {
	return f.client
}

// Fetch downloads rawURL. See Fetcher for the contract.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) Result {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{Error: err.Error()}
	}
	if err := f.limiter.Wait(ctx, u.Host); err != nil {
		return Result{Error: err.Error()}
	}

	resp, err := f.do(ctx, rawURL)
	if err != nil {
		return Result{Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{
			Error:      statusError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType := parseMediaType(contentType)
	tooLarge := Result{Error: MsgContentTooLarge, MediaType: mediaType, StatusCode: resp.StatusCode}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return tooLarge
	}

	body, err := readBody(resp, maxBytes)
	if errors.Is(err, errBodyTooLarge) {
		return tooLarge
	}
	if err != nil {
		return Result{Error: err.Error(), MediaType: mediaType, StatusCode: resp.StatusCode}
	}

	if !IsHTMLType(mediaType) {
		return Result{Data: body, MediaType: mediaType, Error: MsgContentNotHTML, StatusCode: resp.StatusCode}
	}

	return Result{
		Content:    decodeText(body, contentType),
		Data:       body,
		MediaType:  mediaType,
		StatusCode: resp.StatusCode,
	}
}

// do sends the request, retrying transport failures.
func (f *HTTPFetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= f.transientRetries; attempt++ {
		if attempt > 0 {
			f.logger.Debug("retrying after transport error",
				"url", rawURL,
				"attempt", attempt,
				"error", lastErr,
			)
			if err := sleep(ctx, f.transientDelay); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
		for k, v := range f.headers {
			req.Header.Set(k, v)
		}

		resp, err := f.client.Do(req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
