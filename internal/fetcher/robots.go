package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsFetcher wraps a Fetcher and refuses URLs disallowed by the target
// host's robots.txt. Rules are fetched once per host and cached for the
// lifetime of the RobotsFetcher. When robots.txt cannot be fetched or
// parsed every URL on that host is allowed.
type RobotsFetcher struct {
	next      Fetcher
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsFetcher decorates next. client is used for robots.txt requests;
// nil selects http.DefaultClient.
func NewRobotsFetcher(next Fetcher, client *http.Client, userAgent string, logger *slog.Logger) *RobotsFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsFetcher{
		next:      next,
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Fetch returns a MsgBlockedByRobots result without contacting the page
// when robots.txt disallows rawURL, and delegates otherwise.
func (r *RobotsFetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) Result {
	u, err := url.Parse(rawURL)
	if err == nil && u.IsAbs() && !r.allowed(ctx, u) {
		return Result{Error: MsgBlockedByRobots}
	}
	return r.next.Fetch(ctx, rawURL, maxBytes)
}

func (r *RobotsFetcher) allowed(ctx context.Context, u *url.URL) bool {
	data := r.rules(ctx, u)
	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, r.userAgent)
}

func (r *RobotsFetcher) rules(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := strings.ToLower(u.Scheme + "://" + u.Host)

	r.mu.Lock()
	data, ok := r.cache[host]
	r.mu.Unlock()
	if ok {
		return data
	}

	data, err := r.fetchRules(ctx, host)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing all", "host", host, "error", err)
		data = nil
	}
	if ctx.Err() != nil {
		// Do not cache a result produced by a cancelled request.
		return data
	}

	r.mu.Lock()
	r.cache[host] = data
	r.mu.Unlock()
	return data
}

func (r *RobotsFetcher) fetchRules(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
