package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Renderer fetches pages through headless Chrome so that script-generated
// markup is visible to the link extractor. It satisfies Fetcher.
type Renderer struct {
	timeout      time.Duration
	userAgent    string
	settle       time.Duration
	execPath     string
	allocOptions []chromedp.ExecAllocatorOption
	logger       *slog.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRenderTimeout bounds a single page render.
func WithRenderTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) {
		r.timeout = d
	}
}

// WithRenderUserAgent sets the browser User-Agent.
func WithRenderUserAgent(ua string) RendererOption {
	return func(r *Renderer) {
		r.userAgent = ua
	}
}

// WithSettleDelay sets how long to wait after the document is ready before
// capturing the DOM.
func WithSettleDelay(d time.Duration) RendererOption {
	return func(r *Renderer) {
		r.settle = d
	}
}

// WithBrowserPath selects the Chrome executable.
func WithBrowserPath(path string) RendererOption {
	return func(r *Renderer) {
		r.execPath = path
	}
}

// WithRenderLogger sets the logger.
func WithRenderLogger(l *slog.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = l
	}
}

// NewRenderer creates a headless Chrome fetcher.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		timeout:   60 * time.Second,
		userAgent: DefaultUserAgent,
		settle:    250 * time.Millisecond,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.allocOptions = append(r.allocOptions, chromedp.DefaultExecAllocatorOptions[:]...)
	r.allocOptions = append(r.allocOptions,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(r.userAgent),
	)
	if r.execPath != "" {
		r.allocOptions = append(r.allocOptions, chromedp.ExecPath(r.execPath))
	}
	return r
}

// Fetch navigates to rawURL and returns the rendered document.
func (r *Renderer) Fetch(parent context.Context, rawURL string, maxBytes int64) Result {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.allocOptions...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	resp, err := chromedp.RunResponse(browserCtx, chromedp.Navigate(rawURL))
	if err != nil {
		return Result{Error: fmt.Sprintf("render %s: %v", rawURL, err)}
	}
	if resp == nil {
		return Result{Error: "render " + rawURL + ": no response"}
	}

	status := int(resp.Status)
	if status < 200 || status > 299 {
		res := Result{Error: statusError(status), StatusCode: status}
		if v, ok := resp.Headers["Retry-After"]; ok {
			res.RetryAfter = ParseRetryAfter(fmt.Sprint(v), time.Now())
		}
		return res
	}

	mediaType := parseMediaType(resp.MimeType)
	if !IsHTMLType(mediaType) {
		// Chrome does not expose the body of non-document navigations.
		return Result{MediaType: mediaType, Error: MsgContentNotHTML, StatusCode: status}
	}

	var html string
	err = chromedp.Run(browserCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return Result{Error: fmt.Sprintf("render %s: %v", rawURL, err), MediaType: mediaType, StatusCode: status}
	}
	if maxBytes > 0 && int64(len(html)) > maxBytes {
		return Result{Error: MsgContentTooLarge, MediaType: mediaType, StatusCode: status}
	}

	r.logger.Debug("page rendered", "url", rawURL, "bytes", len(html))
	return Result{
		Content:    html,
		Data:       []byte(html),
		MediaType:  strings.ToLower(mediaType),
		StatusCode: status,
	}
}
