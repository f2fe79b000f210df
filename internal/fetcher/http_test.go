package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFetcher(t *testing.T, opts ...Option) *HTTPFetcher {
	t.Helper()
	opts = append([]Option{WithTransientRetry(3, time.Millisecond)}, opts...)
	f, err := NewHTTPFetcher(opts...)
	if err != nil {
		t.Fatalf("NewHTTPFetcher() error = %v", err)
	}
	return f
}

func TestHTTPFetcherFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a href="/a">a</a></body></html>`))
	})
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	mux.HandleFunc("/limited", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/large", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(bytes.Repeat([]byte("a"), 2048))
	})
	mux.HandleFunc("/untyped", func(w http.ResponseWriter, _ *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte("<p>hello</p>"))
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte("<p>compressed</p>"))
		_ = gz.Close()
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	f := newTestFetcher(t)

	t.Run("html page", func(t *testing.T) {
		t.Parallel()

		res := f.Fetch(context.Background(), server.URL+"/page", 0)
		if res.Error != "" {
			t.Fatalf("unexpected error %q", res.Error)
		}
		if !strings.Contains(res.Content, `href="/a"`) {
			t.Errorf("unexpected content %q", res.Content)
		}
		if res.MediaType != "text/html" || res.StatusCode != http.StatusOK {
			t.Errorf("unexpected media type %q / status %d", res.MediaType, res.StatusCode)
		}
		if !res.HasContent() {
			t.Error("expected HasContent")
		}
	})

	t.Run("non html body is attached with error", func(t *testing.T) {
		t.Parallel()

		res := f.Fetch(context.Background(), server.URL+"/doc.pdf", 0)
		if res.Error != MsgContentNotHTML {
			t.Errorf("expected %q, got %q", MsgContentNotHTML, res.Error)
		}
		if string(res.Data) != "%PDF-1.4" {
			t.Errorf("unexpected data %q", res.Data)
		}
		if res.Content != "" || res.HasContent() {
			t.Error("expected no text content")
		}
	})

	t.Run("non success status", func(t *testing.T) {
		t.Parallel()

		res := f.Fetch(context.Background(), server.URL+"/missing", 0)
		if res.Error != "Status code 404" || res.StatusCode != http.StatusNotFound {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("rate limited exposes retry after", func(t *testing.T) {
		t.Parallel()

		res := f.Fetch(context.Background(), server.URL+"/limited", 0)
		if res.StatusCode != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", res.StatusCode)
		}
		if res.RetryAfter != 7*time.Second {
			t.Errorf("expected 7s retry after, got %v", res.RetryAfter)
		}
	})

	t.Run("content too large", func(t *testing.T) {
		t.Parallel()

		res := f.Fetch(context.Background(), server.URL+"/large", 1024)
		if res.Error != MsgContentTooLarge {
			t.Errorf("expected %q, got %q", MsgContentTooLarge, res.Error)
		}
		if len(res.Data) != 0 {
			t.Error("expected no data for oversized body")
		}
	})

	t.Run("limit disabled when not positive", func(t *testing.T) {
		t.Parallel()

		res := f.Fetch(context.Background(), server.URL+"/large", 0)
		if res.Error != "" || len(res.Data) != 2048 {
			t.Errorf("unexpected result error=%q len=%d", res.Error, len(res.Data))
		}
	})

	t.Run("missing content type defaults to html", func(t *testing.T) {
		t.Parallel()

		res := f.Fetch(context.Background(), server.URL+"/untyped", 0)
		if res.MediaType != "text/html" || !res.HasContent() {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("gzip body is decoded", func(t *testing.T) {
		t.Parallel()

		res := f.Fetch(context.Background(), server.URL+"/gzip", 0)
		if res.Content != "<p>compressed</p>" {
			t.Errorf("unexpected content %q", res.Content)
		}
	})
}

type flakyTransport struct {
	failures int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.calls.Add(1) <= t.failures {
		return nil, errors.New("connection reset by peer")
	}
	return t.next.RoundTrip(req)
}

func TestHTTPFetcherTransientRetry(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	t.Run("recovers after transport failures", func(t *testing.T) {
		t.Parallel()

		tr := &flakyTransport{failures: 2, next: http.DefaultTransport}
		f := newTestFetcher(t, WithHTTPClient(&http.Client{Transport: tr}))

		res := f.Fetch(context.Background(), server.URL, 0)
		if res.Error != "" {
			t.Fatalf("unexpected error %q", res.Error)
		}
		if got := tr.calls.Load(); got != 3 {
			t.Errorf("expected 3 calls, got %d", got)
		}
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		t.Parallel()

		tr := &flakyTransport{failures: 10, next: http.DefaultTransport}
		f := newTestFetcher(t, WithHTTPClient(&http.Client{Transport: tr}))

		res := f.Fetch(context.Background(), server.URL, 0)
		if !strings.Contains(res.Error, "connection reset by peer") {
			t.Errorf("expected transport error, got %q", res.Error)
		}
		if got := tr.calls.Load(); got != 4 {
			t.Errorf("expected 1 call plus 3 retries, got %d", got)
		}
	})

	t.Run("status errors are not retried", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(s.Close)

		f := newTestFetcher(t)
		res := f.Fetch(context.Background(), s.URL, 0)
		if res.Error != "Status code 503" {
			t.Errorf("unexpected error %q", res.Error)
		}
		if hits.Load() != 1 {
			t.Errorf("expected a single request, got %d", hits.Load())
		}
	})
}

func TestHTTPFetcherSendsHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Crawl")
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	f := newTestFetcher(t, WithUserAgent("test-agent"), WithHeaders(map[string]string{"X-Crawl": "yes"}))
	_ = f.Fetch(context.Background(), server.URL, 0)

	if gotUA != "test-agent" {
		t.Errorf("expected user agent test-agent, got %q", gotUA)
	}
	if gotCustom != "yes" {
		t.Errorf("expected custom header, got %q", gotCustom)
	}
}

func TestNewHTTPFetcherWithProxy(t *testing.T) {
	t.Parallel()

	f, err := NewHTTPFetcher(WithSOCKS5Proxy("socks5://127.0.0.1:9050"))
	if err != nil {
		t.Fatalf("NewHTTPFetcher() error = %v", err)
	}
	if f.Client() == nil {
		t.Fatal("expected client")
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "seconds", value: "3", want: 3 * time.Second},
		{name: "empty", value: "", want: 0},
		{name: "negative", value: "-1", want: 0},
		{name: "garbage", value: "soon", want: 0},
		{name: "http date", value: "Mon, 01 Jan 2024 12:00:10 GMT", want: 10 * time.Second},
		{name: "past date", value: "Mon, 01 Jan 2024 11:00:00 GMT", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseRetryAfter(tt.value, now); got != tt.want {
				t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
