package model

import (
	"net/url"
	"strings"
)

// PageKey is the normalized form of a page URL used to identify a page.
//
// Two URLs that differ only by fragment map to the same PageKey. Scheme and
// host are lowercased and an empty path becomes "/", so
// "HTTP://Example.com#top" and "http://example.com/" are the same page.
type PageKey string

// String returns the key as a URL string.
func (k PageKey) String() string {
	return string(k)
}

// NewPageKey normalizes u into a PageKey. u is not modified.
func NewPageKey(u *url.URL) PageKey {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
		c.RawPath = ""
	}
	return PageKey(c.String())
}

// ParsePageKey parses raw and returns its PageKey. The second return value
// is false when raw is not an absolute URL with a host, for example a
// relative href, "#" or "mailto:" link.
func ParsePageKey(raw string) (PageKey, bool) {
	u, ok := ParseAbsolute(raw)
	if !ok {
		return "", false
	}
	return NewPageKey(u), true
}

// ParseAbsolute parses raw and reports whether it is an absolute URL with
// both a scheme and a host.
func ParseAbsolute(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, false
	}
	return u, true
}
