package log

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameter names whose values are masked.
var sensitiveParams = map[string]bool{
	"token":        true,
	"access_token": true,
	"auth":         true,
	"key":          true,
	"api_key":      true,
	"apikey":       true,
	"sig":          true,
	"signature":    true,
	"password":     true,
	"passwd":       true,
	"secret":       true,
	"session":      true,
	"sid":          true,
	"code":         true,
}

func looksLikeURL(s string) bool {
	return strings.Contains(s, "://")
}

// SanitizeURL removes userinfo from raw and masks the values of sensitive
// query parameters. Strings that do not parse are returned unchanged.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	changed := false
	if u.User != nil {
		u.User = nil
		changed = true
	}

	if u.RawQuery != "" {
		parts := strings.Split(u.RawQuery, "&")
		for i, part := range parts {
			rawName, _, found := strings.Cut(part, "=")
			if !found {
				continue
			}
			name := rawName
			if unescaped, err := url.QueryUnescape(rawName); err == nil {
				name = unescaped
			}
			if sensitiveParams[strings.ToLower(name)] {
				parts[i] = rawName + "=" + MaskValue
				changed = true
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	if !changed {
		return raw
	}
	return u.String()
}
