package crawler

import (
	"net/url"
	"path"
	"strings"
)

// rootFileName names the page at the site root.
const rootFileName = "root"

// FileName derives the file name under which the body of u is persisted.
//
// The URL path without surrounding slashes forms the name ("root" when
// empty); a query string is appended as "_<query>". Characters that are
// illegal in file names, plus '&' and '=', become '_'. HTML pages end in
// ".html". Other names without an extension get the extension of the URL
// path or, failing that, fallbackExt.
func FileName(u *url.URL, isHTML bool, fallbackExt string) string {
	name := strings.Trim(u.EscapedPath(), "/")
	if strings.TrimSpace(name) == "" {
		name = rootFileName
	}
	name = sanitizeFileName(name)

	if u.RawQuery != "" {
		name += "_" + sanitizeFileName(u.RawQuery)
	}

	if isHTML {
		if !strings.HasSuffix(strings.ToLower(name), ".html") {
			name += ".html"
		}
		return name
	}

	if extension(name) == "" {
		if ext := extension(u.Path); ext != "" {
			name += ext
		} else {
			name += fallbackExt
		}
	}
	return name
}

// extension returns the extension of the last path element, or "" when
// there is none. A trailing dot is not an extension.
func extension(p string) string {
	ext := path.Ext(p)
	if ext == "." {
		return ""
	}
	return ext
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*', '&', '=':
			return '_'
		}
		return r
	}, s)
}
