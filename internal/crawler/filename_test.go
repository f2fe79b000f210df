package crawler

import (
	"net/url"
	"testing"
)

func TestFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		isHTML   bool
		fallback string
		want     string
	}{
		{name: "root html page", raw: "http://contoso.com", isHTML: true, fallback: ".pdf", want: "root.html"},
		{name: "root with slash", raw: "http://contoso.com/", isHTML: true, fallback: ".pdf", want: "root.html"},
		{name: "nested html path", raw: "http://contoso.com/docs/intro/", isHTML: true, fallback: ".pdf", want: "docs_intro.html"},
		{name: "html suffix is not doubled", raw: "http://contoso.com/index.HTML", isHTML: true, fallback: ".pdf", want: "index.HTML"},
		{name: "query is appended and sanitized", raw: "http://contoso.com/search?q=go&page=2", isHTML: true, fallback: ".pdf", want: "search_q_go_page_2.html"},
		{name: "non html keeps its extension", raw: "http://contoso.com/files/report.pdf", isHTML: false, fallback: ".pdf", want: "files_report.pdf"},
		{name: "non html without extension uses fallback", raw: "http://contoso.com/download", isHTML: false, fallback: ".pdf", want: "download.pdf"},
		{name: "empty fallback leaves the name bare", raw: "http://contoso.com/download", isHTML: false, fallback: "", want: "download"},
		{name: "non html root", raw: "http://contoso.com/", isHTML: false, fallback: ".bin", want: "root.bin"},
		{name: "fragment is ignored", raw: "http://contoso.com/page#top", isHTML: true, fallback: ".pdf", want: "page.html"},
		{name: "illegal characters are replaced", raw: "http://contoso.com/a:b*c|d", isHTML: true, fallback: ".pdf", want: "a_b_c_d.html"},
		{name: "query with dot counts as an extension", raw: "http://contoso.com/get?v=1.5", isHTML: false, fallback: ".pdf", want: "get_v_1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.raw, err)
			}
			if got := FileName(u, tt.isHTML, tt.fallback); got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	got := sanitizeFileName("a<b>c\"d\\e\x01f=g&h")
	want := "a_b_c_d_e_f_g_h"
	if got != want {
		t.Errorf("sanitizeFileName() = %q, want %q", got, want)
	}
}
