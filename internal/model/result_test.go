package model

import (
	"encoding/json"
	"testing"
)

func testResult() *CrawlResult {
	return NewCrawlResult("run-1", "http://contoso.com", 2, []*CrawledPage{
		{Key: "http://contoso.com/", URL: "http://contoso.com", FirstVisitedDepth: 1, PageLinks: []string{"http://contoso.com/a"}},
		{Key: "http://contoso.com/a", URL: "http://contoso.com/a", FirstVisitedDepth: 2, Error: "Status code 404"},
		{Key: "http://contoso.com/b", URL: "http://contoso.com/b", FirstVisitedDepth: 2, PageLinks: []string{}},
	})
}

func TestCrawlResultLookup(t *testing.T) {
	t.Parallel()

	t.Run("finds recorded page", func(t *testing.T) {
		t.Parallel()

		r := testResult()
		p, ok := r.Lookup("http://contoso.com/a")
		if !ok {
			t.Fatal("expected page to be found")
		}
		if p.Error != "Status code 404" {
			t.Errorf("unexpected page: %+v", p)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		r := testResult()
		if _, ok := r.Lookup("http://contoso.com/missing"); ok {
			t.Error("expected lookup to fail")
		}
	})

	t.Run("works after json round trip", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(testResult())
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var decoded CrawlResult
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if _, ok := decoded.Lookup("http://contoso.com/b"); !ok {
			t.Error("expected decoded result to find page")
		}
	})
}

func TestCrawlResultSummaries(t *testing.T) {
	t.Parallel()

	r := testResult()

	links := r.Links()
	if len(links) != 3 || links[0] != "http://contoso.com/" {
		t.Errorf("unexpected links: %v", links)
	}
	if got := r.FailedCount(); got != 1 {
		t.Errorf("FailedCount() = %d, want 1", got)
	}
	depths := r.Depths()
	if depths[1] != 1 || depths[2] != 2 {
		t.Errorf("unexpected depths: %v", depths)
	}

	b, _ := r.Lookup("http://contoso.com/b")
	if !b.HasLinks() {
		t.Error("page with empty links should report HasLinks")
	}
	a, _ := r.Lookup("http://contoso.com/a")
	if a.HasLinks() || !a.Failed() {
		t.Errorf("failed page reported wrong state: %+v", a)
	}
}
