package report

import (
	"fmt"
	"slices"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Summary condenses a CrawlResult into the numbers shown at the end of a run.
type Summary struct {
	Site         string      `json:"site"`
	MaxDepth     int         `json:"max_depth"`
	PagesCrawled int         `json:"pages_crawled"`
	FailedPages  int         `json:"failed_pages"`
	SavedFiles   int         `json:"saved_files"`
	Depths       []DepthStat `json:"depths"`
	RunTime      string      `json:"run_time"`
	Cancelled    bool        `json:"cancelled,omitempty"`
}

// DepthStat is the number of pages first reached at a depth.
type DepthStat struct {
	Depth int `json:"depth"`
	Pages int `json:"pages"`
}

// Summarize builds the Summary of result.
func Summarize(result *model.CrawlResult) *Summary {
	s := &Summary{
		Site:         result.Site,
		MaxDepth:     result.MaxDepth,
		PagesCrawled: len(result.Pages),
		FailedPages:  result.FailedCount(),
		RunTime:      FormatElapsed(result.RunTime),
		Cancelled:    result.Cancelled,
		Depths:       []DepthStat{},
	}
	for _, p := range result.Pages {
		if p.SavedAs != "" {
			s.SavedFiles++
		}
	}

	depths := result.Depths()
	keys := make([]int, 0, len(depths))
	for d := range depths {
		keys = append(keys, d)
	}
	slices.Sort(keys)
	for _, d := range keys {
		s.Depths = append(s.Depths, DepthStat{Depth: d, Pages: depths[d]})
	}
	return s
}

// FormatElapsed renders d as mm:ss.cc. Minutes keep counting past 59.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	centis := int((d % time.Second) / (10 * time.Millisecond))
	return fmt.Sprintf("%02d:%02d.%02d", minutes, seconds, centis)
}
