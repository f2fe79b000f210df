// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl crawls a website breadth-first up to a depth limit, reports the
// links found on every page and can persist the downloaded pages.
//
// Usage:
//
//	sitecrawl crawl https://example.com
//	sitecrawl crawl --depth 3 --save https://example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
