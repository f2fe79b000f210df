// Package model defines the data structures shared by the crawler, the
// report writers and the run history database.
//
// This package contains the following main types:
//   - PageKey: the normalized identity of a page (fragment removed)
//   - CrawledPage: the outcome of fetching and parsing one page
//   - CrawlResult: the ordered, immutable report of one crawl run
//
// Models live in their own package so that crawler, report and database can
// all depend on them without importing each other. Every type is
// serializable to JSON because results are written as reports and stored in
// the history database.
package model
