// Package database provides SQLite-based storage of crawl history.
//
// Every completed run is stored twice: as the full CrawlResult JSON for
// exact reloading, and as one row per page so that a page can be followed
// across runs without decoding whole reports. The history feeds the
// history and compare commands.
//
// modernc.org/sqlite is a CGO-free driver, so the binary cross-compiles
// without a C toolchain. WAL mode is enabled by default.
package database
