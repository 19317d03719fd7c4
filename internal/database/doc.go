// Package database keeps the crawl history in SQLite.
//
// Every finished crawl is stored as one row of crawl_runs, holding the
// full report as JSON, plus one row of pages per processed endpoint so
// that single pages can be queried without decoding reports.
//
// The driver is modernc.org/sqlite, which needs no cgo. The database
// file lives under the XDG data directory by default.
package database
