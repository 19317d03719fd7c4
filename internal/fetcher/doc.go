// Package fetcher renders pages for the crawler.
//
// A Fetcher opens one Session on a Backend per fetch, navigates it with a
// bounded wait, reads the rendered HTML, takes a screenshot and runs
// Extract over the markup. The session is always closed, whatever the
// outcome of the fetch.
//
// Two backends are provided:
//
//   - RodBackend drives a headless Chromium through go-rod. Every session
//     launches its own browser process.
//   - HTTPBackend issues a plain GET and returns the raw markup. It cannot
//     take screenshots and does not run scripts.
//
// Both backends can route their traffic through a SOCKS5 or HTTP proxy.
// CheckProxy verifies that the proxy answers before a crawl starts.
package fetcher
