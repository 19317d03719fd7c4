// Package model defines the core data structures used throughout kbcrawl.
//
// This package contains the following main types:
//   - Endpoint: A canonical same-origin path that identifies one page
//   - Site: The origin every endpoint of a crawl is resolved against
//   - Algorithm: The exploration order (breadth-first or depth-first)
//   - PageResult: Content, metadata, screenshot and links of a fetched page
//   - CrawlReport: The ordered record of the endpoints processed by one crawl
//
// The crawler, fetcher, store, database and report packages all share these
// types, so they live in their own package to avoid import cycles.
package model
