// Package pipeline runs the stages of a site crawl in sequence.
//
// A Run flows through a Pipeline of Steps: CrawlStep explores the site
// with a fresh crawler.Engine and PersistStep records the resulting
// report in the crawl history. BatchProcessor runs one pipeline per seed
// URL concurrently, with errgroup bounding the number of crawls in flight.
// Crawls of different sites share no state.
package pipeline
