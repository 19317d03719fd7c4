// Package crawler walks a single website from a seed endpoint.
//
// # Architecture
//
// The package is built around the Engine type, which drains a Frontier
// of endpoints, suppresses duplicates through a VisitedRegistry, bounds
// exploration with a DepthPolicy and hands every endpoint to a
// PageFetcher. Links returned by the fetcher are normalized into
// same-origin endpoints before they are pushed back onto the frontier.
//
// # Components
//
//   - Engine: the traversal loop and its failure handling
//   - Normalizer: turns raw hrefs into endpoints of one site
//   - Frontier: Queue (breadth-first, drained level by level) or Stack
//     (depth-first)
//   - VisitedRegistry: the monotonic set of processed endpoints
//   - DepthPolicy: the depth bound; out-of-bound endpoints are dead ends
//   - LinkFilter: optional ignore/follow patterns
//
// # Failures
//
// A NavigationError for one endpoint is recorded in the report and the
// crawl continues. A StorageError is logged and recorded. A
// FatalBackendError aborts the crawl with an empty failed report, and an
// InvalidInputError is returned before anything is fetched.
//
// # Usage
//
//	site, seed, err := crawler.ParseSeed("https://example.com/docs")
//	engine := crawler.NewEngine(site, fetcher,
//		crawler.WithAlgorithm(model.AlgorithmDFS),
//		crawler.WithMaxDepth(2),
//		crawler.WithStore(store))
//	report, err := engine.Crawl(ctx, seed)
package crawler
