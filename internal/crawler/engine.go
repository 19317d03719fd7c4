package crawler

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nao1215/kbcrawl/internal/model"
)

// PageFetcher renders one endpoint of a site.
//
// A recovered failure (timeout, network error) is returned as a
// *NavigationError; the engine records it and moves on. A failure that
// makes every further fetch pointless is returned as a *FatalBackendError
// and aborts the crawl.
type PageFetcher interface {
	Fetch(ctx context.Context, site model.Site, endpoint model.Endpoint) (*model.PageResult, error)
}

// ArtifactStore persists the artifacts of a fetched page.
// Both methods return the location they wrote to.
type ArtifactStore interface {
	WriteScreenshot(site model.Site, endpoint model.Endpoint, data []byte) (string, error)
	WriteContent(site model.Site, endpoint model.Endpoint, content string) (string, error)
}

// ProgressFunc is called after every processed endpoint.
type ProgressFunc func(record model.PageRecord)

// State is the lifecycle state of an Engine.
type State int

const (
	// StateIdle is an engine that has not started crawling.
	StateIdle State = iota
	// StateRunning is an engine whose frontier is being drained.
	StateRunning
	// StateCompleted is an engine whose crawl has ended, for any reason.
	StateCompleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Engine walks one site from a seed endpoint, fetching every reachable
// same-origin endpoint exactly once. An Engine runs a single crawl.
type Engine struct {
	site       model.Site
	normalizer *Normalizer
	fetcher    PageFetcher
	store      ArtifactStore
	algorithm  model.Algorithm
	policy     DepthPolicy
	filter     *LinkFilter
	maxPages   int
	progress   ProgressFunc
	logger     *slog.Logger

	mu    sync.Mutex
	state State
}

// Option configures an Engine.
type Option func(*Engine)

// WithAlgorithm sets the exploration order. The default is breadth-first.
func WithAlgorithm(algorithm model.Algorithm) Option {
	return func(e *Engine) {
		e.algorithm = algorithm
	}
}

// WithMaxDepth bounds the depth of fetched endpoints. 0 means unbounded.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.policy = NewDepthPolicy(depth)
	}
}

// WithMaxPages stops the crawl after n processed endpoints. 0 means no cap.
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithStore sets where page artifacts are written.
// Without a store nothing is persisted.
func WithStore(store ArtifactStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLinkFilter restricts which discovered endpoints are enqueued.
func WithLinkFilter(filter *LinkFilter) Option {
	return func(e *Engine) {
		e.filter = filter
	}
}

// WithProgress registers a callback invoked after each processed endpoint.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an idle engine for site.
func NewEngine(site model.Site, fetcher PageFetcher, opts ...Option) *Engine {
	e := &Engine{
		site:       site,
		normalizer: NewNormalizer(site),
		fetcher:    fetcher,
		algorithm:  model.AlgorithmBFS,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// traversal is the mutable state of one crawl. Nothing outside the
// engine ever sees the frontier or the visited registry.
type traversal struct {
	frontier Frontier
	visited  *VisitedRegistry
	report   *model.CrawlReport
}

// Crawl explores the site starting at seed and returns the report of the
// processed endpoints.
//
// Per-endpoint failures never stop the crawl. A fatal backend failure
// returns a failed report without pages together with the error. When
// ctx is cancelled the pages processed so far are returned with ctx.Err().
func (e *Engine) Crawl(ctx context.Context, seed model.Endpoint) (*model.CrawlReport, error) {
	if e.site.IsZero() {
		return nil, &InvalidInputError{Input: e.site.String(), Reason: "site has no origin"}
	}
	if e.fetcher == nil {
		return nil, &InvalidInputError{Input: "fetcher", Reason: "no page fetcher configured"}
	}
	start, ok := e.normalizer.Normalize(seed.String())
	if !ok {
		return nil, &InvalidInputError{Input: seed.String(), Reason: "seed is not an endpoint of " + e.site.Origin()}
	}
	frontier, err := NewFrontier(e.algorithm)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	e.state = StateRunning
	e.mu.Unlock()
	defer e.setState(StateCompleted)

	t := &traversal{
		frontier: frontier,
		visited:  NewVisitedRegistry(),
		report:   model.NewCrawlReport(e.site, start, e.algorithm, e.policy.MaxDepth),
	}
	t.frontier.Push(start)

	e.logger.Info("crawl started",
		"site", e.site.Origin(),
		"seed", start,
		"algorithm", e.algorithm,
		"max_depth", e.policy.MaxDepth)

	for t.frontier.Len() > 0 {
		batch := t.frontier.BatchSize()
		for range batch {
			if err := ctx.Err(); err != nil {
				return e.finish(t, model.CrawlStatusCancelled, err)
			}
			if e.maxPages > 0 && t.report.Len() >= e.maxPages {
				t.report.Truncated = true
				e.logger.Info("page limit reached", "max_pages", e.maxPages, "pending", t.frontier.Len())
				return e.finish(t, model.CrawlStatusCompleted, nil)
			}

			endpoint, ok := t.frontier.Pop()
			if !ok {
				break
			}
			if err := e.visit(ctx, t, endpoint); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return e.finish(t, model.CrawlStatusCancelled, ctxErr)
				}
				t.report.Pages = make([]model.PageRecord, 0)
				return e.finish(t, model.CrawlStatusFailed, err)
			}
		}
	}

	return e.finish(t, model.CrawlStatusCompleted, nil)
}

// visit processes one popped endpoint. Only fatal errors and the
// cancellation of ctx are returned.
func (e *Engine) visit(ctx context.Context, t *traversal, endpoint model.Endpoint) error {
	// Duplicates are resolved here rather than at push time.
	if !t.visited.TryVisit(endpoint) {
		return nil
	}
	if !e.policy.WithinBound(endpoint) {
		t.report.BeyondDepth++
		e.logger.Debug("beyond depth bound", "endpoint", endpoint, "depth", Depth(endpoint))
		return nil
	}

	record := model.PageRecord{
		Endpoint: endpoint,
		Depth:    Depth(endpoint),
	}

	var links []string
	page, err := e.fetcher.Fetch(ctx, e.site, endpoint)
	if err != nil && ctx.Err() != nil {
		// Interrupted fetches are not reported as failed pages.
		return ctx.Err()
	}
	switch {
	case err != nil && IsFatal(err):
		e.logger.Error("rendering backend failed", "endpoint", endpoint, "error", err)
		return err
	case err != nil:
		record.FetchError = err.Error()
		e.logger.Warn("fetch failed", "endpoint", endpoint, "error", err)
	case page != nil:
		record.Title = page.Title
		record.Description = page.Preview.Description
		e.persist(endpoint, page, &record)
		links = page.Links
	}

	record.LinkCount = e.enqueue(t, links)
	t.report.Append(record)

	e.logger.Debug("page processed",
		"endpoint", endpoint,
		"depth", record.Depth,
		"links", record.LinkCount,
		"pending", t.frontier.Len())
	if e.progress != nil {
		e.progress(record)
	}
	return nil
}

// persist writes the artifacts of page. Failures are logged and recorded
// on the page record, never returned.
func (e *Engine) persist(endpoint model.Endpoint, page *model.PageResult, record *model.PageRecord) {
	if e.store == nil {
		return
	}

	var errs []error
	if len(page.Screenshot) > 0 {
		path, err := e.store.WriteScreenshot(e.site, endpoint, page.Screenshot)
		if err != nil {
			errs = append(errs, &StorageError{Endpoint: endpoint, Artifact: "screenshot", Err: err})
		} else {
			record.ScreenshotPath = path
		}
	}

	content, err := page.ContentDocument()
	if err == nil {
		var path string
		path, err = e.store.WriteContent(e.site, endpoint, content)
		record.ContentPath = path
	}
	if err != nil {
		record.ContentPath = ""
		errs = append(errs, &StorageError{Endpoint: endpoint, Artifact: "content", Err: err})
	}

	if err := errors.Join(errs...); err != nil {
		record.StoreError = err.Error()
		e.logger.Warn("failed to store artifacts", "endpoint", endpoint, "error", err)
	}
}

// enqueue normalizes the raw links of a page and pushes the unseen ones.
// It returns the number of distinct same-origin endpoints found.
func (e *Engine) enqueue(t *traversal, links []string) int {
	found := make(map[model.Endpoint]struct{}, len(links))
	for _, raw := range links {
		endpoint, ok := e.normalizer.Normalize(raw)
		if !ok {
			continue
		}
		if _, dup := found[endpoint]; dup {
			continue
		}
		found[endpoint] = struct{}{}

		if !e.filter.Allow(endpoint) {
			continue
		}
		if !t.visited.Has(endpoint) {
			t.frontier.Push(endpoint)
		}
	}
	return len(found)
}

func (e *Engine) finish(t *traversal, status model.CrawlStatus, err error) (*model.CrawlReport, error) {
	t.report.Finish(status, err)
	e.logger.Info("crawl finished",
		"site", e.site.Origin(),
		"status", status,
		"pages", t.report.Len(),
		"beyond_depth", t.report.BeyondDepth,
		"duration", t.report.Duration())
	return t.report, err
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}
