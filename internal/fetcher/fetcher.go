package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/kbcrawl/internal/crawler"
	"github.com/nao1215/kbcrawl/internal/model"
)

// DefaultTimeout bounds how long a single page may take to load.
const DefaultTimeout = 60 * time.Second

// Fetcher implements crawler.PageFetcher on top of a Backend.
type Fetcher struct {
	backend     Backend
	timeout     time.Duration
	screenshots bool
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-page wait bound. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithScreenshots enables or disables screenshot capture.
func WithScreenshots(enabled bool) Option {
	return func(f *Fetcher) {
		f.screenshots = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New returns a Fetcher that renders pages with backend.
func New(backend Backend, opts ...Option) *Fetcher {
	f := &Fetcher{
		backend:     backend,
		timeout:     DefaultTimeout,
		screenshots: true,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Timeout returns the per-page wait bound.
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}

// Fetch renders endpoint of site and extracts its content.
//
// When the page cannot be loaded it returns an empty result and a
// *crawler.NavigationError. When the backend cannot be opened it returns
// a *crawler.FatalBackendError, or ctx.Err() if ctx is already done.
func (f *Fetcher) Fetch(ctx context.Context, site model.Site, endpoint model.Endpoint) (page *model.PageResult, err error) {
	pageURL := site.URL(endpoint)

	session, err := f.backend.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &crawler.FatalBackendError{
			Endpoint: endpoint,
			Err:      fmt.Errorf("%s: %w", f.backend.Name(), err),
		}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			f.logger.Debug("failed to close session", "backend", f.backend.Name(), "error", cerr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			page = model.NewPageResult(endpoint)
			err = &crawler.NavigationError{URL: pageURL, Err: fmt.Errorf("renderer panic: %v", r)}
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := session.Navigate(fetchCtx, pageURL); err != nil {
		return model.NewPageResult(endpoint), &crawler.NavigationError{URL: pageURL, Err: err}
	}
	html, err := session.HTML(fetchCtx)
	if err != nil {
		return model.NewPageResult(endpoint), &crawler.NavigationError{URL: pageURL, Err: err}
	}

	page, err = Extract(html, site, endpoint)
	if err != nil {
		return model.NewPageResult(endpoint), &crawler.NavigationError{URL: pageURL, Err: err}
	}

	if f.screenshots {
		shot, err := session.Screenshot(fetchCtx)
		switch {
		case errors.Is(err, ErrScreenshotUnsupported):
		case err != nil:
			f.logger.Warn("screenshot failed", "url", pageURL, "error", err)
		default:
			page.Screenshot = shot
		}
	}

	f.logger.Debug("page fetched",
		"url", pageURL,
		"title", page.Title,
		"links", len(page.Links),
		"text_blocks", len(page.TextBlocks))
	return page, nil
}
