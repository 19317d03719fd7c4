package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of sites crawled at once by default.
const DefaultConcurrency = 4

// BatchProcessor crawls several targets concurrently.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each target.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor. pipelineFactory is called
// once per target so that no state leaks between crawls.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls every target and returns the runs in input order.
// A failed crawl does not stop the others; its error is kept on its Run.
// Targets not started before ctx was cancelled have a nil Run.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []Target) ([]*Run, error) {
	runs := make([]*Run, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(run *Run, index int) {
		// Each index is written by exactly one goroutine.
		runs[index] = run
	})
	return runs, err
}

// ProcessBatchWithCallback crawls every target and calls callback as each
// crawl finishes. callback runs on the crawl's goroutine and must be safe
// for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []Target,
	callback func(run *Run, index int),
) error {
	bp.logger.Info("starting batch crawl",
		"total_sites", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("crawling site",
				"site", target.Site.Origin(),
				"index", i+1,
				"total", len(targets),
			)

			run := NewRun(target)
			if err := bp.pipelineFactory().Execute(ctx, run); err != nil {
				bp.logger.Warn("crawl failed",
					"site", target.Site.Origin(),
					"error", err,
				)
			}
			callback(run, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch crawl complete",
		"total_sites", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
