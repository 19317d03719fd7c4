package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/kbcrawl/internal/crawler"
	"github.com/nao1215/kbcrawl/internal/model"
)

// EngineFactory builds a fresh engine for one target.
type EngineFactory func(target Target) *crawler.Engine

// CrawlStep explores the target site.
type CrawlStep struct {
	factory EngineFactory
	logger  *slog.Logger
}

// NewCrawlStep creates a crawl step.
func NewCrawlStep(factory EngineFactory, logger *slog.Logger) *CrawlStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlStep{factory: factory, logger: logger}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do runs the crawl and stores its report on run, even when the crawl
// failed or was cancelled.
func (s *CrawlStep) Do(ctx context.Context, run *Run) error {
	if s.factory == nil {
		return errors.New("crawl step has no engine factory")
	}

	engine := s.factory(run.Target)
	report, err := engine.Crawl(ctx, run.Target.Seed)
	run.Report = report
	if err != nil {
		return fmt.Errorf("crawl %s: %w", run.Target.Site.Origin(), err)
	}

	s.logger.Info("site crawled",
		"site", run.Target.Site.Origin(),
		"pages", report.Len(),
		"failed_fetches", report.FailedFetches(),
		"failed_stores", report.FailedStores(),
	)
	return nil
}

// ReportSaver stores crawl reports.
type ReportSaver interface {
	SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (int64, error)
}

// PersistStep records the crawl report in the history database.
type PersistStep struct {
	saver  ReportSaver
	logger *slog.Logger
}

// NewPersistStep creates a persist step.
func NewPersistStep(saver ReportSaver, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{saver: saver, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do saves run.Report. Runs without a report are skipped.
func (s *PersistStep) Do(ctx context.Context, run *Run) error {
	if run.Report == nil {
		s.logger.Debug("no report to persist", "site", run.Target.Site.Origin())
		return nil
	}

	id, err := s.saver.SaveCrawlReport(ctx, run.Report)
	if err != nil {
		return fmt.Errorf("save crawl history: %w", err)
	}
	run.RunID = id

	s.logger.Debug("crawl saved", "site", run.Target.Site.Origin(), "run_id", id)
	return nil
}
