package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/kbcrawl/internal/crawler"
	"github.com/nao1215/kbcrawl/internal/model"
)

// Target is one site to crawl, parsed from a seed URL.
type Target struct {
	// URL is the seed URL as given by the user.
	URL string

	// Site is the origin of the seed URL.
	Site model.Site

	// Seed is the endpoint the crawl starts from.
	Seed model.Endpoint
}

// NewTarget parses a seed URL.
func NewTarget(rawURL string) (Target, error) {
	site, seed, err := crawler.ParseSeed(rawURL)
	if err != nil {
		return Target{}, err
	}
	return Target{URL: rawURL, Site: site, Seed: seed}, nil
}

// Run carries the state of one target through the pipeline.
type Run struct {
	// Target is the site being crawled.
	Target Target

	// Report is the crawl report, set by CrawlStep.
	Report *model.CrawlReport

	// RunID is the history id, set by PersistStep.
	RunID int64

	// Err is the first error returned by a step.
	Err error

	// Steps lists the steps that were executed, in order.
	Steps []string
}

// NewRun returns an empty run for target.
func NewRun(target Target) *Run {
	return &Run{Target: target, Steps: make([]string, 0)}
}

// Step defines the interface that all pipeline steps must implement.
type Step interface {
	// Do executes the step. Non-critical problems should be logged and
	// return nil.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run the remaining steps
// after a step fails. The first error is still recorded on the run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked before
// each step; a running step handles it itself.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	site := run.Target.Site.Origin()

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			if run.Err == nil {
				run.Err = ctx.Err()
			}
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"site", site,
		)

		run.Steps = append(run.Steps, step.Name())
		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"site", site,
				"error", err,
			)
			if run.Err == nil {
				run.Err = err
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"site", site,
		)
	}

	return run.Err
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
