package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/kbcrawl/internal/config"
	"github.com/nao1215/kbcrawl/internal/crawler"
	"github.com/nao1215/kbcrawl/internal/database"
	"github.com/nao1215/kbcrawl/internal/fetcher"
	kblog "github.com/nao1215/kbcrawl/internal/log"
	"github.com/nao1215/kbcrawl/internal/model"
	"github.com/nao1215/kbcrawl/internal/pipeline"
	"github.com/nao1215/kbcrawl/internal/report"
	"github.com/nao1215/kbcrawl/internal/store"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url> [url...]",
		Short: "Crawl one or more websites into the knowledge base",
		Long: `Crawl explores a website starting at the given URL.

Only links on the seed's origin (same scheme, host, and port) are followed.
Query strings and fragments are dropped, so /a?x=1 and /a#top are the same
endpoint as /a. Every endpoint is processed at most once.

For each processed page kbcrawl writes:
  <output>/<site>/<name>.png   screenshot (browser renderer only)
  <output>/<site>/<name>.md    metadata JSON + visible text

where <site> is the host with non-alphanumeric characters removed and
<name> is "home" for "/" and the endpoint with "/" replaced by "_" otherwise.

Examples:
  # Breadth-first crawl of a whole site
  kbcrawl crawl https://example.com

  # Depth-first crawl of the /docs subtree, at most two path segments deep
  kbcrawl crawl --algo dfs --depth 2 https://example.com/docs

  # Fetch raw HTML without a browser (no screenshots)
  kbcrawl crawl --renderer static https://example.com

  # Crawl through a local SOCKS5 proxy
  kbcrawl crawl --proxy socks5://127.0.0.1:9050 https://example.com

  # Crawl three sites, two at a time, and save a Markdown report
  kbcrawl crawl -b 2 --markdown --report-file report.md https://a.example https://b.example https://c.example`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl behavior
	cmd.Flags().StringP("algo", "a", string(config.DefaultAlgorithm),
		"Exploration order: bfs or dfs")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum number of path segments to crawl (0 = unbounded)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Stop after this many pages per site (0 = unlimited)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Navigation timeout for each page")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites crawled concurrently")

	// Rendering
	cmd.Flags().StringP("renderer", "r", config.DefaultRenderer,
		"Page renderer: browser (headless Chromium) or static (plain HTTP)")
	cmd.Flags().String("browser-bin", "",
		"Chromium binary to use (default: found or downloaded automatically)")
	cmd.Flags().Bool("stealth", false,
		"Mask the headless browser fingerprint")
	cmd.Flags().Bool("no-sandbox", false,
		"Disable the Chromium sandbox (needed as root in containers)")
	cmd.Flags().String("user-agent", "",
		"User-Agent header to send")
	cmd.Flags().String("proxy", "",
		"Route requests through a proxy (socks5://host:port or http://host:port)")

	// Storage
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir(),
		"Knowledge base directory")
	cmd.Flags().Bool("no-history", false,
		"Do not record the crawl in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"History database directory")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .kbcrawl in current or home directory, then the XDG config directory)")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "f", "",
		"Write the report to a file (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := kblog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Algorithm, err = flags.GetString("algo"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Renderer, err = flags.GetString("renderer"); err != nil {
		return nil, err
	}
	if cfg.BrowserBin, err = flags.GetString("browser-bin"); err != nil {
		return nil, err
	}
	if cfg.Stealth, err = flags.GetBool("stealth"); err != nil {
		return nil, err
	}
	if cfg.NoSandbox, err = flags.GetBool("no-sandbox"); err != nil {
		return nil, err
	}
	userAgent, err := flags.GetString("user-agent")
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		cfg.UserAgent = userAgent
	}
	if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	for flag, setting := range map[string]string{
		"algo":       config.SettingAlgorithm,
		"depth":      config.SettingDepth,
		"timeout":    config.SettingTimeout,
		"user-agent": config.SettingUserAgent,
	} {
		if flags.Changed(flag) {
			cfg.MarkExplicit(setting)
		}
	}

	// An explicit --config must exist; the implicit lookup may find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		if cfg.SiteConfigs, err = config.LoadConfigFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = args
	return cfg, nil
}

// runCrawl crawls every target and writes one report per site.
// Recovered page failures and history write failures are reported but do
// not fail the command. Invalid input, fatal backend errors, and
// cancellation do.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	targets := make([]pipeline.Target, 0, len(cfg.Targets))
	for _, raw := range cfg.Targets {
		target, err := pipeline.NewTarget(raw)
		if err != nil {
			return err
		}
		targets = append(targets, target)
	}

	if cfg.Proxy != "" {
		if err := fetcher.CheckProxy(ctx, cfg.Proxy); err != nil {
			return fmt.Errorf("proxy check failed: %w", err)
		}
		logger.Debug("proxy reachable", "proxy", cfg.Proxy)
	}
	// The per-page timeout is applied by the fetcher through the context.
	httpClient, err := fetcher.NewHTTPClient(cfg.Proxy, 0)
	if err != nil {
		return err
	}

	var db *database.CrawlDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	writer, closeReport, err := newReportWriter(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeReport()

	artifacts := store.NewFileStore(cfg.OutputDir)
	progressOut := &syncWriter{w: stderr}
	multiSite := len(targets) > 1

	newPipeline := func() *pipeline.Pipeline {
		p := pipeline.New(pipeline.WithLogger(logger))
		p.AddStep(pipeline.NewCrawlStep(func(target pipeline.Target) *crawler.Engine {
			return newEngine(cfg, target, httpClient, artifacts, logger, progressPrinter(progressOut, target, multiSite))
		}, logger))
		if db != nil {
			p.AddStep(pipeline.NewPersistStep(db, logger))
		}
		return p
	}

	bp := pipeline.NewBatchProcessor(newPipeline,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	var (
		mu     sync.Mutex
		failed []error
	)
	batchErr := bp.ProcessBatchWithCallback(ctx, targets, func(run *pipeline.Run, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if run.Report != nil && run.Report.Status != model.CrawlStatusFailed {
			if _, err := writer.Write(run.Report); err != nil {
				logger.Error("report failed", "site", run.Target.Site.Origin(), "error", err)
			}
		}
		if err := classifyRunError(run); err != nil {
			failed = append(failed, err)
		} else if run.Err != nil {
			logger.Warn("crawl history not saved", "site", run.Target.Site.Origin(), "error", run.Err)
		}
	})

	if multiSite {
		fmt.Fprintf(stderr, "\nCrawled %d sites in %s\n", len(targets), time.Since(startTime).Round(time.Millisecond))
	}

	if batchErr != nil {
		failed = append(failed, batchErr)
	}
	return errors.Join(failed...)
}

// classifyRunError returns the error of run when it must fail the command.
func classifyRunError(run *pipeline.Run) error {
	if run.Err == nil {
		return nil
	}
	if crawler.IsFatal(run.Err) || crawler.IsInvalidInput(run.Err) ||
		errors.Is(run.Err, context.Canceled) || errors.Is(run.Err, context.DeadlineExceeded) {
		return run.Err
	}
	return nil
}

// newEngine builds the crawl engine of one target, applying its site settings.
func newEngine(cfg *config.Config, target pipeline.Target, httpClient *http.Client, artifacts crawler.ArtifactStore, logger *slog.Logger, progress crawler.ProgressFunc) *crawler.Engine {
	settings := cfg.SiteSettings(target.Site.Host)

	// An unknown algorithm is passed through so the engine rejects it as
	// invalid input.
	algorithm, err := model.ParseAlgorithm(settings.Algorithm)
	if err != nil {
		algorithm = model.Algorithm(settings.Algorithm)
	}

	f := fetcher.New(newBackend(cfg, settings, httpClient),
		fetcher.WithTimeout(settings.Timeout),
		fetcher.WithLogger(logger),
	)

	return crawler.NewEngine(target.Site, f,
		crawler.WithAlgorithm(algorithm),
		crawler.WithMaxDepth(settings.MaxDepth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithStore(artifacts),
		crawler.WithLinkFilter(crawler.NewLinkFilter(settings.IgnorePatterns, settings.FollowPatterns)),
		crawler.WithProgress(progress),
		crawler.WithLogger(logger),
	)
}

// newBackend selects the page renderer.
func newBackend(cfg *config.Config, settings config.SiteSettings, httpClient *http.Client) fetcher.Backend {
	if cfg.Renderer == config.RendererStatic {
		return fetcher.NewHTTPBackend(
			fetcher.WithHTTPClient(httpClient),
			fetcher.WithUserAgent(settings.UserAgent),
			fetcher.WithHeaders(settings.Headers),
			fetcher.WithCookie(settings.Cookie),
			fetcher.WithMaxBodySize(cfg.MaxBodySize),
		)
	}

	headers := maps.Clone(settings.Headers)
	if settings.Cookie != "" {
		if headers == nil {
			headers = make(map[string]string, 1)
		}
		headers["Cookie"] = settings.Cookie
	}

	opts := []fetcher.RodOption{
		fetcher.WithBrowserBin(cfg.BrowserBin),
		fetcher.WithNoSandbox(cfg.NoSandbox),
		fetcher.WithStealth(cfg.Stealth),
		fetcher.WithFullPage(cfg.FullPage),
		fetcher.WithViewport(cfg.ViewportWidth, cfg.ViewportHeight),
		fetcher.WithBrowserHeaders(headers),
	}
	if cfg.Proxy != "" {
		opts = append(opts, fetcher.WithBrowserProxy(cfg.Proxy))
	}
	// Chromium keeps its own user agent unless one was configured.
	if settings.UserAgent != config.DefaultUserAgent {
		opts = append(opts, fetcher.WithBrowserUserAgent(settings.UserAgent))
	}
	return fetcher.NewRodBackend(opts...)
}

// progressPrinter prints one indented line per processed endpoint.
func progressPrinter(w io.Writer, target pipeline.Target, withSite bool) crawler.ProgressFunc {
	return func(record model.PageRecord) {
		prefix := ""
		if withSite {
			prefix = "[" + target.Site.Host + "] "
		}
		marker := "->"
		if record.FetchError != "" {
			marker = "x>"
		}
		fmt.Fprintf(w, "%s%s%s Processing %s\n", prefix, strings.Repeat("  ", record.Depth), marker, record.Endpoint)
	}
}

// syncWriter serializes writes from concurrent crawls.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// newReportWriter returns the report writer selected by cfg and a close
// function for the report file, if any. When the report goes to a file,
// the plain text summary is still printed to stdout.
func newReportWriter(cfg *config.Config, stdout io.Writer) (report.Writer, func(), error) {
	output := stdout
	closeFn := func() {}

	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, nil, fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create report file: %w", err)
		}
		output = f
		closeFn = func() { _ = f.Close() } //nolint:errcheck // best effort on exit
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	if cfg.ReportFile != "" && (cfg.JSONReport || cfg.MarkdownReport) {
		writer = report.NewMultiWriter(writer, report.NewSimpleWriter(stdout))
	}
	return writer, closeFn, nil
}
