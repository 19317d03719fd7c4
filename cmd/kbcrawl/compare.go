package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/kbcrawl/internal/config"
	"github.com/nao1215/kbcrawl/internal/crawler"
	"github.com/nao1215/kbcrawl/internal/database"
	"github.com/nao1215/kbcrawl/internal/model"
	"github.com/nao1215/kbcrawl/internal/report"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [site-url]",
		Short: "Compare crawl results with historical data",
		Long: `Compare shows how a site changed between two recorded crawls.

It reports endpoints that appeared, endpoints that disappeared, and
endpoints whose title or link count changed. By default the latest two
crawls of the site are compared.

Examples:
  # Compare the latest two crawls of a site
  kbcrawl compare https://example.com

  # List the crawl history of a site
  kbcrawl compare --list https://example.com

  # Compare the latest crawl with a specific run
  kbcrawl compare --with-run-id 3 https://example.com

  # List every crawled site
  kbcrawl compare --list-sites`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List crawl history for the specified site")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List all crawled sites in the database")
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare the latest crawl with a specific run (use --list to see IDs)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"History database directory")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	listSites, err := flags.GetBool("list-sites")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var site string
	if !listSites {
		if len(args) == 0 {
			return errors.New("site URL is required (use --list-sites to see crawled sites)")
		}
		parsed, _, err := crawler.ParseSeed(args[0])
		if err != nil {
			return err
		}
		site = parsed.Origin()
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if listSites {
		return listCrawledSites(ctx, out, db)
	}

	listHistory, err := flags.GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listCrawlHistory(ctx, out, db, site)
	}

	withRunID, err := flags.GetInt64("with-run-id")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	cmp, err := compareCrawls(ctx, db, site, withRunID)
	if err != nil {
		return err
	}

	var writer report.Writer
	switch {
	case jsonOutput:
		writer = report.NewJSONWriter(out, report.WithPrettyPrint())
	case markdownOutput:
		writer = report.NewMarkdownWriter(out)
	default:
		writer = report.NewSimpleWriter(out)
	}
	_, err = writer.WriteComparison(cmp)
	return err
}

// listCrawledSites lists every site that has crawl records.
func listCrawledSites(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	sites, err := db.ListCrawledSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No crawled sites found in the database.")
		fmt.Fprintln(out, "\nUse 'kbcrawl crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'kbcrawl compare --list <url>' to see the crawl history of a site.")
	return nil
}

// listCrawlHistory lists every recorded crawl of site.
func listCrawlHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, site string) error {
	runs, err := db.GetCrawlHistoryWithMetadata(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", site)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", site, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-5s  %-6s  %-10s  %s\n", "ID", "Date", "Algo", "Depth", "Status", "Pages")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 64))
	for _, run := range runs {
		depth := "-"
		if run.MaxDepth > 0 {
			depth = fmt.Sprintf("%d", run.MaxDepth)
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-5s  %-6s  %-10s  %d\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Algorithm,
			depth,
			run.Status,
			run.PageCount,
		)
	}
	return nil
}

// compareCrawls compares the latest crawl of site with the previous one,
// or with run withRunID when it is set.
func compareCrawls(ctx context.Context, db *database.CrawlDB, site string, withRunID int64) (*report.Comparison, error) {
	history, err := db.GetCrawlHistory(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no crawl history found for %s", site)
	}

	newer := history[0]
	var older *model.CrawlReport

	if withRunID > 0 {
		older, err = db.GetCrawlReportByID(ctx, withRunID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run %d: %w", withRunID, err)
		}
		if older == nil {
			return nil, fmt.Errorf("run %d not found", withRunID)
		}
		if older.Site.Origin() != site {
			return nil, fmt.Errorf("run %d belongs to %s, not %s", withRunID, older.Site.Origin(), site)
		}
	} else {
		if len(history) < 2 {
			return nil, fmt.Errorf("at least 2 crawls are required for comparison (found %d)", len(history))
		}
		older = history[1]
	}

	return report.Compare(older, newer), nil
}
