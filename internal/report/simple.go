package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/kbcrawl/internal/model"
)

// SimpleWriter outputs a human-readable page tree: one line per
// processed endpoint, indented by depth, in processing order.
type SimpleWriter struct {
	baseWriter

	// verbose adds artifact paths and titles under every page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writePages(&sb, report)
	w.writeFooter(&sb, report)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the crawl parameters and outcome.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                           CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	depth := "unbounded"
	if report.MaxDepth > 0 {
		depth = fmt.Sprintf("%d", report.MaxDepth)
	}

	fmt.Fprintf(sb, "Site:           %s\n", report.Site.Origin())
	fmt.Fprintf(sb, "Seed:           %s\n", report.Seed)
	fmt.Fprintf(sb, "Algorithm:      %s\n", report.Algorithm.Description())
	fmt.Fprintf(sb, "Max Depth:      %s\n", depth)
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:       %s\n", report.Duration().Round(1e6))
	fmt.Fprintf(sb, "Pages:          %d\n", report.Len())
	if report.BeyondDepth > 0 {
		fmt.Fprintf(sb, "Beyond Depth:   %d\n", report.BeyondDepth)
	}
	fmt.Fprintf(sb, "Status:         %s\n", statusText(report))
	sb.WriteString("\n")
}

// writePages writes the page tree.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if report.Len() == 0 {
		sb.WriteString("  No pages processed\n\n")
		return
	}

	for _, page := range report.Pages {
		indent := strings.Repeat("  ", page.Depth+1)
		marker := "[+]"
		switch {
		case page.FetchError != "":
			marker = "[x]"
		case page.StoreError != "":
			marker = "[!]"
		}
		fmt.Fprintf(sb, "%s%s %s (%d links)\n", indent, marker, page.Endpoint, page.LinkCount)

		detail := indent + "      "
		if page.FetchError != "" {
			fmt.Fprintf(sb, "%sfetch error: %s\n", detail, page.FetchError)
		}
		if page.StoreError != "" {
			fmt.Fprintf(sb, "%sstore error: %s\n", detail, page.StoreError)
		}
		if w.verbose {
			if page.Title != "" {
				fmt.Fprintf(sb, "%stitle: %s\n", detail, page.Title)
			}
			if page.ContentPath != "" {
				fmt.Fprintf(sb, "%scontent: %s\n", detail, page.ContentPath)
			}
			if page.ScreenshotPath != "" {
				fmt.Fprintf(sb, "%sscreenshot: %s\n", detail, page.ScreenshotPath)
			}
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the failure counters.
func (w *SimpleWriter) writeFooter(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "%d pages, %d fetch failures, %d storage failures\n",
		report.Len(), report.FailedFetches(), report.FailedStores())
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// WriteComparison outputs the comparison in human-readable format.
func (w *SimpleWriter) WriteComparison(cmp *Comparison) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         CRAWL COMPARISON\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Site:           %s\n", cmp.Site)
	if cmp.Older != nil {
		fmt.Fprintf(&sb, "Older:          %s (%d pages)\n", cmp.Older.StartedAt.Format("2006-01-02 15:04:05"), cmp.Older.Len())
	}
	if cmp.Newer != nil {
		fmt.Fprintf(&sb, "Newer:          %s (%d pages)\n", cmp.Newer.StartedAt.Format("2006-01-02 15:04:05"), cmp.Newer.Len())
	}
	sb.WriteString("\n")

	if !cmp.HasChanges() {
		fmt.Fprintf(&sb, "No changes (%d endpoints unchanged)\n", cmp.Unchanged)
		return w.output.Write([]byte(sb.String()))
	}

	writeEndpoints(&sb, "+", cmp.Added)
	writeEndpoints(&sb, "-", cmp.Removed)
	writeEndpoints(&sb, "~", cmp.Changed)
	fmt.Fprintf(&sb, "\n%d added, %d removed, %d changed, %d unchanged\n",
		len(cmp.Added), len(cmp.Removed), len(cmp.Changed), cmp.Unchanged)

	return w.output.Write([]byte(sb.String()))
}

func writeEndpoints(sb *strings.Builder, marker string, endpoints []model.Endpoint) {
	for _, e := range endpoints {
		fmt.Fprintf(sb, "  %s %s\n", marker, e)
	}
}
