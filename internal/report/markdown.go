package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/kbcrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the crawl report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeAlert(md, report)
	w.writeDepthChart(md, report)
	w.writePages(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the crawl parameters table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	depth := "unbounded"
	if report.MaxDepth > 0 {
		depth = strconv.Itoa(report.MaxDepth)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + report.Site.Origin() + "`"},
			{"Seed", "`" + report.Seed.String() + "`"},
			{"Algorithm", report.Algorithm.Description()},
			{"Max Depth", depth},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(1e6).String()},
			{"Pages", strconv.Itoa(report.Len())},
			{"Beyond Depth", strconv.Itoa(report.BeyondDepth)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

// writeAlert summarizes the outcome in a GitHub alert.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch {
	case report.Status == model.CrawlStatusFailed:
		md.Cautionf("The crawl was aborted: %s", report.Error)
	case report.Status == model.CrawlStatusCancelled:
		md.Warningf("The crawl was cancelled after %d page(s).", report.Len())
	case report.FailedFetches() > 0 || report.FailedStores() > 0:
		md.Warningf("%d page(s) could not be fetched and %d page(s) could not be stored.",
			report.FailedFetches(), report.FailedStores())
	case report.Truncated:
		md.Note("The page limit was reached before the site was fully explored.")
	default:
		md.Tip("Every reachable page was processed.")
	}
	md.PlainText("")
}

// writeDepthChart writes a mermaid pie chart of pages per depth.
func (w *MarkdownWriter) writeDepthChart(md *markdown.Markdown, report *model.CrawlReport) {
	if report.Len() == 0 {
		return
	}

	counts := make(map[int]uint64)
	maxDepth := 0
	for _, p := range report.Pages {
		counts[p.Depth]++
		maxDepth = max(maxDepth, p.Depth)
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages per Depth"),
		piechart.WithShowData(true),
	)
	for d := 0; d <= maxDepth; d++ {
		if counts[d] > 0 {
			chart.LabelAndIntValue(fmt.Sprintf("Depth %d", d), counts[d])
		}
	}

	md.H2("Depth Distribution")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writePages writes one table row per processed endpoint.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")

	if report.Len() == 0 {
		md.PlainText("No pages processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		title := p.Title
		if title == "" {
			title = "-"
		}
		content := p.ContentPath
		if content == "" {
			content = "-"
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			"`" + p.Endpoint.String() + "`",
			strconv.Itoa(p.Depth),
			truncateString(title, 50),
			strconv.Itoa(p.LinkCount),
			truncateString(content, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "Endpoint", "Depth", "Title", "Links", "Content"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures lists recovered errors.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	if report.FailedFetches() == 0 && report.FailedStores() == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")
	for _, p := range report.Pages {
		if p.FetchError != "" {
			md.Details(p.Endpoint.String()+" (fetch)", p.FetchError)
		}
		if p.StoreError != "" {
			md.Details(p.Endpoint.String()+" (store)", p.StoreError)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [kbcrawl](https://github.com/nao1215/kbcrawl)*")
}

// WriteComparison outputs the comparison in Markdown format.
func (w *MarkdownWriter) WriteComparison(cmp *Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Comparison")
	md.PlainText("")

	rows := [][]string{{"Site", "`" + cmp.Site + "`"}}
	if cmp.Older != nil {
		rows = append(rows, []string{"Older", fmt.Sprintf("%s (%d pages)", cmp.Older.StartedAt.Format("2006-01-02 15:04:05"), cmp.Older.Len())})
	}
	if cmp.Newer != nil {
		rows = append(rows, []string{"Newer", fmt.Sprintf("%s (%d pages)", cmp.Newer.StartedAt.Format("2006-01-02 15:04:05"), cmp.Newer.Len())})
	}
	rows = append(rows,
		[]string{"Added", strconv.Itoa(len(cmp.Added))},
		[]string{"Removed", strconv.Itoa(len(cmp.Removed))},
		[]string{"Changed", strconv.Itoa(len(cmp.Changed))},
		[]string{"Unchanged", strconv.Itoa(cmp.Unchanged)},
	)
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	if !cmp.HasChanges() {
		md.Tip("No endpoint changed between the two crawls.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	w.writeEndpointList(md, "Added", cmp.Added)
	w.writeEndpointList(md, "Removed", cmp.Removed)
	w.writeEndpointList(md, "Changed", cmp.Changed)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeEndpointList(md *markdown.Markdown, title string, endpoints []model.Endpoint) {
	if len(endpoints) == 0 {
		return
	}
	items := make([]string, len(endpoints))
	for i, e := range endpoints {
		items[i] = "`" + e.String() + "`"
	}
	md.H2(title)
	md.PlainText("")
	md.BulletList(items...)
	md.PlainText("")
}
