package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/kbcrawl/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the crawl report in JSON format.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(report)
}

// WriteComparison outputs the comparison in JSON format.
func (w *JSONWriter) WriteComparison(cmp *Comparison) (int, error) {
	return w.writeJSON(cmp)
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a crawl report with the version of the tool and a
// few derived counters.
type JSONReport struct {
	// Version is the kbcrawl version that generated this report.
	Version string `json:"version"`

	// Report is the crawl report.
	Report *model.CrawlReport `json:"report"`

	// Summary holds derived counters.
	Summary Summary `json:"summary"`
}

// Summary holds counters derived from a crawl report.
type Summary struct {
	Pages         int   `json:"pages"`
	BeyondDepth   int   `json:"beyond_depth"`
	FailedFetches int   `json:"failed_fetches"`
	FailedStores  int   `json:"failed_stores"`
	DurationMS    int64 `json:"duration_ms"`
}

// NewSummary derives counters from report.
func NewSummary(report *model.CrawlReport) Summary {
	return Summary{
		Pages:         report.Len(),
		BeyondDepth:   report.BeyondDepth,
		FailedFetches: report.FailedFetches(),
		FailedStores:  report.FailedStores(),
		DurationMS:    report.Duration().Milliseconds(),
	}
}

// FullJSONWriter outputs reports wrapped with version and summary.
type FullJSONWriter struct {
	*JSONWriter

	// version is the kbcrawl version string.
	version string
}

// NewFullJSONWriter creates a writer for wrapped reports.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(&JSONReport{
		Version: w.version,
		Report:  report,
		Summary: NewSummary(report),
	})
}
