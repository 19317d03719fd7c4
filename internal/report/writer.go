package report

import (
	"io"

	"github.com/nao1215/kbcrawl/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the crawl report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteComparison outputs the difference between two crawls.
	WriteComparison(cmp *Comparison) (int, error)
}

// MultiWriter writes to multiple Writers, for example the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteComparison outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteComparison(cmp *Comparison) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteComparison(cmp)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText returns a short human readable status.
func statusText(report *model.CrawlReport) string {
	switch report.Status {
	case model.CrawlStatusCompleted:
		if report.Truncated {
			return "Complete (page limit reached)"
		}
		return "Complete"
	case model.CrawlStatusCancelled:
		return "Cancelled (partial results)"
	case model.CrawlStatusFailed:
		return "Failed - " + report.Error
	default:
		return "Running"
	}
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
