// Package report renders crawl reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: an indented page tree for terminal display
//   - JSONWriter: structured JSON output for tool integration
//   - MarkdownWriter: tables and alerts for documentation
//
// Every writer also renders a Comparison of two crawls of the same site.
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
