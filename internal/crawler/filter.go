package crawler

import (
	"path/filepath"
	"strings"

	"github.com/nao1215/kbcrawl/internal/model"
)

// LinkFilter decides which discovered endpoints are worth enqueueing.
// Ignore patterns win over follow patterns. With no follow patterns every
// endpoint that is not ignored passes.
//
// Supported patterns:
//   - "/admin/*" matches /admin and everything below it
//   - "*.pdf" matches any endpoint ending in .pdf
//   - any filepath.Match glob, matched against the whole endpoint
type LinkFilter struct {
	ignore []string
	follow []string
}

// NewLinkFilter returns a filter with the given patterns.
// Blank patterns are skipped.
func NewLinkFilter(ignore, follow []string) *LinkFilter {
	return &LinkFilter{
		ignore: compactPatterns(ignore),
		follow: compactPatterns(follow),
	}
}

// Empty reports whether the filter lets every endpoint through.
func (f *LinkFilter) Empty() bool {
	return f == nil || (len(f.ignore) == 0 && len(f.follow) == 0)
}

// Allow reports whether e should be enqueued.
// The seed endpoint never goes through the filter.
func (f *LinkFilter) Allow(e model.Endpoint) bool {
	if f.Empty() {
		return true
	}
	path := e.String()

	for _, pattern := range f.ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}
	if len(f.follow) == 0 {
		return true
	}
	for _, pattern := range f.follow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

func compactPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// matchPattern reports whether path matches a glob-style pattern.
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.ContainsAny(ext, "*?[") {
		return strings.HasSuffix(path, "."+ext)
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Bare globs such as "draft-*" apply to the last segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
