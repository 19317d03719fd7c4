package crawler

import "github.com/nao1215/kbcrawl/internal/model"

// Depth returns the depth of an endpoint: the number of non-empty path
// segments. The root endpoint has depth 0. It depends on the path only,
// never on how the endpoint was discovered.
func Depth(e model.Endpoint) int {
	return len(e.Segments())
}

// DepthPolicy bounds how deep a crawl explores.
type DepthPolicy struct {
	// MaxDepth is the deepest endpoint that is fetched. 0 means unbounded.
	MaxDepth int
}

// NewDepthPolicy returns a policy with the given bound.
// Negative bounds are treated as unbounded.
func NewDepthPolicy(maxDepth int) DepthPolicy {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return DepthPolicy{MaxDepth: maxDepth}
}

// Unbounded reports whether the policy has no depth limit.
func (p DepthPolicy) Unbounded() bool {
	return p.MaxDepth == 0
}

// WithinBound reports whether e may be fetched and expanded.
func (p DepthPolicy) WithinBound(e model.Endpoint) bool {
	return p.Unbounded() || Depth(e) <= p.MaxDepth
}
