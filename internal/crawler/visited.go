package crawler

import (
	"sync"

	"github.com/nao1215/kbcrawl/internal/model"
)

// VisitedRegistry is the set of endpoints already processed in a crawl.
// It only grows: there is no way to forget an endpoint.
type VisitedRegistry struct {
	mu   sync.Mutex
	seen map[model.Endpoint]struct{}
}

// NewVisitedRegistry returns an empty registry.
func NewVisitedRegistry() *VisitedRegistry {
	return &VisitedRegistry{seen: make(map[model.Endpoint]struct{})}
}

// Has reports whether e was already visited.
func (v *VisitedRegistry) Has(e model.Endpoint) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.seen[e]
	return ok
}

// MarkVisited records e as visited.
func (v *VisitedRegistry) MarkVisited(e model.Endpoint) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seen[e] = struct{}{}
}

// TryVisit marks e as visited and reports whether it was new.
// The check and the mark happen atomically.
func (v *VisitedRegistry) TryVisit(e model.Endpoint) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[e]; ok {
		return false
	}
	v.seen[e] = struct{}{}
	return true
}

// Len returns the number of visited endpoints.
func (v *VisitedRegistry) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}
