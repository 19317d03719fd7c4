package model

import (
	"fmt"
	"strings"
)

// Algorithm selects the exploration order of a crawl.
type Algorithm string

const (
	// AlgorithmBFS explores the site level by level: every endpoint at
	// depth d is processed before any endpoint discovered at depth d+1.
	AlgorithmBFS Algorithm = "bfs"

	// AlgorithmDFS explores the site with a stack: the last link pushed is
	// the first one processed.
	AlgorithmDFS Algorithm = "dfs"
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{AlgorithmBFS, AlgorithmDFS}

// ParseAlgorithm converts a user supplied selector ("bfs" or "dfs",
// case-insensitive) into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case AlgorithmBFS:
		return AlgorithmBFS, nil
	case AlgorithmDFS:
		return AlgorithmDFS, nil
	default:
		return "", fmt.Errorf("unknown algorithm %q: must be one of bfs, dfs", s)
	}
}

// String returns the selector form of the algorithm.
func (a Algorithm) String() string {
	return string(a)
}

// Description returns a human-readable name of the algorithm.
func (a Algorithm) Description() string {
	switch a {
	case AlgorithmBFS:
		return "breadth-first"
	case AlgorithmDFS:
		return "depth-first"
	default:
		return "unknown"
	}
}
