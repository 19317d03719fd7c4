package crawler

import (
	"fmt"

	"github.com/nao1215/kbcrawl/internal/model"
)

// Frontier is the ordered list of endpoints waiting to be processed.
// The discipline is fixed when the frontier is created.
type Frontier interface {
	// Push adds an endpoint. Duplicates are allowed; they are resolved
	// against the visited registry when popped.
	Push(e model.Endpoint)

	// Pop removes and returns the next endpoint. ok is false when the
	// frontier is empty.
	Pop() (e model.Endpoint, ok bool)

	// Len returns the number of pending entries.
	Len() int

	// BatchSize returns how many pops the engine performs before it looks
	// at the frontier again.
	BatchSize() int
}

// Queue is the breadth-first discipline. The engine drains it one level
// at a time: BatchSize snapshots the queue length so that every endpoint
// of level d is popped before any endpoint discovered from it.
type Queue struct {
	items []model.Endpoint
	head  int
}

// NewQueue returns an empty FIFO frontier.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends e to the tail.
func (q *Queue) Push(e model.Endpoint) {
	q.items = append(q.items, e)
}

// Pop removes the head.
func (q *Queue) Pop() (model.Endpoint, bool) {
	if q.head >= len(q.items) {
		return "", false
	}
	e := q.items[q.head]
	q.items[q.head] = ""
	q.head++

	// Reclaim the consumed prefix once it dominates the slice.
	if q.head > 64 && q.head*2 > len(q.items) {
		q.items = append([]model.Endpoint(nil), q.items[q.head:]...)
		q.head = 0
	}
	return e, true
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	return len(q.items) - q.head
}

// BatchSize returns the current level size.
func (q *Queue) BatchSize() int {
	return q.Len()
}

// Stack is the depth-first discipline: the last pushed endpoint is
// popped first, so siblings are explored in reverse discovery order.
type Stack struct {
	items []model.Endpoint
}

// NewStack returns an empty LIFO frontier.
func NewStack() *Stack {
	return &Stack{}
}

// Push adds e on top.
func (s *Stack) Push(e model.Endpoint) {
	s.items = append(s.items, e)
}

// Pop removes the top.
func (s *Stack) Pop() (model.Endpoint, bool) {
	n := len(s.items)
	if n == 0 {
		return "", false
	}
	e := s.items[n-1]
	s.items = s.items[:n-1]
	return e, true
}

// Len returns the number of pending entries.
func (s *Stack) Len() int {
	return len(s.items)
}

// BatchSize is always 1: every pop may change what comes next.
func (s *Stack) BatchSize() int {
	if len(s.items) == 0 {
		return 0
	}
	return 1
}

// NewFrontier returns the frontier matching algorithm.
func NewFrontier(algorithm model.Algorithm) (Frontier, error) {
	switch algorithm {
	case model.AlgorithmBFS:
		return NewQueue(), nil
	case model.AlgorithmDFS:
		return NewStack(), nil
	default:
		return nil, &InvalidInputError{Input: string(algorithm), Reason: fmt.Sprintf("algorithm must be one of %v", model.Algorithms)}
	}
}
