// ABOUTME: Thread-safe TaskResult map keyed by task id
// ABOUTME: Single RWMutex, short critical sections; readers always see fully materialized results

package resultstore

import (
	"sync"

	"github.com/bastelbude1/tasker/pkg/types"
)

// Store is the single associative container written by every task executor
// and read by the condition evaluator and the summary writer.
type Store struct {
	mu      sync.RWMutex
	results map[int]*types.TaskResult
	order   []int
}

// New returns an empty Store.
func New() *Store {
	return &Store{results: make(map[int]*types.TaskResult)}
}

// Put records result under taskID. A second Put for the same id (loop
// iteration) overwrites the prior value, keeping only the last iteration's
// result.
func (s *Store) Put(taskID int, result *types.TaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, existed := s.results[taskID]; !existed {
		s.order = append(s.order, taskID)
	}
	s.results[taskID] = result
}

// Get returns the stored result for taskID, if any.
func (s *Store) Get(taskID int) (*types.TaskResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[taskID]
	return r, ok
}

// All returns a snapshot copy of every stored result.
func (s *Store) All() map[int]*types.TaskResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]*types.TaskResult, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// ExecutionPath returns task ids in the order their first result was
// recorded. The JSON summary's execution_path comes from the controller's
// dispatch path, not from this list.
func (s *Store) ExecutionPath() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}

var _ types.ResultStore = (*Store)(nil)
