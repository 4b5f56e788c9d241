package task

import (
	"context"
	"sort"
	"sync"
)

// Store persists tasks for cross-call visibility within a context. No
// transactional guarantees are required beyond a single writer per task id.
type Store interface {
	Get(ctx context.Context, taskID string) (*Task, error)
	Put(ctx context.Context, t *Task) error
}

// InMemoryStore is a volatile Store keeping tasks in a process local map. It
// is safe for concurrent access and best suited for tests or single-process
// servers. Tasks are cloned on the way in and out so callers never share
// internal state.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewInMemoryStore constructs an empty in-memory task store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tasks: make(map[string]*Task)}
}

// Get returns a clone of the task or ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, taskID string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// Put stores (or overwrites) a clone of t.
func (s *InMemoryStore) Put(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
	return nil
}

// ListByContext returns clones of all tasks sharing contextID, oldest first.
func (s *InMemoryStore) ListByContext(_ context.Context, contextID string) []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Task
	for _, t := range s.tasks {
		if t.ContextID == contextID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}
