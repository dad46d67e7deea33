package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/contractguard/contractguard/core"
)

// InMemoryStore is a map-backed core.TaskStore. Tasks are deep-copied on the
// way in and out so callers can never mutate stored state directly.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*core.Task
	clock func() time.Time
}

// InMemoryOptions configures an InMemoryStore.
type InMemoryOptions struct {
	// Clock supplies the current time for Updated stamps. Overridable in
	// tests.
	Clock func() time.Time
}

// NewInMemoryStore creates an empty in-memory task store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{
		Clock: func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		tasks: make(map[string]*core.Task),
		clock: opts.Clock,
	}
}

// Create implements core.TaskStore.
func (s *InMemoryStore) Create(_ context.Context, task *core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

// Get implements core.TaskStore.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, core.ErrNotFound)
	}
	return task.Clone(), nil
}

// List implements core.TaskStore. Results are ordered newest first.
func (s *InMemoryStore) List(_ context.Context, filter core.TaskFilter) ([]*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Task
	for _, task := range s.tasks {
		if filter.State != "" && task.State != filter.State {
			continue
		}
		if filter.SessionID != "" && task.SessionID != filter.SessionID {
			continue
		}
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Update implements core.TaskStore. On success the passed task's Revision is
// advanced to expected+1 so the caller holds the current revision.
func (s *InMemoryStore) Update(_ context.Context, task *core.Task, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", task.ID, core.ErrNotFound)
	}
	if current.Revision != expected {
		return fmt.Errorf("task %s at revision %d, expected %d: %w",
			task.ID, current.Revision, expected, core.ErrConflict)
	}

	task.Revision = expected + 1
	task.Updated = s.clock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

// Delete implements core.TaskStore.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, core.ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}
