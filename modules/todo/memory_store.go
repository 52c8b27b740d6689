package todo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]Task
}

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[uuid.UUID]Task)}
}

func (s *MemoryStore) Create(_ context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = *task
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ownerID, taskID uuid.UUID) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return nil, ErrTaskNotFound
	}
	return &task, nil
}

func (s *MemoryStore) List(_ context.Context, ownerID uuid.UUID) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0)
	for _, task := range s.tasks {
		if task.OwnerID == ownerID {
			tasks = append(tasks, task)
		}
	}
	// Newest first, matching the SQL store's ordering.
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *MemoryStore) Update(_ context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[task.ID]
	if !ok || existing.OwnerID != task.OwnerID {
		return ErrTaskNotFound
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, ownerID, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok || task.OwnerID != ownerID {
		return ErrTaskNotFound
	}
	delete(s.tasks, taskID)
	return nil
}
