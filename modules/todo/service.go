package todo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxTextLength = 1000

// Service implements the task operations. All of them take the owner ID
// explicitly; the router derives it from the verified bearer token.
type Service struct {
	store Store
}

// NewService creates the task service.
func NewService(store Store) *Service {
	if store == nil {
		panic("todo: Store is required")
	}
	return &Service{store: store}
}

// Create adds a new incomplete task for the owner.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, text string) (*Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if len(text) > maxTextLength {
		return nil, ErrTextTooLong
	}

	task := &Task{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Text:      text,
		Completed: false,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the owner's tasks, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]Task, error) {
	return s.store.List(ctx, ownerID)
}

// Toggle flips the completed flag and returns the updated task.
func (s *Service) Toggle(ctx context.Context, ownerID, taskID uuid.UUID) (*Task, error) {
	task, err := s.store.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	task.Completed = !task.Completed
	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateText replaces the task's text.
func (s *Service) UpdateText(ctx context.Context, ownerID, taskID uuid.UUID, text string) (*Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if len(text) > maxTextLength {
		return nil, ErrTextTooLong
	}

	task, err := s.store.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	task.Text = text
	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes the task permanently. There is no soft delete.
func (s *Service) Delete(ctx context.Context, ownerID, taskID uuid.UUID) error {
	return s.store.Delete(ctx, ownerID, taskID)
}
