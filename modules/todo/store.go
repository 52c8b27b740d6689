package todo

import (
	"context"

	"github.com/google/uuid"
)

// Store persists tasks. Every operation is scoped by owner: a task ID from
// another owner behaves exactly like a missing task, so the store never
// reveals whether a foreign task exists.
type Store interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, ownerID, taskID uuid.UUID) (*Task, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]Task, error)
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, ownerID, taskID uuid.UUID) error
}
