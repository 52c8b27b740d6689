package todo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/taskgate/pkg/pg"
)

// PGStore persists tasks in PostgreSQL. Owner scoping lives in every WHERE
// clause; there is no query without an owner_id predicate.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PostgreSQL-backed task store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, task *Task) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO todos (id, user_id, text, completed, created_at) VALUES ($1, $2, $3, $4, $5)`,
		task.ID, task.OwnerID, task.Text, task.Completed, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, ownerID, taskID uuid.UUID) (*Task, error) {
	var task Task
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, text, completed, created_at FROM todos WHERE id = $1 AND user_id = $2`,
		taskID, ownerID).
		Scan(&task.ID, &task.OwnerID, &task.Text, &task.Completed, &task.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return &task, nil
}

func (s *PGStore) List(ctx context.Context, ownerID uuid.UUID) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, text, completed, created_at FROM todos WHERE user_id = $1 ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Task, error) {
		var task Task
		err := row.Scan(&task.ID, &task.OwnerID, &task.Text, &task.Completed, &task.CreatedAt)
		return task, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tasks: %w", err)
	}
	return tasks, nil
}

func (s *PGStore) Update(ctx context.Context, task *Task) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE todos SET text = $3, completed = $4 WHERE id = $1 AND user_id = $2`,
		task.ID, task.OwnerID, task.Text, task.Completed,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, ownerID, taskID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2`, taskID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}
