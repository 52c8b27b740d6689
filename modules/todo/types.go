package todo

import (
	"time"

	"github.com/google/uuid"
)

// Task is a single to-do item. Every task belongs to exactly one owner and
// is invisible to everyone else.
type Task struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"-"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}
