package todo

import "errors"

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrEmptyText    = errors.New("task text is empty")
	ErrTextTooLong  = errors.New("task text is too long")
)
