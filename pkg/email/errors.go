package email

import "errors"

var (
	ErrInvalidConfig     = errors.New("email: invalid configuration")
	ErrInvalidParams     = errors.New("email: invalid send parameters")
	ErrFailedToSendEmail = errors.New("email: failed to send")
)
