package auth

import "errors"

var (
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrEmailAlreadyExists = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidEmail       = errors.New("auth: invalid email address")
	ErrWeakPassword       = errors.New("auth: password does not meet requirements")
	ErrTokenInvalid       = errors.New("auth: invalid token")
)
