package httpserver

import "errors"

var (
	// ErrStart wraps failures to start the HTTP server.
	ErrStart = errors.New("httpserver: start failed")
	// ErrShutdown wraps failures during graceful shutdown.
	ErrShutdown = errors.New("httpserver: shutdown failed")
)
