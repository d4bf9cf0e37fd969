package domain

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("resource not found")
	ErrUnsupportedEvent      = errors.New("unsupported event")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
