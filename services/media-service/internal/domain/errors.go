package domain

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("resource not found")
	ErrPayloadTooLarge       = errors.New("payload too large")
	ErrUnsupportedMediaType  = errors.New("unsupported media type")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
