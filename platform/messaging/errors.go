package messaging

import "errors"

var (
	// ErrConnection means the bus could not be reached. Fatal at startup.
	ErrConnection = errors.New("broker connection failed")
	// ErrPublish wraps every failed hand-off to the bus.
	ErrPublish = errors.New("publish failed")

	ErrDecode          = errors.New("malformed event")
	ErrClosed          = errors.New("connection manager closed")
	ErrChannelClosed   = errors.New("channel closed")
	ErrUnknownExchange = errors.New("exchange not declared")
	ErrConsumerRunning = errors.New("consumer already running")
)
