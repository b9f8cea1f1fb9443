package coap

import "errors"

// Domain-specific errors for the CoAP server.
var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("coap: server already started")

	// ErrListenFailed is returned when the UDP socket cannot be bound.
	ErrListenFailed = errors.New("coap: listen failed")

	// ErrNoHandler is returned when the server has no operation handler.
	ErrNoHandler = errors.New("coap: no handler configured")
)
