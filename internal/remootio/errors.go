package remootio

import (
	"errors"
	"fmt"
)

// ErrAuthentication is returned when the device rejects the API keys or
// the client cannot verify the device's challenge.
var ErrAuthentication = errors.New("authentication failed")

// ErrClosed is reported by Err after Close was called.
var ErrClosed = errors.New("client closed")

// ConnectionEstablishmentError wraps a failure to open the WebSocket.
type ConnectionEstablishmentError struct {
	Host string
	Err  error
}

func (e *ConnectionEstablishmentError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Host, e.Err)
}

func (e *ConnectionEstablishmentError) Unwrap() error {
	return e.Err
}

// APIError is an ERROR frame sent by the device.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "device error: " + e.Message
}
