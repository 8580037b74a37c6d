package realtime

import "errors"

var (
	// ErrUnauthenticated is returned by the gate when the handshake carries no credential.
	ErrUnauthenticated = errors.New("realtime: no credential presented")

	// ErrInvalidCredential is returned by the gate for a credential that fails verification.
	ErrInvalidCredential = errors.New("realtime: invalid credential")

	// ErrSendQueueFull is returned by a connection whose outbound queue is full.
	// The connection closes itself when this happens.
	ErrSendQueueFull = errors.New("realtime: send queue full")

	// ErrConnectionClosed is returned when sending to a connection that has shut down.
	ErrConnectionClosed = errors.New("realtime: connection closed")
)
