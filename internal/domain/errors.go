package domain

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Authentication errors are fatal: they are never retried automatically.
var (
	// ErrUnauthorized is returned when the server rejects a signature or token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUsernameTaken is returned when registration collides with an existing user.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrNotLoggedIn is returned when an operation needs a session and none exists.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Resolution and delivery errors.
var (
	// ErrPeerNotFound is returned when the directory has no key for a peer.
	ErrPeerNotFound = errors.New("peer not found")
	// ErrUndeliverable marks a queued frame that was dropped before transmission.
	ErrUndeliverable = errors.New("message undeliverable")
	// ErrQueueFull is returned when the outbound queue has no room.
	ErrQueueFull = errors.New("outbound queue full")
)

// Connection lifecycle errors.
var (
	// ErrClosed is returned for operations on a client after Disconnect.
	ErrClosed = errors.New("client closed")
	// ErrNotConnected is returned when no connection has been started.
	ErrNotConnected = errors.New("not connected")
	// ErrReconnectExhausted is returned when the configured retry ceiling is hit.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// OpError records which operation failed, for which peer and message.
type OpError struct {
	Op        string
	Peer      Username
	MessageID string
	Err       error
}

func (e *OpError) Error() string {
	msg := e.Op
	if e.Peer != "" {
		msg += fmt.Sprintf(" peer=%s", e.Peer)
	}
	if e.MessageID != "" {
		msg += fmt.Sprintf(" id=%s", e.MessageID)
	}
	return msg + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// TransientError marks an error as retryable regardless of its concrete type.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so IsTransient reports true. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsFatal reports whether err needs operator intervention rather than a retry.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrNotLoggedIn)
}

// IsTransient reports whether err is a network-level failure worth retrying.
func IsTransient(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
