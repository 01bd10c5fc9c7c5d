package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRoom is returned when an operation needs an active room.
	ErrNoRoom = errors.New("no room selected")

	// ErrNotConnected is returned by clients that have no live session.
	ErrNotConnected = errors.New("not connected")
)

// AuthError reports bad credentials or an unreachable server during login.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("login failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// SendError reports a failed message or knock delivery.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return fmt.Sprintf("send failed: %v", e.Err) }
func (e *SendError) Unwrap() error { return e.Err }

// JoinError reports a room that could not be joined.
type JoinError struct {
	Room string
	Err  error
}

func (e *JoinError) Error() string { return fmt.Sprintf("join %s: %v", e.Room, e.Err) }
func (e *JoinError) Unwrap() error { return e.Err }

// TransportError reports a broken event stream.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// IsAuth reports whether err is, or wraps, an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
