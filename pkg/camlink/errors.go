package camlink

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotConnected is returned when writing to a link with no open connection.
	ErrNotConnected = errors.New("camlink: not connected")

	// ErrConnectionLost is reported when the connection drops while a reply is awaited.
	ErrConnectionLost = errors.New("camlink: connection lost")

	// ErrNoReply is returned when a command expecting a reply got none in time.
	ErrNoReply = errors.New("camlink: no reply")

	// ErrInvalidAddress is returned for an empty or malformed host:port.
	ErrInvalidAddress = errors.New("camlink: invalid address")

	// ErrInvalidTimeout is returned when a configured timeout is not positive.
	ErrInvalidTimeout = errors.New("camlink: timeouts must be positive")
)

// ConnectionError reports that a coprocessor could not be reached or did not
// complete its handshake.
type ConnectionError struct {
	Addr string
	Err  error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("camlink [%s]: connect failed: %v", e.Addr, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
