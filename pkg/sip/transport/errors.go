package transport

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned by Recv when no datagram arrives within the
// timeout. It marks an expected loop event, not a socket failure.
var ErrTimeout = errors.New("receive timeout")

// Error is a transport operation failure. Everything except the initial
// Bind is recoverable: callers log and carry on.
type Error struct {
	Op   string // "bind", "send" or "recv"
	Addr string // peer or local address when known
	Err  error
}

func (e *Error) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("udp %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("udp %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
