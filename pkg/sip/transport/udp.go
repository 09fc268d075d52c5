// Package transport owns the single connectionless UDP socket a SIP
// endpoint signals over. Receiving is a blocking call with a timeout so
// the endpoint loop stays single threaded; there are no retransmission
// timers here, one datagram out per send and bounded waits on receive.
package transport

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

// maxDatagramSize bounds a received SIP datagram, matching the codec's
// message cap.
const maxDatagramSize = 64 * 1024

// Conn is a bound UDP socket.
type Conn struct {
	conn   *net.UDPConn
	local  *net.UDPAddr
	closed atomic.Bool
}

// Bind opens a UDP socket on host:port. Port 0 picks an ephemeral port,
// readable afterwards via LocalPort. An empty host binds all interfaces.
// Best-effort socket options (SO_REUSEADDR, DSCP CS3 for signaling) are
// applied where the platform supports them.
func Bind(host string, port int) (*Conn, error) {
	lc := net.ListenConfig{Control: setSocketOptions}
	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, &Error{Op: "bind", Addr: net.JoinHostPort(host, strconv.Itoa(port)), Err: err}
	}
	conn := pc.(*net.UDPConn)
	return &Conn{
		conn:  conn,
		local: conn.LocalAddr().(*net.UDPAddr),
	}, nil
}

// LocalAddr returns the bound address.
func (c *Conn) LocalAddr() *net.UDPAddr {
	return c.local
}

// LocalPort returns the bound port.
func (c *Conn) LocalPort() int {
	return c.local.Port
}

// Send transmits one datagram to addr. Exactly one send, no retries.
func (c *Conn) Send(data []byte, addr *net.UDPAddr) error {
	if c.closed.Load() {
		return &Error{Op: "send", Addr: addr.String(), Err: net.ErrClosed}
	}
	if _, err := c.conn.WriteToUDP(data, addr); err != nil {
		return &Error{Op: "send", Addr: addr.String(), Err: err}
	}
	return nil
}

// Recv blocks until a datagram arrives or the timeout elapses. On timeout
// it returns ErrTimeout; a non-positive timeout blocks indefinitely. The
// returned slice is freshly allocated per datagram and safe to retain.
// Closing the socket unblocks a pending Recv with an error wrapping
// net.ErrClosed.
func (c *Conn) Recv(timeout time.Duration) ([]byte, *net.UDPAddr, error) {
	if c.closed.Load() {
		return nil, nil, &Error{Op: "recv", Err: net.ErrClosed}
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, &Error{Op: "recv", Err: err}
	}

	buf := make([]byte, maxDatagramSize)
	n, addr, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, ErrTimeout
		}
		return nil, nil, &Error{Op: "recv", Err: err}
	}
	return buf[:n], addr, nil
}

// Close shuts the socket down. Safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
