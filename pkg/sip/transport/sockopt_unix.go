//go:build linux || darwin

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// dscpCS3 is the class selector for call signaling; it lands in the upper
// six bits of the TOS byte.
const dscpCS3 = 24

// setSocketOptions runs against the raw fd before bind: SO_REUSEADDR and
// the CS3 signaling mark. Option failures are tolerated, unprivileged
// runtimes often refuse them.
func setSocketOptions(network, address string, c syscall.RawConn) error {
	return c.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, dscpCS3<<2)
	})
}
