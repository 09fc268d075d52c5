//go:build !linux && !darwin

package transport

import "syscall"

func setSocketOptions(network, address string, c syscall.RawConn) error {
	return nil
}
