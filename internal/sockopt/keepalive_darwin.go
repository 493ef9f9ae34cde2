//go:build darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package sockopt

import "golang.org/x/sys/unix"

// setKeepAliveIdle sets TCP_KEEPALIVE, Darwin's equivalent of Linux's
// TCP_KEEPIDLE.
func setKeepAliveIdle(fd int, seconds int) error {
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, seconds))
}

// setKeepAliveInterval is a no-op: Darwin exposes no setsockopt knob for the
// probe interval, only the idle delay and SO_KEEPALIVE itself.
func setKeepAliveInterval(fd int, seconds int) error {
	return nil
}

// setKeepAliveCount is a no-op for the same reason as setKeepAliveInterval.
func setKeepAliveCount(fd int, count int) error {
	return nil
}

// SetNoSigPipe sets SO_NOSIGPIPE so that writes to a peer-closed socket
// return EPIPE instead of raising SIGPIPE.
func SetNoSigPipe(fd int) error {
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1))
}
