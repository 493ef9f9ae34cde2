//go:build linux

// SPDX-License-Identifier: GPL-3.0-or-later

package sockopt

import "golang.org/x/sys/unix"

func setKeepAliveIdle(fd int, seconds int) error {
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, seconds))
}

func setKeepAliveInterval(fd int, seconds int) error {
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, seconds))
}

func setKeepAliveCount(fd int, count int) error {
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, count))
}
