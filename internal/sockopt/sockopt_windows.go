//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package sockopt

import (
	"net/netip"
	"os"

	"golang.org/x/sys/windows"
)

// NewStreamSocket creates a TCP socket for the given address family
// (windows.AF_INET or windows.AF_INET6).
func NewStreamSocket(family int) (windows.Handle, error) {
	return newSocket(family, windows.SOCK_STREAM)
}

// NewDatagramSocket creates a UDP socket for the given address family.
func NewDatagramSocket(family int) (windows.Handle, error) {
	return newSocket(family, windows.SOCK_DGRAM)
}

func newSocket(family, sockType int) (windows.Handle, error) {
	fd, err := windows.Socket(family, sockType, 0)
	if err != nil {
		return windows.InvalidHandle, os.NewSyscallError("socket", err)
	}
	return fd, nil
}

// Bind binds fd to addr.
func Bind(fd windows.Handle, addr netip.AddrPort) error {
	ip := addr.Addr()
	if ip.Is4() || ip.Is4In6() {
		return wrapErrno("bind", windows.Bind(fd, &windows.SockaddrInet4{Port: int(addr.Port()), Addr: ip.As4()}))
	}
	return wrapErrno("bind", windows.Bind(fd, &windows.SockaddrInet6{Port: int(addr.Port()), Addr: ip.As16()}))
}

// SetReuseAddr toggles SO_REUSEADDR.
func SetReuseAddr(fd windows.Handle) error {
	return wrapErrno("setsockopt", windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1))
}

// SetNoDelay toggles TCP_NODELAY, disabling Nagle's algorithm.
func SetNoDelay(fd windows.Handle) error {
	return wrapErrno("setsockopt", windows.SetsockoptInt(fd, windows.IPPROTO_TCP, windows.TCP_NODELAY, 1))
}

// SetKeepAlive enables SO_KEEPALIVE. Windows exposes the idle/interval
// schedule only through WSAIoctl SIO_KEEPALIVE_VALS, not setsockopt; the
// idle/interval/count fields of params are accepted for interface symmetry
// with the Unix implementations but are otherwise unused here.
func SetKeepAlive(fd windows.Handle, params KeepAliveParams) error {
	return wrapErrno("setsockopt", windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_KEEPALIVE, 1))
}

// SetSendBuffer sizes SO_SNDBUF.
func SetSendBuffer(fd windows.Handle, bytes int) error {
	return wrapErrno("setsockopt", windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_SNDBUF, bytes))
}

// SetRecvBuffer sizes SO_RCVBUF.
func SetRecvBuffer(fd windows.Handle, bytes int) error {
	return wrapErrno("setsockopt", windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_RCVBUF, bytes))
}

// Listen marks fd as passive with the system's maximum backlog.
func Listen(fd windows.Handle) error {
	return wrapErrno("listen", windows.Listen(fd, windows.SOMAXCONN))
}

// wrapErrno turns a raw errno into a *os.SyscallError, or nil.
func wrapErrno(op string, err error) error {
	if err == nil {
		return nil
	}
	return os.NewSyscallError(op, err)
}
