//go:build linux || darwin || freebsd || netbsd || dragonfly || openbsd

// SPDX-License-Identifier: GPL-3.0-or-later

package sockopt

import (
	"net/netip"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// NewStreamSocket creates a non-blocking TCP socket for the given address
// family (unix.AF_INET or unix.AF_INET6).
func NewStreamSocket(family int) (int, error) {
	return newSocket(family, unix.SOCK_STREAM)
}

// NewDatagramSocket creates a non-blocking UDP socket for the given address
// family. TLS and DTLS sockets reuse these constructors: the engine layer
// wraps the resulting connection, it does not change the socket type.
func NewDatagramSocket(family int) (int, error) {
	return newSocket(family, unix.SOCK_DGRAM)
}

func newSocket(family, sockType int) (int, error) {
	fd, err := unix.Socket(family, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	return fd, nil
}

// SetReuseAddr toggles SO_REUSEADDR.
func SetReuseAddr(fd int) error {
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1))
}

// SetNoDelay toggles TCP_NODELAY, disabling Nagle's algorithm.
func SetNoDelay(fd int) error {
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1))
}

// SetKeepAlive enables SO_KEEPALIVE and configures the idle/interval/count
// probe schedule.
func SetKeepAlive(fd int, params KeepAliveParams) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return wrapErrno("setsockopt", err)
	}
	if err := setKeepAliveIdle(fd, params.Idle); err != nil {
		return err
	}
	if err := setKeepAliveInterval(fd, params.Interval); err != nil {
		return err
	}
	return setKeepAliveCount(fd, params.Count)
}

// SetSendBuffer sizes SO_SNDBUF.
func SetSendBuffer(fd int, bytes int) error {
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, bytes))
}

// SetRecvBuffer sizes SO_RCVBUF.
func SetRecvBuffer(fd int, bytes int) error {
	return wrapErrno("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, bytes))
}

// Bind binds fd to addr, dispatching to the IPv4 or IPv6 sockaddr form
// depending on addr's family.
func Bind(fd int, addr netip.AddrPort) error {
	ip := addr.Addr()
	if ip.Is4() || ip.Is4In6() {
		sa := &unix.SockaddrInet4{Port: int(addr.Port())}
		sa.Addr = ip.As4()
		return wrapErrno("bind", unix.Bind(fd, sa))
	}
	sa := &unix.SockaddrInet6{Port: int(addr.Port())}
	sa.Addr = ip.As16()
	return wrapErrno("bind", unix.Bind(fd, sa))
}

// Connect starts a non-blocking connect to addr. A nil error means the
// connection completed synchronously (rare for non-blocking sockets); an
// EINPROGRESS [*os.SyscallError] means the caller should arm the writable
// event and later consult [SocketError] once it fires.
func Connect(fd int, addr netip.AddrPort) error {
	ip := addr.Addr()
	if ip.Is4() || ip.Is4In6() {
		sa := &unix.SockaddrInet4{Port: int(addr.Port())}
		sa.Addr = ip.As4()
		return wrapErrno("connect", unix.Connect(fd, sa))
	}
	sa := &unix.SockaddrInet6{Port: int(addr.Port())}
	sa.Addr = ip.As16()
	return wrapErrno("connect", unix.Connect(fd, sa))
}

// SocketError reads and clears SO_ERROR, the standard way to discover
// whether an asynchronous connect succeeded once the fd reports writable.
func SocketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return wrapErrno("getsockopt", err)
	}
	if errno == 0 {
		return nil
	}
	return wrapErrno("connect", syscall.Errno(errno))
}

// Listen marks fd as passive with the system's maximum backlog.
func Listen(fd int) error {
	return wrapErrno("listen", unix.Listen(fd, unix.SOMAXCONN))
}

// Accept accepts a connection on fd, returning the new non-blocking fd and
// the peer's socket address.
func Accept(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, os.NewSyscallError("accept4", err)
	}
	return nfd, sa, nil
}

// AddrPortFromSockaddr converts a unix.Sockaddr obtained from Accept or
// Getpeername into a netip.AddrPort, or false if sa's type is unsupported.
func AddrPortFromSockaddr(sa unix.Sockaddr) (netip.AddrPort, bool) {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)), true
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port)), true
	default:
		return netip.AddrPort{}, false
	}
}

// wrapErrno turns a raw errno into a *os.SyscallError, or nil.
func wrapErrno(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if e, ok := err.(syscall.Errno); ok {
		errno = e
		return os.NewSyscallError(op, errno)
	}
	return os.NewSyscallError(op, err)
}
