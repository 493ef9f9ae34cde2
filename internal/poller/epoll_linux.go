//go:build linux

// SPDX-License-Identifier: GPL-3.0-or-later

package poller

import (
	"os"

	"golang.org/x/sys/unix"
)

// New creates an epoll-backed Poller.
func New() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &epollPoller{fd: fd}, nil
}

type epollPoller struct {
	fd int
}

func toEpollEvents(interest Interest) uint32 {
	var events uint32 = unix.EPOLLRDHUP
	if interest&Readable != 0 {
		events |= unix.EPOLLIN
	}
	if interest&Writable != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func (p *epollPoller) Add(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	return wrapErrno("epoll_ctl", unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev))
}

func (p *epollPoller) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	return wrapErrno("epoll_ctl", unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &ev))
}

func (p *epollPoller) Remove(fd int) error {
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return wrapErrno("epoll_ctl", err)
}

func (p *epollPoller) Wait(dst []Event, timeoutMs int) ([]Event, error) {
	var raw [256]unix.EpollEvent
	n, err := unix.EpollWait(p.fd, raw[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, os.NewSyscallError("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		ev := raw[i]
		dst = append(dst, Event{
			FD:       int(ev.Fd),
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Error:    ev.Events&unix.EPOLLERR != 0,
		})
	}
	return dst, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.fd)
}

func wrapErrno(op string, err error) error {
	if err == nil {
		return nil
	}
	return os.NewSyscallError(op, err)
}
