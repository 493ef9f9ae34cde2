//go:build darwin || freebsd || netbsd || dragonfly || openbsd

// SPDX-License-Identifier: GPL-3.0-or-later

package poller

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// New creates a kqueue-backed Poller.
func New() (Poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	return &kqueuePoller{fd: fd, interests: make(map[int]Interest)}, nil
}

type kqueuePoller struct {
	fd        int
	mu        sync.Mutex
	interests map[int]Interest
}

func (p *kqueuePoller) Add(fd int, interest Interest) error {
	p.mu.Lock()
	p.interests[fd] = interest
	p.mu.Unlock()
	return p.apply(fd, 0, interest)
}

func (p *kqueuePoller) Modify(fd int, interest Interest) error {
	p.mu.Lock()
	old := p.interests[fd]
	p.interests[fd] = interest
	p.mu.Unlock()
	return p.apply(fd, old, interest)
}

func (p *kqueuePoller) apply(fd int, old, interest Interest) error {
	var changes []unix.Kevent_t
	wantRead := interest&Readable != 0
	hadRead := old&Readable != 0
	if wantRead != hadRead {
		flag := uint16(unix.EV_ADD)
		if !wantRead {
			flag = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flag})
	}
	wantWrite := interest&Writable != 0
	hadWrite := old&Writable != 0
	if wantWrite != hadWrite {
		flag := uint16(unix.EV_ADD)
		if !wantWrite {
			flag = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flag})
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.fd, changes, nil, nil)
	return wrapErrno("kevent", err)
}

func (p *kqueuePoller) Remove(fd int) error {
	p.mu.Lock()
	delete(p.interests, fd)
	p.mu.Unlock()
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, err := unix.Kevent(p.fd, changes, nil, nil)
	if err == unix.ENOENT {
		return nil
	}
	return wrapErrno("kevent", err)
}

func (p *kqueuePoller) Wait(dst []Event, timeoutMs int) ([]Event, error) {
	var raw [256]unix.Kevent_t
	var timeout *unix.Timespec
	if timeoutMs >= 0 {
		ts := unix.NsecToTimespec(int64(timeoutMs) * 1_000_000)
		timeout = &ts
	}
	n, err := unix.Kevent(p.fd, nil, raw[:], timeout)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, os.NewSyscallError("kevent", err)
	}

	byFD := make(map[int]*Event, n)
	for i := 0; i < n; i++ {
		ev := raw[i]
		fd := int(ev.Ident)
		e, ok := byFD[fd]
		if !ok {
			e = &Event{FD: fd}
			byFD[fd] = e
		}
		switch ev.Filter {
		case unix.EVFILT_READ:
			e.Readable = true
		case unix.EVFILT_WRITE:
			e.Writable = true
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			e.Error = true
		}
	}
	for _, e := range byFD {
		dst = append(dst, *e)
	}
	return dst, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.fd)
}

func wrapErrno(op string, err error) error {
	if err == nil {
		return nil
	}
	return os.NewSyscallError(op, err)
}
