//go:build solaris

// SPDX-License-Identifier: GPL-3.0-or-later

package poller

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// New creates an event-ports-backed Poller.
func New() (Poller, error) {
	fd, err := unix.PortCreate()
	if err != nil {
		return nil, os.NewSyscallError("port_create", err)
	}
	return &portPoller{fd: fd, interests: make(map[int]Interest)}, nil
}

type portPoller struct {
	fd        int
	mu        sync.Mutex
	interests map[int]Interest
}

func toPortEvents(interest Interest) int {
	var events int
	if interest&Readable != 0 {
		events |= unix.POLLIN
	}
	if interest&Writable != 0 {
		events |= unix.POLLOUT
	}
	return events
}

func (p *portPoller) Add(fd int, interest Interest) error {
	p.mu.Lock()
	p.interests[fd] = interest
	p.mu.Unlock()
	return p.associate(fd, interest)
}

func (p *portPoller) Modify(fd int, interest Interest) error {
	p.mu.Lock()
	p.interests[fd] = interest
	p.mu.Unlock()
	return p.associate(fd, interest)
}

func (p *portPoller) associate(fd int, interest Interest) error {
	err := unix.PortAssociate(p.fd, unix.PORT_SOURCE_FD, uintptr(fd), toPortEvents(interest), nil)
	return wrapErrno("port_associate", err)
}

func (p *portPoller) Remove(fd int) error {
	p.mu.Lock()
	delete(p.interests, fd)
	p.mu.Unlock()
	err := unix.PortDissociate(p.fd, unix.PORT_SOURCE_FD, uintptr(fd))
	if err == unix.ENOENT {
		return nil
	}
	return wrapErrno("port_dissociate", err)
}

// Wait retrieves ready events and re-associates each fd that fires, since
// event ports deliver a one-shot association that must be re-armed.
func (p *portPoller) Wait(dst []Event, timeoutMs int) ([]Event, error) {
	events := make([]unix.PortEvent, 256)
	var timeout *unix.Timespec
	if timeoutMs >= 0 {
		ts := unix.NsecToTimespec(int64(timeoutMs) * 1_000_000)
		timeout = &ts
	}
	n := 1
	err := unix.PortGetn(p.fd, events, uint32(len(events)), &n, timeout)
	if err != nil {
		if err == unix.ETIME || err == unix.EINTR {
			return dst, nil
		}
		return dst, os.NewSyscallError("port_getn", err)
	}
	for i := 0; i < n; i++ {
		pe := events[i]
		fd := int(pe.Object)
		dst = append(dst, Event{
			FD:       fd,
			Readable: pe.Events&unix.POLLIN != 0,
			Writable: pe.Events&unix.POLLOUT != 0,
			Error:    pe.Events&unix.POLLERR != 0,
		})
		p.mu.Lock()
		interest := p.interests[fd]
		p.mu.Unlock()
		if interest != 0 {
			_ = p.associate(fd, interest)
		}
	}
	return dst, nil
}

func (p *portPoller) Close() error {
	return unix.Close(p.fd)
}

func wrapErrno(op string, err error) error {
	if err == nil {
		return nil
	}
	return os.NewSyscallError(op, err)
}
