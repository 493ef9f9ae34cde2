//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package poller

import (
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// New creates a select()-backed Poller. golang.org/x/sys/windows wraps
// Socket/Bind/Listen but not select, so it is bound directly off ws2_32.dll,
// the same lazy-DLL pattern used to reach the legacy SetHandleCount API.
func New() (Poller, error) {
	return &selectPoller{interests: make(map[int]Interest)}, nil
}

var (
	ws2_32        = windows.NewLazySystemDLL("ws2_32.dll")
	procSelect    = ws2_32.NewProc("select")
	maxFDSetCount = 64
)

// fdSet mirrors the Winsock fd_set layout: a count followed by a fixed
// array of SOCKET handles, unlike the bitmask fd_set used on Unix.
type fdSet struct {
	count uint32
	fds   [64]uintptr
}

func (s *fdSet) add(fd uintptr) bool {
	if int(s.count) >= len(s.fds) {
		return false
	}
	s.fds[s.count] = fd
	s.count++
	return true
}

func (s *fdSet) has(fd uintptr) bool {
	for i := uint32(0); i < s.count; i++ {
		if s.fds[i] == fd {
			return true
		}
	}
	return false
}

type selectPoller struct {
	mu        sync.Mutex
	interests map[int]Interest
}

func (p *selectPoller) Add(fd int, interest Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interests[fd] = interest
	return nil
}

func (p *selectPoller) Modify(fd int, interest Interest) error {
	return p.Add(fd, interest)
}

func (p *selectPoller) Remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.interests, fd)
	return nil
}

// Wait performs a real select() call over the registered descriptors. Since
// Winsock's fd_set caps at 64 entries by default, Wait only watches the
// first 64 registered fds per direction; the dispatcher is expected to keep
// its per-turn working set below this on Windows.
func (p *selectPoller) Wait(dst []Event, timeoutMs int) ([]Event, error) {
	p.mu.Lock()
	var readSet, writeSet fdSet
	for fd, interest := range p.interests {
		if interest&Readable != 0 {
			readSet.add(uintptr(fd))
		}
		if interest&Writable != 0 {
			writeSet.add(uintptr(fd))
		}
	}
	p.mu.Unlock()

	var timeoutPtr uintptr
	var tv struct{ sec, usec int32 }
	if timeoutMs >= 0 {
		tv.sec = int32(timeoutMs / 1000)
		tv.usec = int32((timeoutMs % 1000) * 1000)
		timeoutPtr = uintptr(unsafe.Pointer(&tv))
	}

	r, _, err := procSelect.Call(0,
		uintptr(unsafe.Pointer(&readSet)),
		uintptr(unsafe.Pointer(&writeSet)),
		0,
		timeoutPtr,
	)
	if int(r) == -1 {
		return dst, os.NewSyscallError("select", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for fd := range p.interests {
		ev := Event{FD: fd}
		ev.Readable = readSet.has(uintptr(fd))
		ev.Writable = writeSet.has(uintptr(fd))
		if ev.Readable || ev.Writable {
			dst = append(dst, ev)
		}
	}
	return dst, nil
}

func (p *selectPoller) Close() error {
	return nil
}
