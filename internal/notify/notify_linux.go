//go:build linux

// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"
)

// New creates an eventfd-backed Notifier. The eventfd counter itself holds
// the pending-wakeup count, but not an arbitrary payload, so payloads beyond
// a bare wakeup are queued in a mutex-guarded FIFO fed only by Notify and
// drained only by Event, matching the single-reader/many-writer contract.
func New() (Notifier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("eventfd", err)
	}
	return &eventfdNotifier{fd: fd, queue: newPayloadQueue()}, nil
}

type eventfdNotifier struct {
	fd    int
	queue *payloadQueue
}

func (n *eventfdNotifier) FD() int { return n.fd }

func (n *eventfdNotifier) Notify(payload uint64) error {
	n.queue.push(payload)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(n.fd, buf[:]); err != nil {
		return os.NewSyscallError("write", err)
	}
	return nil
}

func (n *eventfdNotifier) Event() (uint64, error) {
	var buf [8]byte
	_, err := unix.Read(n.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return 0, os.NewSyscallError("read", err)
	}
	payload, ok := n.queue.pop()
	if !ok {
		return 0, nil
	}
	return payload, nil
}

func (n *eventfdNotifier) Close() error {
	return unix.Close(n.fd)
}
