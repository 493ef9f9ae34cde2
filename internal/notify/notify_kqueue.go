//go:build darwin || freebsd || netbsd || dragonfly

// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"os"

	"golang.org/x/sys/unix"
)

const userEventIdent = 1

// New creates a kqueue-backed Notifier using a private EVFILT_USER event.
// kqueue collapses repeated NOTE_TRIGGER activations into a single readable
// edge, so payloads are queued separately and drained in FIFO order by
// Event.
func New() (Notifier, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}

	changes := []unix.Kevent_t{{
		Ident:  userEventIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}
	if _, err := unix.Kevent(kq, changes, nil, nil); err != nil {
		_ = unix.Close(kq)
		return nil, os.NewSyscallError("kevent", err)
	}

	return &kqueueNotifier{fd: kq, queue: newPayloadQueue()}, nil
}

type kqueueNotifier struct {
	fd    int
	queue *payloadQueue
}

func (n *kqueueNotifier) FD() int { return n.fd }

func (n *kqueueNotifier) Notify(payload uint64) error {
	n.queue.push(payload)
	trigger := []unix.Kevent_t{{
		Ident:  userEventIdent,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}
	if _, err := unix.Kevent(n.fd, trigger, nil, nil); err != nil {
		return os.NewSyscallError("kevent", err)
	}
	return nil
}

func (n *kqueueNotifier) Event() (uint64, error) {
	payload, ok := n.queue.pop()
	if !ok {
		return 0, nil
	}
	return payload, nil
}

func (n *kqueueNotifier) Close() error {
	return unix.Close(n.fd)
}
