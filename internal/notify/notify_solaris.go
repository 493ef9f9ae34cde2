//go:build solaris

// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"os"

	"golang.org/x/sys/unix"
)

const userEvent = 1

// New creates an event-ports-backed Notifier. Like kqueue, a port can only
// report that the user event fired, not the payload that triggered it, so
// payloads are tracked in a FIFO guarded by a mutex.
func New() (Notifier, error) {
	port, err := unix.PortCreate()
	if err != nil {
		return nil, os.NewSyscallError("port_create", err)
	}
	return &portNotifier{fd: port, queue: newPayloadQueue()}, nil
}

type portNotifier struct {
	fd    int
	queue *payloadQueue
}

func (n *portNotifier) FD() int { return n.fd }

func (n *portNotifier) Notify(payload uint64) error {
	n.queue.push(payload)
	if err := unix.PortSend(n.fd, userEvent, nil); err != nil {
		return os.NewSyscallError("port_send", err)
	}
	return nil
}

func (n *portNotifier) Event() (uint64, error) {
	payload, ok := n.queue.pop()
	if !ok {
		return 0, nil
	}
	return payload, nil
}

func (n *portNotifier) Close() error {
	return unix.Close(n.fd)
}
