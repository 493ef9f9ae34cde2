//go:build openbsd

// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"
)

// New creates a pipe-backed Notifier: the write end carries the 8-byte
// payload directly, so no separate payload queue is needed here, unlike the
// eventfd and kqueue implementations.
func New() (Notifier, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, os.NewSyscallError("pipe2", err)
	}
	return &pipeNotifier{readFD: fds[0], writeFD: fds[1]}, nil
}

type pipeNotifier struct {
	readFD  int
	writeFD int
}

func (n *pipeNotifier) FD() int { return n.readFD }

func (n *pipeNotifier) Notify(payload uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], payload)
	if _, err := unix.Write(n.writeFD, buf[:]); err != nil {
		return os.NewSyscallError("write", err)
	}
	return nil
}

func (n *pipeNotifier) Event() (uint64, error) {
	var buf [8]byte
	m, err := unix.Read(n.readFD, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, os.NewSyscallError("read", err)
	}
	if m < 8 {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (n *pipeNotifier) Close() error {
	err1 := unix.Close(n.readFD)
	err2 := unix.Close(n.writeFD)
	if err1 != nil {
		return err1
	}
	return err2
}
