//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"encoding/binary"
	"net"
	"os"
)

// New creates a Notifier backed by a loopback TCP socketpair: Windows has no
// native eventfd/kqueue-equivalent for a user-space wakeup, so a transient
// listener on 127.0.0.1:0 is used to connect and accept one pair of
// connected sockets, after which the listener is discarded.
func New() (Notifier, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, os.NewSyscallError("listen", err)
	}
	defer ln.Close()

	acceptErr := make(chan error, 1)
	acceptConn := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		acceptErr <- err
		acceptConn <- conn
	}()

	writeConn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		return nil, err
	}
	if err := <-acceptErr; err != nil {
		writeConn.Close()
		return nil, err
	}
	readConn := <-acceptConn

	return &socketpairNotifier{readConn: readConn, writeConn: writeConn}, nil
}

type socketpairNotifier struct {
	readConn  net.Conn
	writeConn net.Conn
}

// FD returns the underlying read-side handle value. Windows has no raw fd
// the dispatcher can epoll-equivalent-poll directly; the IOCP-backed
// dispatcher instead reads from readConn via its Read method when woken.
func (n *socketpairNotifier) FD() int {
	type fileConn interface{ File() (*os.File, error) }
	if fc, ok := n.readConn.(fileConn); ok {
		if f, err := fc.File(); err == nil {
			defer f.Close()
			return int(f.Fd())
		}
	}
	return -1
}

func (n *socketpairNotifier) Notify(payload uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], payload)
	_, err := n.writeConn.Write(buf[:])
	return err
}

func (n *socketpairNotifier) Event() (uint64, error) {
	var buf [8]byte
	if _, err := readFull(n.readConn, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (n *socketpairNotifier) Close() error {
	err1 := n.readConn.Close()
	err2 := n.writeConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
