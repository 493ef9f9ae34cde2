// SPDX-License-Identifier: GPL-3.0-or-later

package cluster

import (
	"io"
	"os/exec"
	"sync"

	"github.com/corenetio/corenet"
	"github.com/corenetio/corenet/cmp"
)

// worker is the master's handle on one running child process.
type worker struct {
	id  WorkerID
	pid int
	cmd *exec.Cmd

	conn io.ReadWriteCloser

	writeMu sync.Mutex
	enc     *cmp.Encoder
	dec     *cmp.Decoder

	done chan struct{}
}

// WorkerConn is the child-side handle returned by [RunWorker]. It wraps
// the inherited pipe fd with the same CMP framing the master uses.
type WorkerConn struct {
	Scheme corenet.SchemeID
	Worker WorkerID

	conn    io.ReadWriteCloser
	writeMu sync.Mutex
	enc     *cmp.Encoder
	dec     *cmp.Decoder
}
