// SPDX-License-Identifier: GPL-3.0-or-later

package cluster

import (
	"fmt"
	"os"
	"strconv"

	"github.com/corenetio/corenet"
	"github.com/corenetio/corenet/cmp"
)

// RunWorker reconstructs a [WorkerConn] from the environment a [Cluster]
// master set up before spawning this process: it reads WorkerFDEnv for
// the inherited file descriptor and WorkerIDEnv for this worker's id.
// Callers invoke this early in their own main() when they detect they
// are running as a cluster worker (typically via a dedicated flag or a
// sentinel environment variable of the caller's own choosing).
func RunWorker(sid corenet.SchemeID, chunkSize int) (*WorkerConn, error) {
	fdStr := os.Getenv(WorkerFDEnv)
	if fdStr == "" {
		return nil, fmt.Errorf("cluster: %s is not set; not running as a cluster worker", WorkerFDEnv)
	}
	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		return nil, fmt.Errorf("cluster: invalid %s: %w", WorkerFDEnv, err)
	}
	idStr := os.Getenv(WorkerIDEnv)
	id64, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("cluster: invalid %s: %w", WorkerIDEnv, err)
	}

	file := os.NewFile(uintptr(fd), "corenet-cluster-pipe")
	if file == nil {
		return nil, fmt.Errorf("cluster: fd %d from %s is not valid", fd, WorkerFDEnv)
	}

	enc := cmp.NewEncoder(chunkSize)
	// pid=0 is the self-addressed convention: a worker has exactly one
	// counterpart on its pipe (the master), so there is never a need to
	// stamp its own real pid.
	enc.PID = 0

	return &WorkerConn{
		Scheme: sid,
		Worker: WorkerID(id64),
		conn:   file,
		enc:    enc,
		dec:    cmp.NewDecoder(chunkSize),
	}, nil
}

// Send frames payload under tag and writes it to the master.
func (w *WorkerConn) Send(tag uint8, payload []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.enc.Push(tag, payload)
	data := w.enc.Data()
	n, err := w.conn.Write(data)
	w.enc.Erase(n)
	if err != nil {
		return fmt.Errorf("cluster: worker write: %w", err)
	}
	return nil
}

// Close releases the pipe to the master.
func (w *WorkerConn) Close() error {
	return w.conn.Close()
}

// Pump blocks, repeatedly reading from the master pipe and invoking
// onMessage once per fully reassembled record, until the pipe closes or
// a framing error occurs. Callers typically run this on its own
// goroutine or as their worker's main loop.
func (w *WorkerConn) Pump(onMessage func(cmp.Record)) error {
	buf := make([]byte, 64*1024)
	for {
		n, err := w.conn.Read(buf)
		if n > 0 {
			if pushErr := w.dec.Push(buf[:n]); pushErr != nil {
				return fmt.Errorf("cluster: worker decode: %w", pushErr)
			}
			for {
				rec, ok := w.dec.Get()
				if !ok {
					break
				}
				w.dec.Pop()
				if onMessage != nil {
					onMessage(rec)
				}
			}
		}
		if err != nil {
			return err
		}
	}
}
