//go:build linux || darwin || freebsd || netbsd || dragonfly || openbsd

// SPDX-License-Identifier: GPL-3.0-or-later

package cluster

import (
	"fmt"
	"os"
	"syscall"

	"github.com/corenetio/corenet"
	"github.com/corenetio/corenet/cmp"
	"golang.org/x/sys/unix"
)

// Start forks (re-execs via SpawnFunc) size worker processes for sid and
// begins pumping their inbound messages. The master learns of each
// child's exit through its own goroutine calling Wait, so SIGCHLD itself
// never needs to be handled directly.
func (c *Cluster) Start(sid corenet.SchemeID) error {
	p, err := c.poolFor(sid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.stopping = false
	need := p.size - len(p.workers)
	p.mu.Unlock()

	for i := 0; i < need; i++ {
		if _, err := c.spawnOneWorker(sid, p); err != nil {
			return err
		}
	}
	return nil
}

// Stop signals every worker in sid's pool to terminate and waits for
// their exit to be observed, disabling auto-restart first so the pool
// does not replace workers out from under the shutdown.
func (c *Cluster) Stop(sid corenet.SchemeID) error {
	p, err := c.poolFor(sid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.stopping = true
	toStop := make([]*worker, 0, len(p.workers))
	for _, w := range p.workers {
		toStop = append(toStop, w)
	}
	p.mu.Unlock()

	for _, w := range toStop {
		if w.cmd.Process != nil {
			_ = w.cmd.Process.Signal(syscall.SIGTERM)
		}
	}
	for _, w := range toStop {
		<-w.done
	}
	return nil
}

func (c *Cluster) spawnOneWorker(sid corenet.SchemeID, p *pool) (*worker, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("cluster: socketpair: %w", err)
	}
	masterFile := os.NewFile(uintptr(fds[0]), "corenet-cluster-master")
	childFile := os.NewFile(uintptr(fds[1]), "corenet-cluster-child")

	p.mu.Lock()
	wid := p.nextID
	p.nextID++
	p.mu.Unlock()

	cmd := p.spawn(sid, wid)
	if cmd == nil {
		masterFile.Close()
		childFile.Close()
		return nil, fmt.Errorf("cluster: spawn function returned a nil command for worker %d", wid)
	}
	cmd.ExtraFiles = append(cmd.ExtraFiles, childFile)
	fdNum := 3 + len(cmd.ExtraFiles) - 1
	cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", WorkerFDEnv, fdNum), fmt.Sprintf("%s=%d", WorkerIDEnv, wid))

	if err := cmd.Start(); err != nil {
		masterFile.Close()
		childFile.Close()
		return nil, fmt.Errorf("cluster: starting worker %d: %w", wid, err)
	}
	// the child inherited its own copy across fork/exec; the master no
	// longer needs this end.
	_ = childFile.Close()

	w := &worker{
		id:   wid,
		pid:  cmd.Process.Pid,
		cmd:  cmd,
		conn: masterFile,
		enc:  cmp.NewEncoder(c.ChunkSize),
		dec:  cmp.NewDecoder(c.ChunkSize),
		done: make(chan struct{}),
	}

	p.mu.Lock()
	p.workers[wid] = w
	p.mu.Unlock()

	go c.pumpWorker(sid, w)
	go c.reapWorker(sid, p, w)

	return w, nil
}

func (c *Cluster) pumpWorker(sid corenet.SchemeID, w *worker) {
	buf := make([]byte, 64*1024)
	for {
		n, err := w.conn.Read(buf)
		if n > 0 {
			if pushErr := w.dec.Push(buf[:n]); pushErr != nil {
				c.Logger.Error("cluster: worker framing error, closing pipe", "worker", w.id, "pid", w.pid, "error", pushErr)
				_ = w.conn.Close()
				return
			}
			for {
				rec, ok := w.dec.Get()
				if !ok {
					break
				}
				w.dec.Pop()
				if c.Callbacks.OnMessage != nil {
					c.Callbacks.OnMessage(sid, w.id, Message{Record: rec, Filtered: c.filtered(rec.Tag)})
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *Cluster) reapWorker(sid corenet.SchemeID, p *pool, w *worker) {
	_ = w.cmd.Wait()
	_ = w.conn.Close()
	close(w.done)

	p.mu.Lock()
	delete(p.workers, w.id)
	restart := p.restart && !p.stopping
	p.mu.Unlock()

	c.Logger.Info("cluster: worker exited", "scheme", sid, "worker", w.id, "pid", w.pid)
	if c.Callbacks.OnEvent != nil {
		c.Callbacks.OnEvent(Event{Scheme: sid, Worker: w.id, PID: w.pid, Kind: EventExit})
	}

	if !restart {
		return
	}
	nw, err := c.spawnOneWorker(sid, p)
	if err != nil {
		c.Logger.Error("cluster: failed to respawn worker", "scheme", sid, "error", err)
		return
	}
	c.Logger.Info("cluster: worker respawned", "scheme", sid, "worker", nw.id, "pid", nw.pid)
	if c.Callbacks.OnEvent != nil {
		c.Callbacks.OnEvent(Event{Scheme: sid, Worker: nw.id, PID: nw.pid, Kind: EventRestart})
	}
}

// SendToWorker frames payload under tag and writes it to a single
// worker identified by id.
func (c *Cluster) SendToWorker(sid corenet.SchemeID, wid WorkerID, tag uint8, payload []byte) error {
	p, err := c.poolFor(sid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	w, ok := p.workers[wid]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("cluster: worker %d not found in scheme %d", wid, sid)
	}
	return writeFramed(w, tag, payload)
}

// SendToPID frames payload under tag and writes it to the worker whose
// process id matches pid.
func (c *Cluster) SendToPID(sid corenet.SchemeID, pid int, tag uint8, payload []byte) error {
	p, err := c.poolFor(sid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	var target *worker
	for _, w := range p.workers {
		if w.pid == pid {
			target = w
			break
		}
	}
	p.mu.Unlock()
	if target == nil {
		return fmt.Errorf("cluster: no worker with pid %d in scheme %d", pid, sid)
	}
	return writeFramed(target, tag, payload)
}

// Broadcast frames payload under tag and writes it to every worker in
// sid's pool.
func (c *Cluster) Broadcast(sid corenet.SchemeID, tag uint8, payload []byte) error {
	p, err := c.poolFor(sid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	targets := make([]*worker, 0, len(p.workers))
	for _, w := range p.workers {
		targets = append(targets, w)
	}
	p.mu.Unlock()

	var firstErr error
	for _, w := range targets {
		if err := writeFramed(w, tag, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func writeFramed(w *worker, tag uint8, payload []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.enc.Push(tag, payload)
	data := w.enc.Data()
	n, err := w.conn.Write(data)
	w.enc.Erase(n)
	if err != nil {
		return fmt.Errorf("cluster: writing to worker %d: %w", w.id, err)
	}
	return nil
}
