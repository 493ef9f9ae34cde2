// SPDX-License-Identifier: GPL-3.0-or-later

// Package cluster supervises a pool of worker processes per scheme,
// forking (via re-exec) one child per slot and exchanging CMP-framed
// messages with it over a full-duplex pipe. It is the process-level
// counterpart to the single-threaded, single-process reactor in the
// root package.
package cluster

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/corenetio/corenet"
	"github.com/corenetio/corenet/cmp"
)

// WorkerFDEnv names the environment variable a spawned worker uses to
// learn which inherited file descriptor carries its pipe to the master.
const WorkerFDEnv = "CORENET_WORKER_FD"

// WorkerIDEnv names the environment variable carrying a spawned worker's
// own id, passed back on every message it sends.
const WorkerIDEnv = "CORENET_WORKER_ID"

// WorkerID identifies one child process within a scheme's pool.
type WorkerID uint32

// EventKind distinguishes the lifecycle notifications a [Cluster] emits.
type EventKind uint8

const (
	// EventExit fires when a worker process has terminated, whether
	// cleanly, by signal, or by crash.
	EventExit EventKind = iota
	// EventRestart fires once a replacement worker has been spawned
	// for one that exited while restart was enabled.
	EventRestart
)

// Event is delivered to Callbacks.OnEvent.
type Event struct {
	Scheme corenet.SchemeID
	Worker WorkerID
	PID    int
	Kind   EventKind
}

// Message wraps a reassembled record with the master's broadcast-tag
// subscription verdict; see [Cluster.Subscribe].
type Message struct {
	cmp.Record
	// Filtered is true when Subscribe has been called for at least one
	// tag but not for this record's Tag. The message is still delivered;
	// Filtered only tells the caller it asked to ignore this tag.
	Filtered bool
}

// Callbacks are the user hooks a [Cluster] invokes. Both may be called
// from a pool's internal goroutines, never from the caller's own
// goroutine, so implementations must not assume any particular thread.
type Callbacks struct {
	// OnMessage is invoked once per fully reassembled record received
	// from a worker.
	OnMessage func(sid corenet.SchemeID, wid WorkerID, msg Message)
	// OnEvent is invoked on worker exit and, if a replacement was
	// spawned, again on restart.
	OnEvent func(ev Event)
}

// SpawnFunc builds the *exec.Cmd used to start one worker slot. The
// returned command's Path/Args/Env/Dir are used as given; [Cluster]
// appends the inherited pipe fd and the worker identification
// environment variables before starting it. Typically this re-execs the
// current binary with a flag telling it to call [RunWorker].
type SpawnFunc func(sid corenet.SchemeID, wid WorkerID) *exec.Cmd

type pool struct {
	size    int
	async   bool
	restart bool
	spawn   SpawnFunc

	mu       sync.Mutex
	workers  map[WorkerID]*worker
	nextID   WorkerID
	stopping bool
}

// Cluster is the master-side supervisor. The zero value is not usable;
// construct with [New].
type Cluster struct {
	// Logger receives lifecycle and error events.
	Logger corenet.SLogger
	// Callbacks are invoked for inbound messages and lifecycle events.
	Callbacks Callbacks
	// ChunkSize is passed to every worker's encoder/decoder pair.
	ChunkSize int

	mu         sync.Mutex
	pools      map[corenet.SchemeID]*pool
	subscribed map[uint8]struct{}
}

// Subscribe registers interest in tag. Before the first Subscribe call,
// every message is delivered with Filtered false; once at least one tag
// is subscribed, OnMessage keeps firing for every tag but Message.Filtered
// is true for any tag that was never subscribed, so a caller can ignore
// the tags it doesn't care about without the master keeping a per-worker
// routing table.
func (c *Cluster) Subscribe(tag uint8) {
	c.mu.Lock()
	if c.subscribed == nil {
		c.subscribed = make(map[uint8]struct{})
	}
	c.subscribed[tag] = struct{}{}
	c.mu.Unlock()
}

// filtered reports whether tag should be marked Filtered given the
// current subscription set.
func (c *Cluster) filtered(tag uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subscribed) == 0 {
		return false
	}
	_, ok := c.subscribed[tag]
	return !ok
}

// New constructs a [Cluster]. A nil logger falls back to a discard
// logger, matching the rest of the module's convention.
func New(logger corenet.SLogger) *Cluster {
	if logger == nil {
		logger = corenet.DefaultSLogger()
	}
	return &Cluster{
		Logger:    logger,
		ChunkSize: cmp.DefaultChunkSize,
		pools:     make(map[corenet.SchemeID]*pool),
	}
}

// Init declares a worker pool of size for the given scheme. Calling Init
// again for the same scheme before Start replaces the prior declaration.
func (c *Cluster) Init(sid corenet.SchemeID, size int, spawn SpawnFunc) error {
	if size <= 0 {
		return fmt.Errorf("cluster: pool size must be positive, got %d", size)
	}
	if spawn == nil {
		return fmt.Errorf("cluster: spawn function is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools[sid] = &pool{size: size, spawn: spawn, workers: make(map[WorkerID]*worker)}
	return nil
}

// Async records the async-delivery flag for sid's pool. Message delivery
// does not read it: every worker has its own inbound pump goroutine
// whether the flag is on or off, so OnMessage may run concurrently for
// different workers of the same scheme.
func (c *Cluster) Async(sid corenet.SchemeID, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pools[sid]; ok {
		p.async = enabled
	}
}

// Restart toggles auto-respawn of workers that exit unexpectedly.
func (c *Cluster) Restart(sid corenet.SchemeID, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pools[sid]; ok {
		p.restart = enabled
	}
}

// poolFor is a helper shared by the platform-specific Start/Stop/Send
// implementations.
func (c *Cluster) poolFor(sid corenet.SchemeID) (*pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pools[sid]
	if !ok {
		return nil, fmt.Errorf("cluster: scheme %d was never initialized via Init", sid)
	}
	return p, nil
}

// WorkerCount reports how many workers are currently running for sid.
func (c *Cluster) WorkerCount(sid corenet.SchemeID) int {
	p, err := c.poolFor(sid)
	if err != nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// WorkerPIDs reports the OS process ids of every worker currently
// running for sid, useful for diagnostics and for targeting SendToPID.
func (c *Cluster) WorkerPIDs(sid corenet.SchemeID) []int {
	p, err := c.poolFor(sid)
	if err != nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pids := make([]int, 0, len(p.workers))
	for _, w := range p.workers {
		pids = append(pids, w.pid)
	}
	return pids
}
