// SPDX-License-Identifier: GPL-3.0-or-later

package corenet

import (
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corenetio/corenet/broker"
	"github.com/corenetio/corenet/dispatcher"
	"github.com/corenetio/corenet/internal/fdlimit"
	"github.com/corenetio/corenet/internal/sockopt"
	"github.com/corenetio/corenet/scheme"
	"github.com/corenetio/corenet/tlsengine"
)

// SchemeID identifies a scheme registered with a [Core] via [Core.Add].
type SchemeID uint64

// SchemeDef describes how [Core.Open] should bring a [scheme.Scheme] up:
// as a listening server endpoint or as an outbound client target.
type SchemeDef struct {
	// Scheme is the broker registry and callback set. Required.
	Scheme *scheme.Scheme

	// Network is "tcp" or "udp".
	Network string

	// Listen, when true, makes Open bind+listen at ListenAddr instead of
	// dialing DialHost:DialPort.
	Listen     bool
	ListenAddr string // host:port, literal or resolvable

	DialHost string
	DialPort uint16

	// Resolver overrides [Config.Resolver] for this scheme's Open calls.
	Resolver Resolver

	Transport tlsengine.Transport
	Protocol  tlsengine.Protocol

	// KeepAlive, when non-nil, is applied to every broker's socket opened
	// under this scheme.
	KeepAlive *KeepAliveParams
}

// KeepAliveParams mirrors [sockopt.KeepAliveParams] without requiring
// callers outside internal/sockopt to import an internal package.
type KeepAliveParams struct {
	Idle     time.Duration
	Interval time.Duration
	Count    int
}

// Core is the reactor façade: it owns one [dispatcher.Dispatcher], any
// number of registered schemes, and the brokers schemes track. All
// lifecycle and I/O operations are expected to run on the goroutine that
// calls [Core.Start], except where documented otherwise.
type Core struct {
	Config    *Config
	Logger    SLogger
	TLSEngine *tlsengine.Engine

	dispatcher *dispatcher.Dispatcher

	mu                   sync.Mutex
	schemes              map[SchemeID]*SchemeDef
	nextSchemeID         SchemeID
	nextBrokerID         atomic.Uint64
	brokerScheme         map[broker.ID]SchemeID
	recentlyDisconnected map[broker.ID]time.Time
	gcTimer              dispatcher.TimerID
	gcTimerSet           bool

	// connectTimers and dialTargets are unix-only bookkeeping for the
	// asynchronous client-connect path (see core_io_unix.go); they stay
	// here so Remove/Close's generic bookkeeping does not need a
	// platform-specific Core struct.
	connectTimers map[broker.ID]dispatcher.TimerID
	dialTargets   map[broker.ID]netip.AddrPort

	bound []*Core

	signalIntercepted bool
	stopSignalTrap    func()
	// CrashCallback, when set, is invoked instead of process exit when a
	// fatal signal arrives while signal interception is enabled (the
	// cluster-master half of the signal handling contract; cluster
	// children always log-and-exit regardless of this field).
	CrashCallback func(sig string)
}

// New creates a Core with its own dispatcher. cfg and logger may be nil,
// in which case [NewConfig] and [DefaultSLogger] supply defaults.
func New(cfg *Config, logger SLogger) (*Core, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = DefaultSLogger()
	}
	d, err := dispatcher.New()
	if err != nil {
		return nil, fmt.Errorf("corenet: creating dispatcher: %w", err)
	}
	d.TimeNow = cfg.TimeNow
	d.Logger = dispatcherLoggerAdapter{logger}

	sockopt.SuppressFatalWriteSignals()
	if cfg.FDSoftLimitTarget > 0 {
		if result, err := fdlimit.Raise(cfg.FDSoftLimitTarget); err != nil {
			logger.Warn("corenet: raising fd limit failed", "error", err)
		} else if !result.Achieved() {
			logger.Warn("corenet: fd limit below target", "target", cfg.FDSoftLimitTarget)
		}
	}

	c := &Core{
		Config:               cfg,
		Logger:               logger,
		TLSEngine:            tlsengine.New(nil, cfg.TimeNow),
		dispatcher:           d,
		schemes:              make(map[SchemeID]*SchemeDef),
		brokerScheme:         make(map[broker.ID]SchemeID),
		recentlyDisconnected: make(map[broker.ID]time.Time),
	}
	return c, nil
}

// dispatcherLoggerAdapter satisfies [dispatcher.Logger] with an [SLogger].
type dispatcherLoggerAdapter struct{ SLogger }

// Add registers def and returns its id. def.Scheme must be non-nil.
func (c *Core) Add(def *SchemeDef) (SchemeID, error) {
	if def == nil || def.Scheme == nil {
		return 0, fmt.Errorf("corenet: Add requires a non-nil scheme")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSchemeID++
	id := c.nextSchemeID
	c.schemes[id] = def
	return id, nil
}

// Remove drops one scheme (sid != 0) or every scheme (sid == 0), closing
// every broker each owns via [Scheme.Clear].
func (c *Core) Remove(sid SchemeID) {
	c.mu.Lock()
	var targets []*SchemeDef
	if sid == 0 {
		for id, def := range c.schemes {
			targets = append(targets, def)
			delete(c.schemes, id)
		}
	} else if def, ok := c.schemes[sid]; ok {
		targets = append(targets, def)
		delete(c.schemes, sid)
	}
	c.mu.Unlock()

	for _, def := range targets {
		def.Scheme.Each(func(b *broker.Broker) { c.closeBrokerSocket(b) })
		def.Scheme.Clear()
	}
}

// Start enters the reactor loop on the calling goroutine; it returns when
// Stop is called from another goroutine (or from a callback via Notify).
// Start is idempotent.
func (c *Core) Start() {
	c.ensureGCTimer()
	c.dispatcher.Start()
}

// Stop idempotently halts the reactor loop; it is the only Core method
// besides Notify that is safe to call from outside the reactor goroutine.
func (c *Core) Stop() {
	c.dispatcher.Stop()
}

// Working reports whether the reactor loop is currently running.
func (c *Core) Working() bool {
	return c.dispatcher.Working()
}

// SetTimeout schedules a one-shot callback, returning its id.
func (c *Core) SetTimeout(delay time.Duration, fn func()) dispatcher.TimerID {
	return c.dispatcher.SetTimeout(delay, func(dispatcher.TimerID) { fn() })
}

// SetInterval schedules a recurring callback, returning its id.
func (c *Core) SetInterval(interval time.Duration, fn func()) dispatcher.TimerID {
	return c.dispatcher.SetInterval(interval, func(dispatcher.TimerID) { fn() })
}

// ClearTimer cancels a pending timer. Idempotent.
func (c *Core) ClearTimer(id dispatcher.TimerID) {
	c.dispatcher.ClearTimer(id)
}

// Rebase stops the reactor if running, tears down and rebuilds the
// underlying multiplexer, and restarts it. Illegal on a Core bound to
// another Core's dispatcher (see [Core.Bind]).
func (c *Core) Rebase() error {
	working := c.dispatcher.Working()
	if working {
		c.dispatcher.Stop()
	}
	if err := c.dispatcher.Rebase(); err != nil {
		return err
	}
	if working {
		go c.dispatcher.Start()
	}
	return nil
}

// Bind adds other to this Core's list of bound Cores. It does not change
// which dispatcher other uses: other keeps its own dispatcher and is still
// driven by its own Start, not by this Core's reactor turns.
func (c *Core) Bind(other *Core) error {
	if other == nil {
		return fmt.Errorf("corenet: Bind requires a non-nil Core")
	}
	c.mu.Lock()
	c.bound = append(c.bound, other)
	c.mu.Unlock()
	return nil
}

// Unbind removes a Core previously bound with [Core.Bind].
func (c *Core) Unbind(other *Core) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, b := range c.bound {
		if b == other {
			c.bound = append(c.bound[:i], c.bound[i+1:]...)
			return
		}
	}
}

// Easily toggles easy-mode polling. Per the source's documented relation
// between easily() and frequency(ms>0), enabling easy mode with no
// frequency configured yet falls back to a 1ms poll sleep; disabling it
// returns the dispatcher to indefinite blocking.
func (c *Core) Easily(enabled bool) {
	if enabled {
		ms := int(c.Config.DispatcherFrequency / time.Millisecond)
		if ms <= 0 {
			ms = 1
		}
		c.dispatcher.Frequency(ms)
		return
	}
	c.dispatcher.Frequency(0)
}

// Freeze pauses (true) or resumes (false) event delivery without
// unregistering anything.
func (c *Core) Freeze(frozen bool) {
	c.dispatcher.Freeze(frozen)
}

// Frequency sets the easy-mode poll sleep in milliseconds; ms>0 implies
// easy mode, ms==0 restores indefinite blocking.
func (c *Core) Frequency(ms int) {
	c.dispatcher.Frequency(ms)
}

// Notify posts a thread-safe wakeup to the reactor; safe from any
// goroutine, including ones other than the one that called Start.
func (c *Core) Notify(payload uint64) error {
	return c.dispatcher.Notify(payload)
}

// ensureGCTimer arms the recurring sweep that purges broker ids from the
// recently-disconnected set once [Config.RecentlyDisconnectedTTL] elapses,
// so the set does not grow without bound across a long-lived Core.
func (c *Core) ensureGCTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gcTimerSet {
		return
	}
	c.gcTimerSet = true
	interval := 3 * time.Second
	c.gcTimer = c.dispatcher.SetInterval(interval, func(dispatcher.TimerID) {
		c.sweepRecentlyDisconnected()
	})
}

func (c *Core) sweepRecentlyDisconnected() {
	cutoff := c.Config.TimeNow().Add(-c.Config.RecentlyDisconnectedTTL)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, at := range c.recentlyDisconnected {
		if at.Before(cutoff) {
			delete(c.recentlyDisconnected, id)
		}
	}
}

// RecentlyDisconnected reports whether bid closed within the last
// [Config.RecentlyDisconnectedTTL].
func (c *Core) RecentlyDisconnected(bid broker.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.recentlyDisconnected[bid]
	return ok
}

func (c *Core) allocateBrokerID() broker.ID {
	return broker.ID(c.nextBrokerID.Add(1))
}
