// SPDX-License-Identifier: GPL-3.0-or-later

// Package dispatcher implements the single-threaded reactor loop: it wraps
// a platform-native readiness multiplexer (see [internal/poller]) and a
// cross-platform wakeup notifier (see [internal/notify]), and drives
// registered fd callbacks and a timer table from one goroutine.
package dispatcher

import (
	"sync"
	"time"

	"github.com/corenetio/corenet/internal/notify"
	"github.com/corenetio/corenet/internal/poller"
)

// Handlers is the set of callbacks a registrant supplies for one fd.
// OnReadable and OnWritable are invoked at most once per reactor turn for
// the corresponding readiness edge; OnError is invoked once and the fd is
// expected to be removed by the caller in response.
type Handlers struct {
	OnReadable func()
	OnWritable func()
	OnError    func()
}

// Logger abstracts the subset of [corenet.SLogger] the dispatcher needs,
// avoiding a dependency cycle with the root package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher is the single-threaded reactor described by the package
// overview. It is not safe for concurrent use except for the thread-safe
// entry points explicitly documented as such (Notify, Kick, Stop).
type Dispatcher struct {
	Logger  Logger
	TimeNow func() time.Time

	mu       sync.Mutex
	poll     poller.Poller
	notifier notify.Notifier
	handlers map[int]Handlers
	timers   *timerTable

	initialized bool
	working     bool
	frozen      bool
	easyMode    bool
	virt        bool
	freqMs      int

	doneCh   chan struct{}
	rebaseMu sync.Mutex
}

// New creates a Dispatcher owning its own poller and notifier. Call Start
// to enter the reactor loop.
func New() (*Dispatcher, error) {
	d := &Dispatcher{
		Logger:   noopLogger{},
		TimeNow:  time.Now,
		handlers: make(map[int]Handlers),
		freqMs:   -1, // blocking mode by default
	}
	if err := d.initMultiplexer(); err != nil {
		return nil, err
	}
	d.timers = newTimerTable(d.TimeNow)
	return d, nil
}

// NewVirtual creates a Dispatcher that shares an externally owned poller
// and notifier instead of constructing its own, per the "virt" construction
// mode used to co-host a client Core's dispatcher inside a server Core.
func NewVirtual(poll poller.Poller, notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{
		Logger:   noopLogger{},
		TimeNow:  time.Now,
		handlers: make(map[int]Handlers),
		freqMs:   -1,
		poll:     poll,
		notifier: notifier,
		virt:     true,
		timers:   newTimerTable(time.Now),
	}
}

func (d *Dispatcher) initMultiplexer() error {
	p, err := poller.New()
	if err != nil {
		return err
	}
	n, err := notify.New()
	if err != nil {
		_ = p.Close()
		return err
	}
	if err := p.Add(n.FD(), poller.Readable); err != nil {
		_ = p.Close()
		_ = n.Close()
		return err
	}
	d.poll = p
	d.notifier = n
	d.initialized = true
	return nil
}

// RegisterFD begins watching fd for interest, invoking h's callbacks from
// the reactor thread as readiness is observed.
func (d *Dispatcher) RegisterFD(fd int, interest poller.Interest, h Handlers) error {
	d.mu.Lock()
	d.handlers[fd] = h
	d.mu.Unlock()
	return d.poll.Add(fd, interest)
}

// ModifyFD changes the interest set for a previously registered fd.
func (d *Dispatcher) ModifyFD(fd int, interest poller.Interest) error {
	return d.poll.Modify(fd, interest)
}

// UnregisterFD stops watching fd.
func (d *Dispatcher) UnregisterFD(fd int) error {
	d.mu.Lock()
	delete(d.handlers, fd)
	d.mu.Unlock()
	return d.poll.Remove(fd)
}

// SetTimeout schedules a one-shot callback after d elapses, firing on the
// reactor thread.
func (d *Dispatcher) SetTimeout(delay time.Duration, callback func(TimerID)) TimerID {
	return d.timers.setTimeout(delay, callback)
}

// SetInterval schedules a recurring callback, firing on the reactor thread
// every interval.
func (d *Dispatcher) SetInterval(interval time.Duration, callback func(TimerID)) TimerID {
	return d.timers.setInterval(interval, callback)
}

// ClearTimer cancels a pending timer. Idempotent.
func (d *Dispatcher) ClearTimer(id TimerID) {
	d.timers.clear(id)
}

// Frequency enables easy_mode polling with the given millisecond delay when
// ms > 0, and disables it (returning to indefinite blocking between turns)
// when ms == 0.
func (d *Dispatcher) Frequency(ms int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ms > 0 {
		d.easyMode = true
		d.freqMs = ms
	} else {
		d.easyMode = false
		d.freqMs = -1
	}
}

// Freeze pauses (true) or resumes (false) event delivery without tearing
// down registered events.
func (d *Dispatcher) Freeze(frozen bool) {
	d.mu.Lock()
	d.frozen = frozen
	d.mu.Unlock()
	d.Kick()
}

// Working reports whether the reactor loop is currently running.
func (d *Dispatcher) Working() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.working
}

// Kick forces the underlying multiplexer call to return immediately,
// making the loop re-evaluate its working/frozen state promptly.
func (d *Dispatcher) Kick() {
	d.mu.Lock()
	notifier := d.notifier
	d.mu.Unlock()
	if notifier != nil {
		_ = notifier.Notify(0)
	}
}

// Notify posts a user wakeup payload to the dispatcher; it is observed no
// earlier than the reactor turn following this call. Safe from any thread.
func (d *Dispatcher) Notify(payload uint64) error {
	d.mu.Lock()
	notifier := d.notifier
	d.mu.Unlock()
	if notifier == nil {
		return nil
	}
	return notifier.Notify(payload)
}

// Start transitions the dispatcher to working and enters the reactor loop
// on the calling goroutine, returning when Stop is called. Start is
// idempotent: calling it while already working is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.working {
		d.mu.Unlock()
		return
	}
	d.working = true
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	d.loop()
}

// Stop transitions the dispatcher to not-working and wakes the loop so it
// observes the transition; it blocks until the loop has returned from
// Start. Stop is idempotent.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.working {
		d.mu.Unlock()
		return
	}
	d.working = false
	done := d.doneCh
	d.mu.Unlock()

	d.Kick()
	if done != nil {
		<-done
	}
}

// Rebase tears down the underlying multiplexer and notifier and
// reinitializes them. It is only legal between Stop and Start; it panics
// otherwise to surface a programming error immediately rather than corrupt
// reactor state.
func (d *Dispatcher) Rebase() error {
	d.rebaseMu.Lock()
	defer d.rebaseMu.Unlock()

	if d.Working() {
		panic("dispatcher: Rebase called while working")
	}
	if d.virt {
		panic("dispatcher: Rebase called on a virtual dispatcher")
	}

	d.mu.Lock()
	old := d.poll
	oldNotifier := d.notifier
	d.mu.Unlock()

	if err := d.initMultiplexer(); err != nil {
		return err
	}
	if old != nil {
		_ = old.Close()
	}
	if oldNotifier != nil {
		_ = oldNotifier.Close()
	}
	return nil
}

func (d *Dispatcher) loop() {
	events := make([]poller.Event, 0, 256)
	for {
		d.mu.Lock()
		working := d.working
		frozen := d.frozen
		d.mu.Unlock()
		if !working {
			break
		}
		if frozen {
			time.Sleep(time.Millisecond)
			continue
		}

		timeoutMs := d.turnTimeoutMs()
		var err error
		events, err = d.poll.Wait(events[:0], timeoutMs)
		if err != nil {
			d.Logger.Error("dispatcher: poll wait failed", "error", err)
			continue
		}

		d.dispatchTurn(events)
		d.timers.fireDue()

		d.mu.Lock()
		freqMs := d.freqMs
		d.mu.Unlock()
		if freqMs > 0 {
			time.Sleep(time.Duration(freqMs) * time.Millisecond)
		}
	}

	d.timers.cancelAll()
	d.mu.Lock()
	done := d.doneCh
	d.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// turnTimeoutMs computes how long poll.Wait should block: indefinitely when
// easy_mode is off and no timer is pending, freqMs in easy_mode, or the
// delay until the next timer deadline, whichever is sooner.
func (d *Dispatcher) turnTimeoutMs() int {
	d.mu.Lock()
	easyMode := d.easyMode
	freqMs := d.freqMs
	d.mu.Unlock()

	timeoutMs := -1
	if easyMode && freqMs > 0 {
		timeoutMs = freqMs
	}

	if deadline, ok := d.timers.nextDeadline(); ok {
		remaining := deadline.Sub(d.TimeNow())
		remainingMs := int(remaining / time.Millisecond)
		if remainingMs < 0 {
			remainingMs = 0
		}
		if timeoutMs < 0 || remainingMs < timeoutMs {
			timeoutMs = remainingMs
		}
	}
	return timeoutMs
}

// dispatchTurn delivers every ready event against the handler snapshot
// taken at the start of the turn, so a broker closed by one callback cannot
// receive a second callback within the same turn even if its fd number is
// reused later in the same batch.
func (d *Dispatcher) dispatchTurn(events []poller.Event) {
	d.mu.Lock()
	snapshot := make(map[int]Handlers, len(d.handlers))
	for fd, h := range d.handlers {
		snapshot[fd] = h
	}
	notifier := d.notifier
	d.mu.Unlock()

	delivered := make(map[int]bool, len(events))
	for _, ev := range events {
		if notifier != nil && ev.FD == notifier.FD() {
			_, _ = notifier.Event()
			continue
		}
		if delivered[ev.FD] {
			continue
		}
		h, ok := snapshot[ev.FD]
		if !ok {
			continue
		}
		if ev.Error && h.OnError != nil {
			h.OnError()
			delivered[ev.FD] = true
			continue
		}
		if ev.Readable && h.OnReadable != nil {
			h.OnReadable()
		}
		if ev.Writable && h.OnWritable != nil {
			h.OnWritable()
		}
		delivered[ev.FD] = true
	}
}
