// SPDX-License-Identifier: GPL-3.0-or-later

// Package notify implements the cross-platform user-space wakeup primitive
// the dispatcher waits on alongside socket readiness: a file descriptor (or
// descriptor pair) that becomes readable when Notify is called from any
// thread, and a consumer that pulls exactly one pending payload per Event
// call.
package notify

// Notifier is a thread-safe wakeup primitive. Notify never blocks longer
// than a single syscall and is safe to call from any goroutine, including
// from within a signal handler context on platforms where that matters.
// Event is only ever called by the dispatcher goroutine after the fd
// reported by FD becomes readable, and consumes exactly one payload.
type Notifier interface {
	// FD returns the descriptor the dispatcher polls for readability.
	FD() int

	// Notify makes FD readable and queues payload for a subsequent Event.
	Notify(payload uint64) error

	// Event consumes and returns one pending payload. It must only be
	// called when FD is readable; it returns 0 if no payload is pending.
	Event() (uint64, error)

	// Close releases the underlying descriptor(s).
	Close() error
}
