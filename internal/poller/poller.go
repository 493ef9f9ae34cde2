// SPDX-License-Identifier: GPL-3.0-or-later

// Package poller wraps the platform-native readiness multiplexer (epoll on
// Linux, kqueue on the BSDs/Darwin, event ports on Solaris, a polling
// fallback on Windows) behind one small interface the dispatcher drives.
package poller

// Interest is a bitmask of the readiness conditions a registered fd should
// be watched for.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// Event reports one fd's readiness as observed by a single Wait call.
type Event struct {
	FD       int
	Readable bool
	Writable bool
	Error    bool
}

// Poller multiplexes readiness across registered file descriptors. It is
// not safe for concurrent use by more than one goroutine; the dispatcher
// owns it exclusively and drives it from its single reactor thread.
type Poller interface {
	// Add registers fd for the given interest set.
	Add(fd int, interest Interest) error

	// Modify changes fd's interest set.
	Modify(fd int, interest Interest) error

	// Remove stops watching fd.
	Remove(fd int) error

	// Wait blocks until at least one registered fd is ready, the notifier
	// fd becomes readable, or timeoutMs elapses (a negative value blocks
	// indefinitely, 0 polls without blocking). It appends ready events to
	// dst and returns the extended slice.
	Wait(dst []Event, timeoutMs int) ([]Event, error)

	// Close releases the underlying multiplexer handle.
	Close() error
}
