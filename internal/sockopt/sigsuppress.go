// SPDX-License-Identifier: GPL-3.0-or-later

package sockopt

import (
	"os/signal"
	"syscall"
)

// SuppressFatalWriteSignals arranges for writes to a half-closed socket and
// for SIGILL to stop the default process-ending action: SIGPIPE and SIGILL
// are ignored process-wide on every platform. SetNoSigPipe (Darwin/BSD) sets
// SO_NOSIGPIPE on a single socket; this package's callers do not call it.
func SuppressFatalWriteSignals() {
	signal.Ignore(syscall.SIGPIPE, syscall.SIGILL)
}
