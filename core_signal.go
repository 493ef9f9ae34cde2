// SPDX-License-Identifier: GPL-3.0-or-later

package corenet

import (
	"fmt"

	"github.com/corenetio/corenet/internal/sigtrap"
)

// SignalInterception enables or disables the fatal-signal handler. When a
// trapped signal arrives while enabled, Core invokes CrashCallback if set
// (mirroring the cluster master's behavior); otherwise it re-raises via
// panic so the process terminates the way it would have without
// interception, after logging which signal fired. Both run on the signal
// handler's goroutine, not on the reactor goroutine.
func (c *Core) SignalInterception(enabled bool) {
	c.mu.Lock()
	already := c.signalIntercepted
	c.signalIntercepted = enabled
	c.mu.Unlock()

	if enabled == already {
		return
	}
	if !enabled {
		c.mu.Lock()
		stop := c.stopSignalTrap
		c.stopSignalTrap = nil
		c.mu.Unlock()
		if stop != nil {
			stop()
		}
		return
	}

	stop := sigtrap.Start(func(h sigtrap.Handle) {
		_ = c.dispatcher.Notify(0) // wake the reactor before handling the signal
		if c.CrashCallback != nil {
			c.CrashCallback(h.Name)
			return
		}
		c.Logger.Error("corenet: unhandled fatal signal, terminating", "signal", h.Name)
		panic(fmt.Sprintf("corenet: unhandled signal %s", h.Name))
	})
	c.mu.Lock()
	c.stopSignalTrap = stop
	c.mu.Unlock()
}
