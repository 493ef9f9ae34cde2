//go:build linux

// SPDX-License-Identifier: GPL-3.0-or-later

package corenet

import "os"

// boostKnobs lists the /proc/sys files Boost tunes and the value each is
// set to, mirroring the original reactor's Core::boost() without shelling
// out to sysctl.
var boostKnobs = []struct {
	path  string
	value string
}{
	{"/proc/sys/net/core/somaxconn", "4096"},
	{"/proc/sys/net/ipv4/tcp_window_scaling", "1"},
	{"/proc/sys/net/core/rmem_max", "16777216"},
	{"/proc/sys/net/core/wmem_max", "16777216"},
}

// Boost applies a handful of OS-level networking tunables via /proc/sys
// writes: a larger listen backlog, TCP window scaling, and larger socket
// buffer ceilings. It requires root (or CAP_NET_ADMIN); failures are
// expected when unprivileged and are logged at Debug rather than returned,
// since a reactor should run the same either way, just slower under load.
func (c *Core) Boost() {
	for _, knob := range boostKnobs {
		if err := os.WriteFile(knob.path, []byte(knob.value), 0o644); err != nil {
			c.Logger.Debug("corenet: boost tuning failed", "path", knob.path, "error", err)
		}
	}
}
