//go:build !linux

// SPDX-License-Identifier: GPL-3.0-or-later

package corenet

// Boost is a no-op outside Linux: the /proc/sys tuning knobs it applies on
// Linux have no equivalent reached via a plain file write on other
// platforms.
func (c *Core) Boost() {}
