//go:build openbsd

// SPDX-License-Identifier: GPL-3.0-or-later

package sockopt

// OpenBSD exposes no setsockopt knobs for the keep-alive idle delay, probe
// interval, or probe count: only SO_KEEPALIVE itself. These are all no-ops.

func setKeepAliveIdle(fd int, seconds int) error {
	return nil
}

func setKeepAliveInterval(fd int, seconds int) error {
	return nil
}

func setKeepAliveCount(fd int, count int) error {
	return nil
}
