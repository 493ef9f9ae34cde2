// SPDX-License-Identifier: GPL-3.0-or-later

// Package sockopt exposes pure, static socket-tuning operations used by the
// dispatcher when it accepts or dials raw non-blocking sockets: toggling
// SO_REUSEADDR, TCP_NODELAY, SO_KEEPALIVE parameters, sizing SO_SNDBUF and
// SO_RCVBUF from human-readable bandwidth strings, and suppressing SIGPIPE.
//
// Every operation reports failure via its return value; none of them abort
// the process or log on their own.
package sockopt

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBandwidth parses a human bandwidth string ("64kbps", "1Mbps",
// "2.5Gbps", "500bps") into a byte count suitable for SO_SNDBUF/SO_RCVBUF.
func ParseBandwidth(s string) (int, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	unit := 1.0
	var numPart string
	switch {
	case strings.HasSuffix(lower, "gbps"):
		unit = 1_000_000_000
		numPart = s[:len(s)-4]
	case strings.HasSuffix(lower, "mbps"):
		unit = 1_000_000
		numPart = s[:len(s)-4]
	case strings.HasSuffix(lower, "kbps"):
		unit = 1_000
		numPart = s[:len(s)-4]
	case strings.HasSuffix(lower, "bps"):
		numPart = s[:len(s)-3]
	default:
		return 0, fmt.Errorf("sockopt: invalid bandwidth string %q: missing unit suffix", s)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(numPart), 64)
	if err != nil {
		return 0, fmt.Errorf("sockopt: invalid bandwidth string %q: %w", s, err)
	}

	bits := value * unit
	return int(bits / 8), nil
}

// KeepAliveParams bundles the TCP keep-alive tuning knobs: Idle is the
// inactivity window before the first probe, Interval is the gap between
// probes, and Count is the number of unanswered probes before the kernel
// declares the connection dead.
type KeepAliveParams struct {
	Idle     int
	Interval int
	Count    int
}
