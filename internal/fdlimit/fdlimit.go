// SPDX-License-Identifier: GPL-3.0-or-later

// Package fdlimit raises the process's open-file-descriptor ceiling on
// startup and reports the effective limit it ended up with.
//
// Failure to raise the limit is never fatal: callers record the returned
// [Result] and continue with whatever ceiling the kernel already granted.
package fdlimit

// Result reports the outcome of a [Raise] call.
type Result struct {
	// Soft is the soft limit in effect after [Raise] returned.
	Soft uint64

	// Hard is the hard (ceiling) limit observed.
	Hard uint64

	// Target is the soft limit the caller asked for.
	Target uint64

	// Warning is a human-readable remediation hint, set when Soft < Target
	// because the hard limit capped the raise (e.g. "raise via ulimit -n or
	// /etc/security/limits.conf").
	Warning string
}

// Achieved reports whether the soft limit reached the requested target.
func (r Result) Achieved() bool {
	return r.Soft >= r.Target
}
