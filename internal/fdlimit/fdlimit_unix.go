//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later

package fdlimit

import "golang.org/x/sys/unix"

// Raise raises the process's RLIMIT_NOFILE soft limit to min(target, hard).
//
// If the hard limit is below target, Raise still sets the soft limit to the
// hard limit and returns a non-empty [Result.Warning] instead of an error:
// the caller always gets the best ceiling currently available.
func Raise(target uint64) (Result, error) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return Result{}, err
	}

	want := target
	if rlimit.Max > 0 && want > rlimit.Max {
		want = rlimit.Max
	}

	result := Result{Target: target, Hard: rlimit.Max}
	if rlimit.Cur >= want {
		result.Soft = rlimit.Cur
		if rlimit.Cur < target {
			result.Warning = "hard nofile limit below target; raise it via /etc/security/limits.conf or systemd LimitNOFILE"
		}
		return result, nil
	}

	newLimit := unix.Rlimit{Cur: want, Max: rlimit.Max}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &newLimit); err != nil {
		result.Soft = rlimit.Cur
		result.Warning = "raise the nofile limit via ulimit -n or /etc/security/limits.conf"
		return result, nil
	}

	result.Soft = want
	if want < target {
		result.Warning = "hard nofile limit below target; raise it via /etc/security/limits.conf or systemd LimitNOFILE"
	}
	return result, nil
}
