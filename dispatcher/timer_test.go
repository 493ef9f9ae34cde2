// SPDX-License-Identifier: GPL-3.0-or-later

package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerTableFiresInDeadlineOrder(t *testing.T) {
	now := time.Unix(0, 0)
	table := newTimerTable(func() time.Time { return now })

	var order []TimerID
	a := table.setTimeout(30*time.Millisecond, func(id TimerID) { order = append(order, id) })
	b := table.setTimeout(10*time.Millisecond, func(id TimerID) { order = append(order, id) })
	c := table.setTimeout(20*time.Millisecond, func(id TimerID) { order = append(order, id) })

	now = now.Add(40 * time.Millisecond)
	table.fireDue()

	assert.Equal(t, []TimerID{b, c, a}, order)
}

// fireDue reschedules a stale interval timer from the current time rather
// than catching up on missed ticks: a long freeze or a slow turn collapses
// to a single firing, not a burst.
func TestTimerTableIntervalReschedulesFromNow(t *testing.T) {
	now := time.Unix(0, 0)
	table := newTimerTable(func() time.Time { return now })

	var fireCount int
	table.setInterval(10*time.Millisecond, func(TimerID) { fireCount++ })

	now = now.Add(35 * time.Millisecond)
	table.fireDue()

	assert.Equal(t, 1, fireCount)
	deadline, ok := table.nextDeadline()
	require.True(t, ok)
	assert.True(t, deadline.After(now))
}

func TestTimerTableClearIsIdempotent(t *testing.T) {
	table := newTimerTable(time.Now)
	id := table.setTimeout(time.Hour, func(TimerID) {})
	table.clear(id)
	table.clear(id) // second clear must not panic

	_, ok := table.nextDeadline()
	assert.False(t, ok)
}

func TestTimerTableCancelAllDropsPending(t *testing.T) {
	table := newTimerTable(time.Now)
	table.setTimeout(time.Hour, func(TimerID) {})
	table.setInterval(time.Hour, func(TimerID) {})

	table.cancelAll()

	_, ok := table.nextDeadline()
	assert.False(t, ok)
}
