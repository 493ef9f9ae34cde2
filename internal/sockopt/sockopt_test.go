// SPDX-License-Identifier: GPL-3.0-or-later

package sockopt_test

import (
	"testing"

	"github.com/corenetio/corenet/internal/sockopt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBandwidthUnits(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"500bps", 62},
		{"64kbps", 8000},
		{"1Mbps", 125000},
		{"2.5Gbps", 312500000},
	}
	for _, tc := range cases {
		got, err := sockopt.ParseBandwidth(tc.input)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseBandwidthRejectsMissingUnit(t *testing.T) {
	_, err := sockopt.ParseBandwidth("12345")
	assert.Error(t, err)
}

func TestParseBandwidthRejectsGarbageNumber(t *testing.T) {
	_, err := sockopt.ParseBandwidth("xkbps")
	assert.Error(t, err)
}

func TestKeepAliveParamsZeroValue(t *testing.T) {
	var params sockopt.KeepAliveParams
	assert.Zero(t, params.Idle)
	assert.Zero(t, params.Interval)
	assert.Zero(t, params.Count)
}
