//go:build linux || darwin || freebsd || netbsd || dragonfly || openbsd

// SPDX-License-Identifier: GPL-3.0-or-later

package corenet_test

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/corenetio/corenet"
	"github.com/corenetio/corenet/resolve"
	"github.com/corenetio/corenet/scheme"
	"github.com/stretchr/testify/require"
)

// TestClientOpenUsesConfiguredServerResolver wires a real
// [resolve.ServerResolver] into [corenet.Config.Resolver] and drives a
// client scheme's Open call through it, proving the resolve subpackage's
// DNS-over-UDP pipeline is actually consulted by Core rather than sitting
// unreferenced. The target DNS server is a local UDP socket that never
// answers, so the dial pipeline's context-bound cancellation (the
// documented purpose of [corenet.CancelWatchFunc]) is what unblocks the
// exchange: Open is expected to fail once ctx expires, not to hang.
func TestClientOpenUsesConfiguredServerResolver(t *testing.T) {
	blackhole, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blackhole.Close()

	serverAddr := netip.MustParseAddrPort(blackhole.LocalAddr().String())

	cfg := corenet.NewConfig()
	cfg.Resolver = resolve.NewServerResolver(cfg, serverAddr, corenet.DefaultSLogger())

	c, err := corenet.New(cfg, nil)
	require.NoError(t, err)

	clientScheme := scheme.New("resolver-backed-client")
	clientSID, err := c.Add(&corenet.SchemeDef{
		Scheme:   clientScheme,
		Network:  "tcp",
		DialHost: "corenet.invalid",
		DialPort: 9,
	})
	require.NoError(t, err)

	go c.Start()
	defer c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Open(ctx, clientSID) }()

	select {
	case openErr := <-done:
		require.Error(t, openErr, "resolving through a non-answering DNS server must not silently succeed")
	case <-time.After(3 * time.Second):
		t.Fatal("Open never returned: ServerResolver's context-bound cancellation did not unblock the exchange")
	}
}
