// SPDX-License-Identifier: GPL-3.0-or-later

package resolve_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"slices"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/runtimex"
	"github.com/corenetio/corenet"
	"github.com/corenetio/corenet/resolve"
	"github.com/miekg/dns"
)

// This example shows how to compose a DNS-over-UDP pipeline that
// resolves a domain name using Google's public DNS server.
func Example_dnsOverUDP() {
	// Create context with overall timeout for the entire operation.
	// Caller controls timeout externally - corenet never modifies the context.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Create a config and logger with a span ID for correlating log entries
	cfg := corenet.NewConfig()
	spanID := corenet.NewSpanID()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("spanID", spanID)

	// Create pipeline for establishing a DNS-over-UDP connection.
	// CancelWatchFunc binds context lifecycle to connection lifecycle:
	// when context is done (timeout, cancel, signal), connection closes.
	epntOp := corenet.NewEndpointFunc(netip.MustParseAddrPort("8.8.8.8:53"))

	connectOp := corenet.NewConnectFunc(cfg, "udp", logger)

	observeOp := corenet.NewObserveConnFunc(cfg, logger)

	autoCancelOp := corenet.NewCancelWatchFunc()

	wrapOp := resolve.NewDNSOverUDPConnFunc(cfg, logger)

	dialPipe := corenet.Compose5(epntOp, connectOp, observeOp, autoCancelOp, wrapOp)

	// Connect and wrap in DNSOverUDPConn (which owns the underlying connection)
	dnsConn := runtimex.PanicOnError1(dialPipe.Call(ctx, corenet.Unit{}))
	defer dnsConn.Close()

	// Perform the DNS exchange
	dnsQuery := dnscodec.NewQuery("dns.google", dns.TypeA)
	dnsResp := runtimex.PanicOnError1(dnsConn.Exchange(ctx, dnsQuery))

	// Print the results
	addrs := runtimex.PanicOnError1(dnsResp.RecordsA())
	slices.Sort(addrs)
	fmt.Printf("%+v\n", addrs)

	// Output:
	// [8.8.4.4 8.8.8.8]
}
