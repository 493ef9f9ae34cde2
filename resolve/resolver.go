// SPDX-License-Identifier: GPL-3.0-or-later

package resolve

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/corenetio/corenet"
	"github.com/miekg/dns"
)

// newAQuery builds the DNS query used by [*ServerResolver.LookupAddrs].
func newAQuery(host string) *dnscodec.Query {
	return dnscodec.NewQuery(host, dns.TypeA)
}

// Resolver is the DNS collaborator consulted by [corenet.Core] when a
// client scheme's [corenet.SchemeDef] names a host to dial. A SchemeDef
// whose Resolver field is set (for example to a [*ServerResolver]) uses
// that resolver instead of the Config's default.
type Resolver interface {
	// LookupAddrs resolves host to a list of addresses.
	LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error)
}

// NewDefaultResolver returns a [Resolver] backed by [net.DefaultResolver].
//
// It performs the same "ip" lookup through [net.DefaultResolver] as the
// default resolver [corenet.Core] falls back to when neither the
// [corenet.SchemeDef] nor the Config names a resolver.
func NewDefaultResolver() Resolver {
	return &stdlibResolver{resolver: net.DefaultResolver}
}

type stdlibResolver struct {
	resolver *net.Resolver
}

var _ Resolver = &stdlibResolver{}

// LookupAddrs implements [Resolver].
func (r *stdlibResolver) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	ipAddrs, err := r.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	return ipAddrs, nil
}

// ServerResolver is a [Resolver] that queries a single configured DNS server
// over UDP. A truncated UDP response is not retried over TCP.
//
// Construct via [NewServerResolver]. The zero value is not ready to use.
type ServerResolver struct {
	// Config is the shared configuration used to build dial pipelines.
	Config *corenet.Config

	// Logger is the [corenet.SLogger] to use for structured logging.
	Logger corenet.SLogger

	// ServerAddr is the DNS server endpoint (e.g. "8.8.8.8:53").
	ServerAddr netip.AddrPort

	// TimeNow is the function to get the current time (configurable for testing).
	TimeNow func() time.Time
}

var _ Resolver = &ServerResolver{}

// NewServerResolver returns a new [*ServerResolver] querying serverAddr.
func NewServerResolver(cfg *corenet.Config, serverAddr netip.AddrPort, logger corenet.SLogger) *ServerResolver {
	return &ServerResolver{
		Config:     cfg,
		Logger:     logger,
		ServerAddr: serverAddr,
		TimeNow:    cfg.TimeNow,
	}
}

// LookupAddrs implements [Resolver] by performing a DNS-over-UDP exchange
// for the A records of host. The dial pipeline observes I/O for structured
// logging and ties the connection's lifetime to ctx, so a caller-imposed
// deadline aborts an in-flight exchange instead of leaking it.
func (r *ServerResolver) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	spanID := corenet.NewSpanID()
	r.Logger.Info("dnsLookupStart",
		slog.String("spanID", spanID),
		slog.String("host", host),
		slog.String("server", r.ServerAddr.String()),
	)

	epntOp := corenet.NewEndpointFunc(r.ServerAddr)
	connectOp := corenet.NewConnectFunc(r.Config, "udp", r.Logger)
	observeOp := corenet.NewObserveConnFunc(r.Config, r.Logger)
	autoCancelOp := corenet.NewCancelWatchFunc()
	wrapOp := NewDNSOverUDPConnFunc(r.Config, r.Logger)
	dialPipe := corenet.Compose5(epntOp, connectOp, observeOp, autoCancelOp, wrapOp)

	dnsConn, err := dialPipe.Call(ctx, corenet.Unit{})
	if err != nil {
		r.Logger.Warn("dnsLookupDial failed", slog.String("spanID", spanID), slog.Any("err", err))
		return nil, err
	}
	defer dnsConn.Close()

	query := newAQuery(host)
	resp, err := dnsConn.Exchange(ctx, query)
	if err != nil {
		r.Logger.Warn("dnsLookupExchange failed", slog.String("spanID", spanID), slog.Any("err", err))
		return nil, err
	}
	addrsA, err := resp.RecordsA()
	if err != nil {
		return nil, err
	}

	var out []netip.Addr
	for _, addr := range addrsA {
		parsed, err := netip.ParseAddr(addr)
		if err == nil {
			out = append(out, parsed)
		}
	}
	r.Logger.Info("dnsLookupDone", slog.String("spanID", spanID), slog.Int("addrsCount", len(out)))
	return out, nil
}
