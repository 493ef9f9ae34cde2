// SPDX-License-Identifier: GPL-3.0-or-later

// Package tlsengine provides a broker-facing TLS/DTLS context. It is
// polymorphic over a broker's transport kind and builds the ALPN list from
// a scheme's preferred application protocol. It performs no handshake
// itself, and Core's socket paths do not call it: Core holds an [Engine]
// (Core.TLSEngine), but brokers opened by Core carry plain sockets.
package tlsengine

import (
	"crypto/tls"
	"time"

	"github.com/quic-go/quic-go/http3"
)

// Transport selects the wire-level transport a broker's engine Context
// wraps: a plain socket, a TLS-over-TCP session, or a DTLS-over-UDP
// session.
type Transport uint8

const (
	Raw Transport = iota
	TLS
	DTLS
)

// Protocol is the scheme's preferred application protocol, used to build
// the ALPN offer list for TLS/DTLS handshakes.
type Protocol uint8

const (
	HTTP1_1 Protocol = iota
	HTTP2
	HTTP3
)

// alpnFor maps a Protocol to the ALPN token(s) a client offers for it.
// HTTP3's token comes from quic-go/http3 rather than being hand-copied,
// so engine construction stays in lockstep with whatever ALPN identifier
// the QUIC stack expects even though the QUIC transport itself is out of
// scope here.
func alpnFor(p Protocol) []string {
	switch p {
	case HTTP2:
		return []string{"h2", "http/1.1"}
	case HTTP3:
		return []string{http3.NextProtoH3}
	default:
		return []string{"http/1.1"}
	}
}

// Context is the opaque handle Init returns; Timeout and Clear operate on
// it without the caller needing to know its internal shape.
type Context struct {
	transport  Transport
	tlsConfig  *tls.Config
	serverName string
	createdAt  time.Time
}

// Engine builds and tears down per-broker TLS/DTLS contexts. Certificate
// verification is configured once on the Engine and applied to every
// Context it creates; per-broker state (server name, transport, ALPN
// offer) is supplied at Init time.
type Engine struct {
	// VerifyConfig is cloned into every Context's *tls.Config. A nil value
	// means the zero value of *tls.Config (system roots, full verification).
	VerifyConfig *tls.Config

	// TimeNow is used to stamp Context creation and to drive [*tls.Config]'s
	// Time field, matching the root package's TLSHandshakeFunc convention.
	TimeNow func() time.Time
}

// New creates an Engine. A nil verifyConfig means use Go's default
// certificate verification.
func New(verifyConfig *tls.Config, timeNow func() time.Time) *Engine {
	if timeNow == nil {
		timeNow = time.Now
	}
	return &Engine{VerifyConfig: verifyConfig, TimeNow: timeNow}
}

// Init builds a new Context for a broker dialing or accepting at url,
// using transport and the given protocol preference to compute the ALPN
// offer. For Raw transport the returned Context carries no TLS config.
func (e *Engine) Init(url string, transport Transport, protocol Protocol) *Context {
	ctx := &Context{transport: transport, serverName: url, createdAt: e.TimeNow()}
	if transport == Raw {
		return ctx
	}

	base := e.VerifyConfig
	if base == nil {
		base = &tls.Config{}
	}
	cfg := base.Clone()
	cfg.ServerName = url
	cfg.NextProtos = alpnFor(protocol)
	cfg.Time = e.TimeNow
	ctx.tlsConfig = cfg
	return ctx
}

// TLSConfig returns ctx's TLS configuration, or nil for a Raw context.
func (c *Context) TLSConfig() *tls.Config {
	return c.tlsConfig
}

// Transport reports which wire-level transport ctx was built for.
func (c *Context) Transport() Transport {
	return c.transport
}

// Timeout reports the handshake deadline for ctx given a budget in
// milliseconds; DTLS contexts get the same wall-clock treatment as TLS
// here since the broker's per-direction watchdog, not this engine, is
// where UDP/DTLS record-level inactivity is actually tracked (spec's
// per-broker timeout semantics).
func (c *Context) Timeout(ms int) time.Time {
	return c.createdAt.Add(time.Duration(ms) * time.Millisecond)
}

// Clear releases ctx's resources. A *Context holds no OS resources itself
// (the broker owns the underlying socket), so Clear only drops its
// TLS config reference, making ctx safe to discard.
func (c *Context) Clear() {
	c.tlsConfig = nil
}
