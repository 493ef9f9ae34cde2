// SPDX-License-Identifier: GPL-3.0-or-later

package corenet

import (
	"context"
	"net"
	"net/netip"
)

// Resolver is the DNS collaborator [Core.Open] consults when a scheme's
// dial target is a hostname rather than a literal address.
//
// The resolve subpackage's [resolve.Resolver] (DNS-over-UDP/TCP/TLS/HTTPS)
// satisfies this interface without Core needing to import it, since the
// resolve package itself depends on this package for [Config] and [Dialer].
type Resolver interface {
	LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error)
}

// defaultResolver is the fallback used when a [Config] or [SchemeDef] does
// not set Resolver: plain [net.DefaultResolver], mirroring what the resolve
// package's own default does without creating an import cycle back to it.
type defaultResolver struct{}

var _ Resolver = defaultResolver{}

func (defaultResolver) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}
