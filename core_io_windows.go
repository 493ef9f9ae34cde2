//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package corenet

import (
	"context"
	"fmt"

	"github.com/corenetio/corenet/broker"
)

// Open is not yet implemented on Windows: the socket plumbing in
// internal/sockopt uses windows.Handle rather than the int fd the
// dispatcher and poller packages expect, so wiring accept/connect through
// the reactor needs a conversion layer this port does not build yet (see
// the design notes on sockopt_windows.go). Cluster supervision is
// similarly unsupported on Windows per the source's own documented
// fallback.
func (c *Core) Open(ctx context.Context, sid SchemeID) error {
	return NewKindError(ErrKindOsBroken, fmt.Errorf("corenet: Open is not implemented on windows"))
}

// Close is a no-op on Windows until Open is implemented; there is nothing
// to close since Open never establishes a broker.
func (c *Core) Close(bid broker.ID) {}

// Read always reports the unimplemented-on-Windows error.
func (c *Core) Read(bid broker.ID) ([]byte, error) {
	return nil, NewKindError(ErrKindOsBroken, fmt.Errorf("corenet: Read is not implemented on windows"))
}

// Write always reports the unimplemented-on-Windows error.
func (c *Core) Write(bid broker.ID, data []byte) error {
	return NewKindError(ErrKindOsBroken, fmt.Errorf("corenet: Write is not implemented on windows"))
}

func (c *Core) closeBrokerSocket(b *broker.Broker) {}
